// Package session loads persisted browser cookies and normalizes them into a
// form the browsing context accepts.
package session

import (
	"math"

	"github.com/ppiankov/feedharvest/internal/model"
)

// Normalize drops entries that cannot authenticate and coerces the rest.
// Malformed entries are skipped silently; the result may be empty.
func Normalize(raw []model.RawCredential) []model.NormalizedCredential {
	out := make([]model.NormalizedCredential, 0, len(raw))

	for _, c := range raw {
		name := stringField(c, "name")
		value := stringField(c, "value")
		if name == "" || value == "" {
			continue
		}

		path := stringField(c, "path")
		if path == "" {
			path = "/"
		}

		out = append(out, model.NormalizedCredential{
			Name:     name,
			Value:    value,
			Domain:   stringField(c, "domain"),
			Path:     path,
			Secure:   truthy(c["secure"]),
			HTTPOnly: truthy(c["httpOnly"]),
			Expires:  expiry(c["expires"]),
			SameSite: sameSite(c["sameSite"]),
		})
	}

	return out
}

// stringField returns the field if it holds a string, "" otherwise
func stringField(c model.RawCredential, key string) string {
	s, _ := c[key].(string)
	return s
}

// truthy applies JavaScript truthiness to a decoded JSON value
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	default:
		if f, ok := number(v); ok {
			return f != 0 && !math.IsNaN(f)
		}
		return true
	}
}

// expiry keeps finite, non-zero numbers and maps everything else to the session sentinel
func expiry(v any) float64 {
	f, ok := number(v)
	if !ok || f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return model.SessionExpiry
	}
	return f
}

func sameSite(v any) string {
	s, _ := v.(string)
	switch s {
	case model.SameSiteStrict, model.SameSiteLax, model.SameSiteNone:
		return s
	default:
		return model.SameSiteNone
	}
}

// number converts the numeric types a decoder may produce to float64
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case interface{ Float64() (float64, error) }: // json.Number
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
