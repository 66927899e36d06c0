package model

// SessionExpiry marks a credential as session-scoped (no fixed expiry)
const SessionExpiry float64 = -1

// SameSite policy literals accepted by the browser
const (
	SameSiteStrict = "Strict"
	SameSiteLax    = "Lax"
	SameSiteNone   = "None"
)

// RawCredential is a cookie record as decoded from an external store.
// Every field may be missing or carry an unexpected type.
type RawCredential map[string]any

// NormalizedCredential is a cookie ready for injection into a browsing context
type NormalizedCredential struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`      // Defaults to "/"
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"httpOnly"`
	Expires  float64 `json:"expires"`   // Unix seconds, or SessionExpiry
	SameSite string  `json:"sameSite"`  // Strict, Lax or None
}

// IsSession reports whether the credential has no fixed expiry
func (c NormalizedCredential) IsSession() bool {
	return c.Expires == SessionExpiry
}
