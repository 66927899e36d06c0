package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/feedharvest/internal/logger"
	"github.com/ppiankov/feedharvest/internal/model"
)

// ErrMalformedStore is returned when the credential store is not a list of records
var ErrMalformedStore = errors.New("malformed credential store")

// storageState is the {"cookies": [...]} layout written by browser tooling
type storageState struct {
	Cookies []model.RawCredential `json:"cookies"`
}

// LoadFile reads raw credentials from a JSON file. The file must hold either
// an array of objects or an object with a "cookies" array.
func LoadFile(path string) ([]model.RawCredential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credential store: %w", err)
	}
	return Parse(data)
}

// Parse decodes raw credentials from JSON bytes
func Parse(data []byte) ([]model.RawCredential, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedStore)
	}

	switch trimmed[0] {
	case '[':
		var raw []model.RawCredential
		if err := decode(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedStore, err)
		}
		return raw, nil
	case '{':
		var state storageState
		if err := decode(trimmed, &state); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedStore, err)
		}
		if state.Cookies == nil {
			return nil, fmt.Errorf("%w: object without a cookies array", ErrMalformedStore)
		}
		return state.Cookies, nil
	default:
		return nil, fmt.Errorf("%w: expected a JSON array or object", ErrMalformedStore)
	}
}

func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// Load reads and normalizes the credential store in one step
func Load(path string, log logger.Logger) ([]model.NormalizedCredential, error) {
	raw, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	creds := Normalize(raw)
	log.Info("loaded credentials",
		logger.String("path", path),
		logger.Int("kept", len(creds)),
		logger.Int("dropped", len(raw)-len(creds)),
	)
	return creds, nil
}
