package session

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/feedharvest/internal/logger"
	"github.com/ppiankov/feedharvest/internal/model"
)

func TestNormalize_Scenario(t *testing.T) {
	raw := []model.RawCredential{
		{"name": "a", "value": "1", "domain": "x"},
		{"name": "", "value": "2", "domain": "x"},
		{"name": "b", "value": "", "domain": "x"},
		{"name": "c", "value": "3", "domain": "x", "sameSite": "Strict"},
	}

	got := Normalize(raw)
	want := []model.NormalizedCredential{
		{Name: "a", Value: "1", Domain: "x", Path: "/", Expires: model.SessionExpiry, SameSite: "None"},
		{Name: "c", Value: "3", Domain: "x", Path: "/", Expires: model.SessionExpiry, SameSite: "Strict"},
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d credentials, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("credential %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestNormalize_FiltersNoise(t *testing.T) {
	raw := []model.RawCredential{
		nil,
		{},
		{"name": 5, "value": "x"},
		{"name": "n", "value": nil},
		{"name": "n", "value": []any{"v"}},
		{"name": "ok", "value": "v"},
	}

	got := Normalize(raw)
	if len(got) != 1 || got[0].Name != "ok" {
		t.Fatalf("expected only the well-formed entry, got %+v", got)
	}

	for _, c := range got {
		if c.Name == "" || c.Value == "" {
			t.Errorf("normalized credential with empty name/value: %+v", c)
		}
	}
}

func TestNormalize_Path(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "/"},
		{"", "/"},
		{42, "/"},
		{"/api", "/api"},
	}

	for _, tt := range tests {
		got := Normalize([]model.RawCredential{{"name": "n", "value": "v", "path": tt.in}})
		if got[0].Path != tt.want {
			t.Errorf("path %v: got %q, want %q", tt.in, got[0].Path, tt.want)
		}
	}
}

func TestNormalize_Booleans(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{"absent", nil, false},
		{"true", true, true},
		{"false", false, false},
		{"one", float64(1), true},
		{"zero", float64(0), false},
		{"nan", math.NaN(), false},
		{"empty string", "", false},
		{"string", "yes", true},
		{"json number", json.Number("1"), true},
		{"json zero", json.Number("0"), false},
		{"object", map[string]any{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize([]model.RawCredential{{"name": "n", "value": "v", "secure": tt.in, "httpOnly": tt.in}})
			if got[0].Secure != tt.want || got[0].HTTPOnly != tt.want {
				t.Errorf("got secure=%v httpOnly=%v, want %v", got[0].Secure, got[0].HTTPOnly, tt.want)
			}
		})
	}
}

func TestNormalize_Expires(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"absent", nil, model.SessionExpiry},
		{"finite", float64(1767225600), 1767225600},
		{"fractional", 1767225600.5, 1767225600.5},
		{"int", 1767225600, 1767225600},
		{"json number", json.Number("1767225600"), 1767225600},
		{"zero", float64(0), model.SessionExpiry},
		{"nan", math.NaN(), model.SessionExpiry},
		{"inf", math.Inf(1), model.SessionExpiry},
		{"negative inf", math.Inf(-1), model.SessionExpiry},
		{"string", "1767225600", model.SessionExpiry},
		{"bool", true, model.SessionExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize([]model.RawCredential{{"name": "n", "value": "v", "expires": tt.in}})
			exp := got[0].Expires
			if math.IsNaN(exp) || math.IsInf(exp, 0) {
				t.Fatalf("non-finite expiry %v", exp)
			}
			if exp != tt.want {
				t.Errorf("got %v, want %v", exp, tt.want)
			}
		})
	}
}

func TestNormalize_SameSite(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"Strict", "Strict"},
		{"Lax", "Lax"},
		{"None", "None"},
		{"strict", "None"},
		{"no_restriction", "None"},
		{"unspecified", "None"},
		{float64(1), "None"},
		{nil, "None"},
	}

	for _, tt := range tests {
		got := Normalize([]model.RawCredential{{"name": "n", "value": "v", "sameSite": tt.in}})
		if got[0].SameSite != tt.want {
			t.Errorf("sameSite %v: got %q, want %q", tt.in, got[0].SameSite, tt.want)
		}
	}
}

func TestNormalize_Empty(t *testing.T) {
	if got := Normalize(nil); len(got) != 0 {
		t.Errorf("expected empty result, got %+v", got)
	}
}

func TestParse_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    int
		wantErr bool
	}{
		{"array", `[{"name":"a","value":"1"},{"name":"b"}]`, 2, false},
		{"storage state", `{"cookies":[{"name":"a","value":"1"}],"origins":[]}`, 1, false},
		{"empty array", `[]`, 0, false},
		{"object without cookies", `{"foo":1}`, 0, true},
		{"scalar", `42`, 0, true},
		{"array of scalars", `[1,2]`, 0, true},
		{"broken", `[{"name":`, 0, true},
		{"empty", ``, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Parse([]byte(tt.data))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedStore) {
					t.Fatalf("expected ErrMalformedStore, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(raw) != tt.want {
				t.Errorf("expected %d records, got %d", tt.want, len(raw))
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.json")
	data := `[
		{"name":"sessionid","value":"abc","domain":".example.com","secure":true,"httpOnly":true,"expires":1767225600,"sameSite":"Lax"},
		{"name":"tt_chain","value":"","domain":".example.com"}
	]`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	creds, err := Load(path, logger.NewNop())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(creds) != 1 {
		t.Fatalf("expected 1 credential, got %d", len(creds))
	}

	c := creds[0]
	if !c.Secure || !c.HTTPOnly || c.SameSite != "Lax" || c.Expires != 1767225600 || c.IsSession() {
		t.Errorf("unexpected credential: %+v", c)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), logger.NewNop())
	if err == nil {
		t.Fatal("expected error for missing store")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
