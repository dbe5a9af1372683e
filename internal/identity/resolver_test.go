package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const canonicalCheakamus = "environment_canada_08GA072"

func TestResolve_RecognizedShapes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Key
	}{
		{"canonical returned unchanged", canonicalCheakamus, canonicalCheakamus},
		{"canonical usgs", "usgs_12345678", "usgs_12345678"},
		{"canonical other provider", "other_some-gauge", "other_some-gauge"},
		{"dotted enum camel case", "Provider.environmentCanada_08GA072", canonicalCheakamus},
		{"dotted enum upper snake", "Provider.ENVIRONMENT_CANADA_08GA072", canonicalCheakamus},
		{"dotted enum lower snake", "Provider.environment_canada_08GA072", canonicalCheakamus},
		{"dotted enum lowercase prefix", "provider.environmentCanada_08GA072", canonicalCheakamus},
		{"dotted enum usgs", "Provider.usgs_09380000", "usgs_09380000"},
		{"bare code default provider", "08GA072", canonicalCheakamus},
		{"bare code other station", "05BB001", "environment_canada_05BB001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := Resolve(tt.input)
			assert.True(t, ok)
			assert.Equal(t, tt.expected, key)
		})
	}
}

func TestResolve_UnrecognizedReturnedUnchanged(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"lowercase letters in code", "08ga072"},
		{"wrong code pattern", "8GA072"},
		{"unknown provider prefix", "hydro_quebec_0001"},
		{"dotted enum unknown member", "Provider.norwegianNve_123"},
		{"dotted enum missing code", "Provider.environmentCanada_"},
		{"free text", "Cheakamus River above Millar Creek"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := Resolve(tt.input)
			assert.False(t, ok)
			assert.Equal(t, Key(tt.input), key)
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	inputs := []string{
		canonicalCheakamus,
		"Provider.environmentCanada_08GA072",
		"08GA072",
		"not a station at all",
	}

	for _, in := range inputs {
		first, _ := Resolve(in)
		second, _ := Resolve(string(first))
		assert.Equal(t, first, second, "resolve(resolve(%q))", in)
	}
}

func TestResolve_UnifiesEquivalentForms(t *testing.T) {
	forms := []string{
		canonicalCheakamus,
		"Provider.environmentCanada_08GA072",
		"Provider.ENVIRONMENT_CANADA_08GA072",
		"08GA072",
	}

	for _, form := range forms {
		key, ok := Resolve(form)
		assert.True(t, ok, "form %q", form)
		assert.Equal(t, Key(canonicalCheakamus), key, "form %q", form)
	}
}

func TestNewKey(t *testing.T) {
	assert.Equal(t, Key(canonicalCheakamus), NewKey("environment_canada", "08GA072"))
}

func TestKey_ProviderAndCode(t *testing.T) {
	key := Key(canonicalCheakamus)
	assert.Equal(t, "environment_canada", key.Provider())
	assert.Equal(t, "08GA072", key.Code())

	unknown := Key("mystery_key")
	assert.Empty(t, unknown.Provider())
	assert.Empty(t, unknown.Code())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, Key(canonicalCheakamus), Normalize("08GA072"))
	assert.Equal(t, Key("garbage"), Normalize("garbage"))
}
