package memory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "oauth login", NormalizeText("  OAuth \t\n Login  "))
	assert.Equal(t, "", NormalizeText(" \n "))
}

func TestComputeFingerprint(t *testing.T) {
	fp := ComputeFingerprint("Registration API", "abc123", "1")
	assert.Equal(t, "c86d6cb872a5f5ea", fp)
	assert.Len(t, fp, 16)

	assert.Equal(t, fp, ComputeFingerprint("  registration   api ", " abc123 ", "1"), "title whitespace/case and commit padding are ignored")
	assert.NotEqual(t, fp, ComputeFingerprint("Registration API", "abc124", "1"))
	assert.NotEqual(t, fp, ComputeFingerprint("Registration API", "abc123", ""))
}

func TestComputedFingerprint_FeatureIDZero(t *testing.T) {
	numeric := mustPayload(t, `{"title":"Registration API","commit_hash":"abc123","feature_id":0}`)
	text := mustPayload(t, `{"title":"Registration API","commit_hash":"abc123","feature_id":"0"}`)

	assert.Equal(t, "a4372dba3fe4bc65", numeric.ComputedFingerprint())
	assert.Equal(t, "d748bddd3428fe00", text.ComputedFingerprint())
}

func TestParseCapabilityPayload_SourcePrecedence(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantCommit string
		wantFeat   FeatureID
	}{
		{"nested only", `{"title":"t","source":{"commit_hash":"n1","feature_id":3}}`, "n1", "3"},
		{"flat commit_hash", `{"title":"t","commit_hash":"f1","feature_id":"4"}`, "f1", "4"},
		{"flat source_commit", `{"title":"t","source_commit":"s1"}`, "s1", ""},
		{"commit_hash beats source_commit", `{"title":"t","commit_hash":"f1","source_commit":"s1"}`, "f1", ""},
		{"nested beats flat", `{"title":"t","commit_hash":"f1","source":{"commit_hash":"n1"}}`, "n1", ""},
		{"feature id zero is unset", `{"title":"t","feature_id":0}`, "", ""},
		{"fractional zero is unset", `{"title":"t","feature_id":0.0}`, "", ""},
		{"false is unset", `{"title":"t","feature_id":false}`, "", ""},
		{"zero as text is kept", `{"title":"t","feature_id":"0"}`, "", "0"},
		{"non-numeric feature id kept", `{"title":"t","feature_id":"F-9"}`, "", "F-9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseCapabilityPayload(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.wantCommit, p.Source.CommitHash)
			assert.Equal(t, tt.wantFeat, p.Source.FeatureID)
		})
	}
}

func TestParseCapabilityPayload_RejectsNonObject(t *testing.T) {
	for _, raw := range []string{`[]`, `"title"`, `null`, `3`} {
		_, err := ParseCapabilityPayload(json.RawMessage(raw))
		assert.ErrorIs(t, err, ErrInvalidPayload, raw)
	}
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"api", "Auth", "7"}, NormalizeTags(json.RawMessage(`[" api ","Auth","API","","auth",7,null]`)))
	assert.Equal(t, []string{}, NormalizeTags(json.RawMessage(`"api"`)))
}

func TestNormalizeConfidence(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{`0.25`, 0.25},
		{`1.7`, 1},
		{`-3`, 0},
		{`"0.5"`, 0.5},
		{`"high"`, 1},
		{`null`, 1},
		{`1e999`, 1},
		{`true`, 1},
		{`false`, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeConfidence(json.RawMessage(tt.raw)), tt.raw)
	}
}
