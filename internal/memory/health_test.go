package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_HealthyDocument(t *testing.T) {
	doc := DefaultDocument()
	_, err := doc.AppendCapability(CapabilityPayload{Title: "A"})
	require.NoError(t, err)
	assert.Empty(t, doc.Check())
}

func TestCheck_ReportsProblems(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
		"schema_version": "0.9",
		"next_capability_seq": 2,
		"capabilities": [
			{"cap_id":"CAP-001","fingerprint":"aaaa","title":"A"},
			{"cap_id":"CAP-004","fingerprint":"aaaa","title":"B"},
			{"cap_id":"CAP-005","title":"C"},
			"legacy"
		],
		"limits": {"max_sync_history": 1}
	}`))
	require.NoError(t, err)
	doc.SyncHistory = []SyncEntry{{SyncID: "a"}, {SyncID: "b"}}

	findings := doc.Check()
	messages := make([]string, 0, len(findings))
	errorsFound := 0
	for _, f := range findings {
		messages = append(messages, f.Message)
		if f.Severity == SeverityError {
			errorsFound++
		}
	}

	assert.Contains(t, messages, `schema_version is "0.9", expected "1.0"`)
	assert.Contains(t, messages, "capabilities CAP-001 and CAP-004 share fingerprint aaaa")
	assert.Contains(t, messages, "capability CAP-005 has no fingerprint")
	assert.Contains(t, messages, "1 capability entries are not JSON objects")
	assert.Contains(t, messages, "next_capability_seq 2 would reuse CAP-002")
	assert.Contains(t, messages, "sync_history has 2 entries, limit is 1")
	assert.Equal(t, 2, errorsFound)
}

func TestRepair(t *testing.T) {
	doc := DefaultDocument()
	doc.SchemaVersion = "0.9"
	doc.Capabilities = []Capability{{CapID: "CAP-009", Fingerprint: "x", Title: "X"}}
	doc.NextCapabilitySeq = 3
	doc.Limits.MaxRejectedFingerprints = 2
	for i := 0; i < 4; i++ {
		doc.RejectedFingerprints = append(doc.RejectedFingerprints, fmt.Sprintf("fp-%d", i))
	}

	doc.Repair()

	assert.Equal(t, SchemaVersion, doc.SchemaVersion)
	assert.Equal(t, 10, doc.NextCapabilitySeq)
	assert.Equal(t, []string{"fp-2", "fp-3"}, doc.RejectedFingerprints)
	assert.Len(t, doc.Capabilities, 1)
	assert.Empty(t, doc.Check())
}
