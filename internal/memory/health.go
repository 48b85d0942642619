package memory

import (
	"fmt"
	"strconv"
	"strings"
)

// Severity grades a health finding.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is one problem reported by Check.
type Finding struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Fixable  bool     `json:"fixable"`
}

// Check inspects a loaded document for problems normalization does not
// repair on its own.
func (d *Document) Check() []Finding {
	var findings []Finding

	if d.SchemaVersion != SchemaVersion {
		findings = append(findings, Finding{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("schema_version is %q, expected %q", d.SchemaVersion, SchemaVersion),
			Fixable:  true,
		})
	}

	seen := make(map[string]string, len(d.Capabilities))
	malformed := 0
	for _, c := range d.Capabilities {
		if !c.isRecord() {
			malformed++
			continue
		}
		if c.Fingerprint == "" {
			findings = append(findings, Finding{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("capability %s has no fingerprint", c.CapID),
			})
			continue
		}
		if first, dup := seen[c.Fingerprint]; dup {
			findings = append(findings, Finding{
				Severity: SeverityError,
				Message:  fmt.Sprintf("capabilities %s and %s share fingerprint %s", first, c.CapID, c.Fingerprint),
			})
			continue
		}
		seen[c.Fingerprint] = c.CapID
	}
	if malformed > 0 {
		findings = append(findings, Finding{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d capability entries are not JSON objects", malformed),
		})
	}

	if highest := d.highestCapSeq(); highest >= d.NextCapabilitySeq {
		findings = append(findings, Finding{
			Severity: SeverityError,
			Message:  fmt.Sprintf("next_capability_seq %d would reuse CAP-%03d", d.NextCapabilitySeq, d.NextCapabilitySeq),
			Fixable:  true,
		})
	}

	if n, limit := len(d.SyncHistory), d.maxSyncHistory(); n > limit {
		findings = append(findings, Finding{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("sync_history has %d entries, limit is %d", n, limit),
			Fixable:  true,
		})
	}
	if n, limit := len(d.RejectedFingerprints), d.maxRejectedFingerprints(); n > limit {
		findings = append(findings, Finding{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("rejected_fingerprints has %d entries, limit is %d", n, limit),
			Fixable:  true,
		})
	}
	return findings
}

// Repair fixes what Check marks fixable: the id sequence is moved past the
// highest minted id and both history lists are trimmed to their limits.
// Capabilities themselves are never removed.
func (d *Document) Repair() {
	d.SchemaVersion = SchemaVersion
	if highest := d.highestCapSeq(); highest >= d.NextCapabilitySeq {
		d.NextCapabilitySeq = highest + 1
	}
	d.SyncHistory = Trim(d.SyncHistory, d.maxSyncHistory())
	d.RejectedFingerprints = Trim(d.RejectedFingerprints, d.maxRejectedFingerprints())
}

func (d *Document) highestCapSeq() int {
	highest := 0
	for _, c := range d.Capabilities {
		if !c.isRecord() {
			continue
		}
		digits, ok := strings.CutPrefix(c.CapID, "CAP-")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(digits); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}
