package memory

import (
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
)

// Trim keeps the newest maxItems entries of items, dropping from the front.
// A non-positive limit empties the list.
func Trim[T any](items []T, maxItems int) []T {
	if maxItems <= 0 {
		return []T{}
	}
	if len(items) <= maxItems {
		return items
	}
	return slices.Clone(items[len(items)-maxItems:])
}

func (d *Document) maxSyncHistory() int {
	if d.Limits.MaxSyncHistory <= 0 {
		return DefaultMaxSyncHistory
	}
	return d.Limits.MaxSyncHistory
}

func (d *Document) maxRejectedFingerprints() int {
	if d.Limits.MaxRejectedFingerprints <= 0 {
		return DefaultMaxRejectedFingerprints
	}
	return d.Limits.MaxRejectedFingerprints
}

// RejectionResult reports what RegisterRejections did.
type RejectionResult struct {
	SyncID            *string  `json:"sync_id"`
	AddedCount        int      `json:"added_count"`
	InvalidCount      int      `json:"invalid_count"`
	AddedFingerprints []string `json:"added_fingerprints"`
}

// RegisterRejections remembers the fingerprints of candidates the user
// declined. A candidate is either a bare fingerprint string or a capability
// payload. Known fingerprints are skipped, the list is trimmed to its limit,
// and when syncID names a sync history entry its rejected_count is set to
// the number of candidates.
func (d *Document) RegisterRejections(candidates []json.RawMessage, syncID string) RejectionResult {
	result := RejectionResult{AddedFingerprints: []string{}}

	existing := make(map[string]struct{}, len(d.RejectedFingerprints))
	for _, fp := range d.RejectedFingerprints {
		existing[fp] = struct{}{}
	}

	for i, raw := range candidates {
		fp, ok := rejectionFingerprint(raw)
		if !ok {
			slog.Debug("rejection candidate skipped", "index", i)
			result.InvalidCount++
			continue
		}
		if _, dup := existing[fp]; dup {
			continue
		}
		existing[fp] = struct{}{}
		d.RejectedFingerprints = append(d.RejectedFingerprints, fp)
		result.AddedFingerprints = append(result.AddedFingerprints, fp)
	}
	result.AddedCount = len(result.AddedFingerprints)
	d.RejectedFingerprints = Trim(d.RejectedFingerprints, d.maxRejectedFingerprints())

	if syncID != "" {
		id := syncID
		result.SyncID = &id
		if entry := d.findSyncEntry(syncID); entry != nil {
			entry.RejectedCount = len(candidates)
		}
	}
	return result
}

// findSyncEntry returns the newest sync history entry with the given id.
func (d *Document) findSyncEntry(syncID string) *SyncEntry {
	for i := len(d.SyncHistory) - 1; i >= 0; i-- {
		e := &d.SyncHistory[i]
		if e.isRecord() && e.SyncID == syncID {
			return e
		}
	}
	return nil
}

// rejectionFingerprint derives the fingerprint of a rejected candidate.
// Payload candidates go through the same parsing as AppendCapability and may
// fall back to their summary when they have no title.
func rejectionFingerprint(raw json.RawMessage) (string, bool) {
	if s, ok := strictString(raw); ok {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	p, err := ParseCapabilityPayload(raw)
	if err != nil {
		return "", false
	}
	if p.Fingerprint != "" {
		return p.Fingerprint, true
	}
	if p.Title == "" {
		p.Title = p.Summary
	}
	if p.Title == "" {
		return "", false
	}
	return p.ComputedFingerprint(), true
}
