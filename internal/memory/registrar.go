package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// AppendStatus is the outcome of recording one capability.
type AppendStatus string

const (
	StatusInserted AppendStatus = "inserted"
	StatusDeduped  AppendStatus = "deduped"
)

// AppendResult reports what AppendCapability did. Capability is nil when the
// candidate was deduped.
type AppendResult struct {
	Status      AppendStatus `json:"status"`
	Fingerprint string       `json:"fingerprint"`
	Capability  *Capability  `json:"capability"`
}

// HasFingerprint reports whether a stored capability already uses fp.
func (d *Document) HasFingerprint(fp string) bool {
	for _, c := range d.Capabilities {
		if c.isRecord() && c.Fingerprint == fp {
			return true
		}
	}
	return false
}

// AppendCapability records p unless a capability with the same fingerprint
// already exists. A new capability gets the next CAP-NNN id and advances the
// sequence; a duplicate leaves the document untouched.
func (d *Document) AppendCapability(p CapabilityPayload) (AppendResult, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return AppendResult{}, ErrTitleRequired
	}
	p.Title = title
	fingerprint := p.ComputedFingerprint()

	if d.HasFingerprint(fingerprint) {
		slog.Debug("capability deduped", "fingerprint", fingerprint, "title", title)
		return AppendResult{Status: StatusDeduped, Fingerprint: fingerprint}, nil
	}

	seq := d.NextCapabilitySeq
	if seq < 1 {
		seq = 1
	}
	origin := p.Source.Origin
	if origin == "" {
		origin = DefaultOrigin
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	ts := Timestamp(now())
	capability := Capability{
		CapID:       fmt.Sprintf("CAP-%03d", seq),
		Fingerprint: fingerprint,
		Title:       title,
		Summary:     strings.TrimSpace(p.Summary),
		Tags:        tags,
		Confidence:  clamp01(p.Confidence),
		Source: Source{
			Origin:      origin,
			FeatureID:   p.Source.FeatureID,
			CommitHash:  p.Source.CommitHash,
			CommitRange: p.Source.CommitRange,
		},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	d.Capabilities = append(d.Capabilities, capability)
	d.NextCapabilitySeq = seq + 1

	slog.Debug("capability inserted", "cap_id", capability.CapID, "fingerprint", fingerprint)
	return AppendResult{Status: StatusInserted, Fingerprint: fingerprint, Capability: &capability}, nil
}

// SyncMeta describes the sync run a batch belongs to.
type SyncMeta struct {
	SyncID           string
	CommitRange      string
	LastSyncedCommit *string
	RejectedCount    int
}

// ParseSyncMeta parses the sync metadata object passed alongside a batch.
func ParseSyncMeta(raw json.RawMessage) (SyncMeta, error) {
	f, ok := decodeObject(raw)
	if !ok {
		return SyncMeta{}, errors.New("sync metadata must be a JSON object")
	}
	meta := SyncMeta{
		SyncID:           strings.TrimSpace(f.str("sync_id")),
		CommitRange:      f.str("commit_range"),
		LastSyncedCommit: f.optionalStr("last_synced_commit"),
	}
	if v, ok := f.take("rejected_count"); ok {
		n, ok := looseInt(v)
		if !ok {
			return SyncMeta{}, fmt.Errorf("rejected_count must be an integer, got %s", string(v))
		}
		meta.RejectedCount = n
	}
	return meta, nil
}

// BatchResult tallies one BatchUpsert call.
type BatchResult struct {
	SyncID               string       `json:"sync_id"`
	InsertedCount        int          `json:"inserted_count"`
	DedupedCount         int          `json:"deduped_count"`
	InvalidCount         int          `json:"invalid_count"`
	InsertedCapabilities []Capability `json:"inserted_capabilities"`
	SyncEntry            SyncEntry    `json:"sync_entry"`
}

// BatchUpsert records every usable candidate and appends one sync history
// entry describing the call. Candidates that are not objects or have no
// title are counted as invalid and skipped; they never abort the batch.
func (d *Document) BatchUpsert(payloads []json.RawMessage, meta SyncMeta) BatchResult {
	result := BatchResult{InsertedCapabilities: []Capability{}}

	for i, raw := range payloads {
		p, err := ParseCapabilityPayload(raw)
		if err != nil {
			slog.Debug("batch candidate skipped", "index", i, "error", err)
			result.InvalidCount++
			continue
		}
		res, err := d.AppendCapability(p)
		if err != nil {
			slog.Debug("batch candidate skipped", "index", i, "error", err)
			result.InvalidCount++
			continue
		}
		if res.Status == StatusInserted {
			result.InsertedCount++
			result.InsertedCapabilities = append(result.InsertedCapabilities, *res.Capability)
		} else {
			result.DedupedCount++
		}
	}

	syncID := meta.SyncID
	if syncID == "" {
		syncID = fmt.Sprintf("sync-%d", now().Unix())
	}
	entry := SyncEntry{
		SyncID:           syncID,
		Timestamp:        Timestamp(now()),
		TotalCandidates:  len(payloads),
		AcceptedCount:    len(payloads),
		InsertedCount:    result.InsertedCount,
		DedupedCount:     result.DedupedCount,
		InvalidCount:     result.InvalidCount,
		RejectedCount:    meta.RejectedCount,
		CommitRange:      meta.CommitRange,
		LastSyncedCommit: meta.LastSyncedCommit,
	}
	d.SyncHistory = Trim(append(d.SyncHistory, entry), d.maxSyncHistory())

	if meta.LastSyncedCommit != nil && *meta.LastSyncedCommit != "" {
		commit := *meta.LastSyncedCommit
		d.LastSyncedCommit = &commit
	}

	result.SyncID = syncID
	result.SyncEntry = entry
	return result
}
