// Package memory maintains the project memory document of the progress
// tracker: capability history, rejected candidate fingerprints and sync
// history, persisted as one JSON file.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	// SchemaVersion is written into every saved document.
	SchemaVersion = "1.0"
	// FileName is the conventional document name under <project>/.claude.
	FileName = "project_memory.json"

	DefaultMaxSyncHistory          = 50
	DefaultMaxRejectedFingerprints = 500

	// DefaultOrigin is recorded when a payload does not name its origin.
	DefaultOrigin = "prog_done"

	timestampLayout = "2006-01-02T15:04:05.000000Z07:00"
)

// ErrNotObject is returned when a document's root JSON value is not an object.
var ErrNotObject = errors.New("root JSON value must be an object")

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// Timestamp formats t as ISO-8601 UTC with microseconds and a trailing Z.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Limits bounds the retained history lists.
type Limits struct {
	MaxSyncHistory          int `json:"max_sync_history"`
	MaxRejectedFingerprints int `json:"max_rejected_fingerprints"`
}

// FeatureID identifies the progress-tracker feature a capability came from.
// The empty value means unset; a falsy JSON value (null, false, a numeric
// zero) decodes to it. Non-zero integral ids are written back as JSON
// numbers.
type FeatureID string

func parseFeatureID(raw json.RawMessage) FeatureID {
	v, ok := decodeScalar(raw)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		if !t {
			return ""
		}
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return ""
		}
	case []any:
		if len(t) == 0 {
			return ""
		}
	case map[string]any:
		if len(t) == 0 {
			return ""
		}
	}
	s, _ := looseString(raw)
	return FeatureID(s)
}

func (f FeatureID) String() string { return string(f) }

// MarshalJSON keeps a zero written as text ("0") quoted so it stays set
// across a reload.
func (f FeatureID) MarshalJSON() ([]byte, error) {
	if f == "" {
		return []byte("0"), nil
	}
	if i, err := strconv.ParseInt(string(f), 10, 64); err == nil && i != 0 {
		return []byte(strconv.FormatInt(i, 10)), nil
	}
	return marshalJSON(string(f))
}

func (f *FeatureID) UnmarshalJSON(data []byte) error {
	*f = parseFeatureID(data)
	return nil
}

// Source records where a capability was observed.
type Source struct {
	Origin      string
	FeatureID   FeatureID
	CommitHash  string
	CommitRange string

	extra map[string]json.RawMessage
	// raw holds a stored source that is not a JSON object.
	raw json.RawMessage
}

func (s Source) MarshalJSON() ([]byte, error) {
	if s.raw != nil {
		return s.raw, nil
	}
	return encodeObject([]member{
		{"origin", s.Origin},
		{"feature_id", s.FeatureID},
		{"commit_hash", s.CommitHash},
		{"commit_range", s.CommitRange},
	}, s.extra)
}

func decodeSource(raw json.RawMessage) Source {
	f, ok := decodeObject(raw)
	if !ok {
		if isNull(raw) {
			return Source{}
		}
		return Source{raw: append(json.RawMessage(nil), raw...)}
	}
	src := Source{
		Origin:      f.str("origin"),
		CommitHash:  f.str("commit_hash"),
		CommitRange: f.str("commit_range"),
	}
	if v, ok := f.take("feature_id"); ok {
		src.FeatureID = parseFeatureID(v)
	}
	src.extra = f.rest()
	return src
}

// Capability is one recorded unit of project functionality.
type Capability struct {
	CapID       string
	Fingerprint string
	Title       string
	Summary     string
	Tags        []string
	Confidence  float64
	Source      Source
	CreatedAt   string
	UpdatedAt   string

	extra map[string]json.RawMessage
	// raw holds a stored entry that is not a JSON object; it is written back
	// untouched and never matches a fingerprint.
	raw json.RawMessage
}

func (c Capability) isRecord() bool { return c.raw == nil }

func (c Capability) MarshalJSON() ([]byte, error) {
	if c.raw != nil {
		return c.raw, nil
	}
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return encodeObject([]member{
		{"cap_id", c.CapID},
		{"fingerprint", c.Fingerprint},
		{"title", c.Title},
		{"summary", c.Summary},
		{"tags", tags},
		{"confidence", c.Confidence},
		{"source", c.Source},
		{"created_at", c.CreatedAt},
		{"updated_at", c.UpdatedAt},
	}, c.extra)
}

func (c *Capability) UnmarshalJSON(data []byte) error {
	f, ok := decodeObject(data)
	if !ok {
		*c = Capability{raw: append(json.RawMessage(nil), data...)}
		return nil
	}
	*c = Capability{
		CapID:       f.str("cap_id"),
		Fingerprint: f.str("fingerprint"),
		Title:       f.str("title"),
		Summary:     f.str("summary"),
		Confidence:  1.0,
		CreatedAt:   f.str("created_at"),
		UpdatedAt:   f.str("updated_at"),
	}
	if raw, ok := f.take("tags"); ok {
		c.Tags = NormalizeTags(raw)
	}
	if raw, ok := f.take("confidence"); ok {
		c.Confidence = NormalizeConfidence(raw)
	}
	if raw, ok := f.take("source"); ok {
		c.Source = decodeSource(raw)
	}
	c.extra = f.rest()
	return nil
}

// SyncEntry summarizes one batch upsert.
type SyncEntry struct {
	SyncID           string
	Timestamp        string
	TotalCandidates  int
	AcceptedCount    int
	InsertedCount    int
	DedupedCount     int
	InvalidCount     int
	RejectedCount    int
	CommitRange      string
	LastSyncedCommit *string

	extra map[string]json.RawMessage
	raw   json.RawMessage
}

func (e SyncEntry) isRecord() bool { return e.raw == nil }

func (e SyncEntry) MarshalJSON() ([]byte, error) {
	if e.raw != nil {
		return e.raw, nil
	}
	return encodeObject([]member{
		{"sync_id", e.SyncID},
		{"timestamp", e.Timestamp},
		{"total_candidates", e.TotalCandidates},
		{"accepted_count", e.AcceptedCount},
		{"inserted_count", e.InsertedCount},
		{"deduped_count", e.DedupedCount},
		{"invalid_count", e.InvalidCount},
		{"rejected_count", e.RejectedCount},
		{"commit_range", e.CommitRange},
		{"last_synced_commit", e.LastSyncedCommit},
	}, e.extra)
}

func (e *SyncEntry) UnmarshalJSON(data []byte) error {
	f, ok := decodeObject(data)
	if !ok {
		*e = SyncEntry{raw: append(json.RawMessage(nil), data...)}
		return nil
	}
	*e = SyncEntry{
		SyncID:           f.str("sync_id"),
		Timestamp:        f.str("timestamp"),
		TotalCandidates:  f.count("total_candidates"),
		AcceptedCount:    f.count("accepted_count"),
		InsertedCount:    f.count("inserted_count"),
		DedupedCount:     f.count("deduped_count"),
		InvalidCount:     f.count("invalid_count"),
		RejectedCount:    f.count("rejected_count"),
		CommitRange:      f.str("commit_range"),
		LastSyncedCommit: f.optionalStr("last_synced_commit"),
	}
	e.extra = f.rest()
	return nil
}

// Document is the persisted project memory.
type Document struct {
	SchemaVersion        string
	CreatedAt            string
	UpdatedAt            string
	NextCapabilitySeq    int
	LastSyncedCommit     *string
	Capabilities         []Capability
	RejectedFingerprints []string
	SyncHistory          []SyncEntry
	Limits               Limits

	extra map[string]json.RawMessage
}

// DefaultDocument returns an empty document stamped with the current time.
func DefaultDocument() *Document {
	ts := Timestamp(now())
	return &Document{
		SchemaVersion:        SchemaVersion,
		CreatedAt:            ts,
		UpdatedAt:            ts,
		NextCapabilitySeq:    1,
		Capabilities:         []Capability{},
		RejectedFingerprints: []string{},
		SyncHistory:          []SyncEntry{},
		Limits: Limits{
			MaxSyncHistory:          DefaultMaxSyncHistory,
			MaxRejectedFingerprints: DefaultMaxRejectedFingerprints,
		},
	}
}

// ParseDocument decodes and normalizes a stored document. Field values of
// the wrong shape are replaced with defaults; only invalid JSON or a
// non-object root is an error.
func ParseDocument(data []byte) (*Document, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrNotObject
		}
		return nil, fmt.Errorf("decode project memory: %w", err)
	}
	if f == nil {
		return nil, ErrNotObject
	}
	doc := decodeDocument(f)
	doc.Normalize()
	return doc, nil
}

func (d *Document) UnmarshalJSON(data []byte) error {
	parsed, err := ParseDocument(data)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	return encodeObject([]member{
		{"schema_version", d.SchemaVersion},
		{"created_at", d.CreatedAt},
		{"updated_at", d.UpdatedAt},
		{"next_capability_seq", d.NextCapabilitySeq},
		{"last_synced_commit", d.LastSyncedCommit},
		{"capabilities", nonNil(d.Capabilities)},
		{"rejected_fingerprints", nonNil(d.RejectedFingerprints)},
		{"sync_history", nonNil(d.SyncHistory)},
		{"limits", d.Limits},
	}, d.extra)
}

func decodeDocument(f fields) *Document {
	d := &Document{}
	if raw, ok := f.take("schema_version"); ok {
		if s, ok := strictString(raw); ok {
			d.SchemaVersion = s
		}
	} else {
		d.SchemaVersion = SchemaVersion
	}
	d.CreatedAt = f.strictStr("created_at")
	d.UpdatedAt = f.strictStr("updated_at")
	if raw, ok := f.take("next_capability_seq"); ok {
		if n, ok := strictInt(raw); ok {
			d.NextCapabilitySeq = n
		}
	}
	d.LastSyncedCommit = f.optionalStr("last_synced_commit")

	if raw, ok := f.take("capabilities"); ok {
		if items, ok := rawArray(raw); ok {
			d.Capabilities = make([]Capability, len(items))
			for i, item := range items {
				_ = d.Capabilities[i].UnmarshalJSON(item)
			}
		}
	}
	if raw, ok := f.take("rejected_fingerprints"); ok {
		if items, ok := rawArray(raw); ok {
			for _, item := range items {
				if fp, ok := fingerprintValue(item); ok {
					d.RejectedFingerprints = append(d.RejectedFingerprints, fp)
				}
			}
		}
	}
	if raw, ok := f.take("sync_history"); ok {
		if items, ok := rawArray(raw); ok {
			d.SyncHistory = make([]SyncEntry, len(items))
			for i, item := range items {
				_ = d.SyncHistory[i].UnmarshalJSON(item)
			}
		}
	}
	if raw, ok := f.take("limits"); ok {
		if lf, ok := decodeObject(raw); ok {
			d.Limits.MaxSyncHistory = lf.positiveInt("max_sync_history")
			d.Limits.MaxRejectedFingerprints = lf.positiveInt("max_rejected_fingerprints")
		}
	}
	d.extra = f.rest()
	return d
}

// fingerprintValue accepts stored fingerprints written as strings or numbers.
func fingerprintValue(raw json.RawMessage) (string, bool) {
	v, ok := decodeScalar(raw)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

// Normalize fills missing or invalid fields with defaults. It is idempotent
// and runs on every load and save.
func (d *Document) Normalize() {
	if d.SchemaVersion == "" {
		d.SchemaVersion = SchemaVersion
	}
	if d.CreatedAt == "" {
		d.CreatedAt = Timestamp(now())
	}
	if d.UpdatedAt == "" {
		d.UpdatedAt = Timestamp(now())
	}
	if d.NextCapabilitySeq < 1 {
		d.NextCapabilitySeq = 1
	}
	d.Capabilities = nonNil(d.Capabilities)
	d.RejectedFingerprints = nonNil(d.RejectedFingerprints)
	d.SyncHistory = nonNil(d.SyncHistory)
	if d.Limits.MaxSyncHistory <= 0 {
		d.Limits.MaxSyncHistory = DefaultMaxSyncHistory
	}
	if d.Limits.MaxRejectedFingerprints <= 0 {
		d.Limits.MaxRejectedFingerprints = DefaultMaxRejectedFingerprints
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (f fields) str(key string) string {
	raw, ok := f.take(key)
	if !ok {
		return ""
	}
	s, _ := looseString(raw)
	return s
}

func (f fields) strictStr(key string) string {
	raw, ok := f.take(key)
	if !ok {
		return ""
	}
	s, _ := strictString(raw)
	return s
}

func (f fields) optionalStr(key string) *string {
	raw, ok := f.take(key)
	if !ok {
		return nil
	}
	s, ok := looseString(raw)
	if !ok {
		return nil
	}
	return &s
}

func (f fields) count(key string) int {
	raw, ok := f.take(key)
	if !ok {
		return 0
	}
	n, _ := looseInt(raw)
	return n
}

func (f fields) positiveInt(key string) int {
	raw, ok := f.take(key)
	if !ok {
		return 0
	}
	n, ok := strictInt(raw)
	if !ok || n <= 0 {
		return 0
	}
	return n
}
