package memory

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrInvalidPayload is returned for a capability payload that is not a JSON object.
	ErrInvalidPayload = errors.New("capability payload must be a JSON object")
	// ErrTitleRequired is returned when a capability has no title after trimming.
	ErrTitleRequired = errors.New("capability title is required")
)

// CapabilityPayload is a capability candidate after boundary parsing.
// Callers send either a nested "source" object or the older flat shape
// (commit_hash / source_commit / feature_id / commit_range / origin at the
// top level); both end up here.
type CapabilityPayload struct {
	Title       string
	Summary     string
	Tags        []string
	Confidence  float64
	Fingerprint string
	Source      Source
}

// ParseCapabilityPayload parses one raw candidate. Nested source values win
// over top-level ones whenever the source object carries the key, even if
// its value is null.
func ParseCapabilityPayload(raw json.RawMessage) (CapabilityPayload, error) {
	top, ok := decodeObject(raw)
	if !ok {
		return CapabilityPayload{}, ErrInvalidPayload
	}
	var source fields
	if rawSource, ok := top["source"]; ok {
		source, _ = decodeObject(rawSource)
	}

	p := CapabilityPayload{
		Title:       strings.TrimSpace(textField(top, "title")),
		Summary:     strings.TrimSpace(textField(top, "summary")),
		Fingerprint: strings.TrimSpace(textField(top, "fingerprint")),
		Confidence:  1.0,
	}
	if rawTags, ok := top["tags"]; ok {
		p.Tags = NormalizeTags(rawTags)
	}
	if rawConf, ok := top["confidence"]; ok {
		p.Confidence = NormalizeConfidence(rawConf)
	}

	if v, ok := pick(source, top, "commit_hash", "source_commit"); ok {
		p.Source.CommitHash, _ = looseString(v)
	}
	if v, ok := pick(source, top, "feature_id"); ok {
		p.Source.FeatureID = parseFeatureID(v)
	}
	if v, ok := pick(source, top, "commit_range"); ok {
		p.Source.CommitRange, _ = looseString(v)
	}
	if v, ok := pick(source, top, "origin"); ok {
		p.Source.Origin, _ = looseString(v)
	}
	return p, nil
}

// ComputedFingerprint returns the explicit fingerprint when one was supplied,
// otherwise the one derived from title, commit and feature id.
func (p CapabilityPayload) ComputedFingerprint() string {
	if p.Fingerprint != "" {
		return p.Fingerprint
	}
	return ComputeFingerprint(p.Title, p.Source.CommitHash, p.Source.FeatureID.String())
}

// pick resolves key from the nested source first, then from the top level,
// then from the legacy aliases in order.
func pick(source, top fields, key string, aliases ...string) (json.RawMessage, bool) {
	if v, ok := source[key]; ok {
		return v, true
	}
	if v, ok := top[key]; ok {
		return v, true
	}
	for _, alias := range aliases {
		if v, ok := top[alias]; ok {
			return v, true
		}
	}
	return nil, false
}

func textField(f fields, key string) string {
	s, _ := looseString(f[key])
	return s
}

// NormalizeTags trims tags, drops empty ones and removes case-insensitive
// duplicates. The first spelling of a tag and the input order are kept.
// Anything other than a JSON array yields no tags.
func NormalizeTags(raw json.RawMessage) []string {
	items, ok := rawArray(raw)
	if !ok {
		return []string{}
	}
	tags := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		text, ok := looseString(item)
		if !ok {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, text)
	}
	return tags
}

// NormalizeConfidence clamps a confidence value to [0, 1]. Missing or
// non-numeric values become 1.0.
func NormalizeConfidence(raw json.RawMessage) float64 {
	f, ok := looseFloat(raw)
	if !ok {
		return 1.0
	}
	return clamp01(f)
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
