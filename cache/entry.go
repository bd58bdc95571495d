package cache

import (
	"time"
)

// TTL bounds for cached entries, in seconds.
const (
	MinTTLSeconds = 1
	MaxTTLSeconds = 86400
)

// PayloadKind tags the shape of a cached response payload.
type PayloadKind string

const (
	// KindText is a plain-text answer payload.
	KindText PayloadKind = "text"
	// KindStructured is a structured answer payload (JSON object).
	KindStructured PayloadKind = "structured"
)

// Source identifies a document backing a cached answer.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// Response is the tagged payload envelope cached on behalf of the
// answer-generation service. Kind determines how Text is interpreted.
type Response struct {
	Kind       PayloadKind `json:"kind"`
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Sources    []Source    `json:"sources,omitempty"`
}

// Validate checks the response envelope before it is admitted to either tier.
func (r *Response) Validate() error {
	if r == nil {
		return ErrEntryInvalid
	}
	if r.Kind != KindText && r.Kind != KindStructured {
		return ErrEntryInvalid
	}
	if r.Text == "" {
		return ErrEntryInvalid
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return ErrEntryInvalid
	}
	return nil
}

// Metadata describes the provenance of a cached entry. It is what category
// and user scoped invalidation match against.
type Metadata struct {
	QueryHash      string   `json:"query_hash"`
	UserID         string   `json:"user_id"`
	PatientID      string   `json:"patient_id,omitempty"`
	DataCategories []string `json:"data_categories,omitempty"`
	Confidence     float64  `json:"confidence,omitempty"`
}

// HasCategory reports whether the entry is tagged with the given category.
func (m *Metadata) HasCategory(category string) bool {
	for _, c := range m.DataCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Entry is a resident cache entry. HitCount is mutated only while the entry
// is held by the local tier, under that tier's lock.
type Entry struct {
	Payload    Response  `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
	TTLSeconds int       `json:"ttl_seconds"`
	HitCount   int64     `json:"hit_count"`
	Metadata   Metadata  `json:"metadata"`
}

// ExpiresAt returns the instant after which the entry is considered absent.
func (e *Entry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(time.Duration(e.TTLSeconds) * time.Second)
}

// Expired reports whether the entry has passed its TTL at the given instant.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt())
}

// Validate checks the structural shape of an entry read back from a tier.
// A failing entry is treated as a miss, never returned to a caller.
func (e *Entry) Validate() error {
	if e == nil {
		return ErrEntryInvalid
	}
	if e.CreatedAt.IsZero() {
		return ErrEntryInvalid
	}
	if e.TTLSeconds < MinTTLSeconds || e.TTLSeconds > MaxTTLSeconds {
		return ErrEntryInvalid
	}
	if e.HitCount < 0 {
		return ErrEntryInvalid
	}
	if e.Metadata.QueryHash == "" || e.Metadata.UserID == "" {
		return ErrEntryInvalid
	}
	return e.Payload.Validate()
}

// clone returns a deep enough copy for handing outside the local tier's lock.
func (e *Entry) clone() *Entry {
	dup := *e
	if e.Payload.Sources != nil {
		dup.Payload.Sources = append([]Source(nil), e.Payload.Sources...)
	}
	if e.Metadata.DataCategories != nil {
		dup.Metadata.DataCategories = append([]string(nil), e.Metadata.DataCategories...)
	}
	return &dup
}
