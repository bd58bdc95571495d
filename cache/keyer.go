package cache

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// MaxUserIDLength is the maximum accepted length for a user identity.
const MaxUserIDLength = 255

// MaxQueryTextLength is the length free-text fields are truncated to before
// key derivation.
const MaxQueryTextLength = 2048

// Clamp bounds for numeric query options.
const (
	MinMaxResults  = 1
	MaxMaxResults  = 100
	MinTemperature = 0.0
	MaxTemperature = 1.0
)

// Query is the structured input to the answer service that a cache key is
// derived from. Free-text fields are sanitized before hashing.
type Query struct {
	Text        string   `json:"text"`
	PatientID   string   `json:"patient_id,omitempty"`
	ContextHint string   `json:"context_hint,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	MaxResults  int      `json:"max_results,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
}

// Keyer derives deterministic cache keys from a query and a user identity.
//
// Contract:
// - Determinism: same sanitized query + same user must produce the same key.
// - Isolation: different users must never collide for the same query.
// - Privacy: the raw query must not be recoverable from the key.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key derives the cache key for a query issued by userID.
	Key(query *Query, userID string) (string, error)
}

// HMACKeyer derives keys as namespace:userID:HMAC-SHA256(canonical query).
// The HMAC secret keeps keys non-guessable even when the query is known.
type HMACKeyer struct {
	namespace string
	secret    []byte
}

// NewHMACKeyer creates a keyer with the given namespace and server secret.
func NewHMACKeyer(namespace string, secret []byte) *HMACKeyer {
	if namespace == "" {
		namespace = "respcache"
	}
	return &HMACKeyer{namespace: namespace, secret: secret}
}

// Key derives a deterministic, PII-free cache key.
// Format: <namespace>:<userID>:<hex hmac>
func (k *HMACKeyer) Key(query *Query, userID string) (string, error) {
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	if query == nil {
		return "", fmt.Errorf("cache: query is nil: %w", ErrEntryInvalid)
	}

	canonical, err := json.Marshal(canonicalQuery(query))
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize query: %w", err)
	}

	mac := hmac.New(sha256.New, k.secret)
	mac.Write(canonical)
	digest := hex.EncodeToString(mac.Sum(nil))

	return k.namespace + ":" + userID + ":" + digest, nil
}

// QueryHash returns only the digest portion of the derived key, for storing
// in entry metadata without repeating the namespace and user prefix.
func (k *HMACKeyer) QueryHash(query *Query, userID string) (string, error) {
	key, err := k.Key(query, userID)
	if err != nil {
		return "", err
	}
	return key[strings.LastIndexByte(key, ':')+1:], nil
}

// ValidateUserID checks that a user identity is usable as a key component.
func ValidateUserID(userID string) error {
	if userID == "" || strings.TrimSpace(userID) == "" {
		return ErrInvalidIdentity
	}
	if len(userID) > MaxUserIDLength {
		return ErrInvalidIdentity
	}
	// Key components must not contain the separator or line breaks.
	if strings.ContainsAny(userID, ":\n\r") {
		return ErrInvalidIdentity
	}
	return nil
}

// canonicalQuery assembles the sanitized, clamped structure that is hashed.
// Struct field order fixes the serialization order, so encoding is
// deterministic without sorting.
func canonicalQuery(q *Query) *Query {
	c := &Query{
		Text:        SanitizeText(q.Text),
		PatientID:   SanitizeText(q.PatientID),
		ContextHint: SanitizeText(q.ContextHint),
		MaxResults:  clampInt(q.MaxResults, MinMaxResults, MaxMaxResults),
		Temperature: clampFloat(q.Temperature, MinTemperature, MaxTemperature),
	}
	if len(q.Categories) > 0 {
		c.Categories = make([]string, 0, len(q.Categories))
		for _, cat := range q.Categories {
			if s := SanitizeText(cat); s != "" {
				c.Categories = append(c.Categories, s)
			}
		}
	}
	return c
}

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	scriptPattern     = regexp.MustCompile(`(?i)javascript:|data:text/html`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// SanitizeText strips HTML/script-like substrings and control characters from
// free text, collapses whitespace, and truncates to MaxQueryTextLength.
func SanitizeText(s string) string {
	if s == "" {
		return ""
	}
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = scriptPattern.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if len(s) > MaxQueryTextLength {
		s = s[:MaxQueryTextLength]
	}
	return s
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Ensure HMACKeyer implements Keyer
var _ Keyer = (*HMACKeyer)(nil)
