package cache

import (
	"strings"
	"testing"
)

// TestHMACKeyer_Deterministic verifies identical inputs always yield
// identical keys.
func TestHMACKeyer_Deterministic(t *testing.T) {
	keyer := NewHMACKeyer("test", []byte("server-secret"))
	query := &Query{Text: "what are the contraindications for metformin", MaxResults: 10}

	key1, err := keyer.Key(query, "user-1")
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	key2, err := keyer.Key(query, "user-1")
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if key1 != key2 {
		t.Errorf("keys differ for identical inputs: %q vs %q", key1, key2)
	}
}

// TestHMACKeyer_UserIsolation verifies different users never collide for
// the same query.
func TestHMACKeyer_UserIsolation(t *testing.T) {
	keyer := NewHMACKeyer("test", []byte("server-secret"))
	query := &Query{Text: "same question"}

	key1, err := keyer.Key(query, "user-1")
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	key2, err := keyer.Key(query, "user-2")
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if key1 == key2 {
		t.Errorf("different users produced the same key: %q", key1)
	}
	if !strings.HasPrefix(key1, "test:user-1:") {
		t.Errorf("key %q missing namespace:user prefix", key1)
	}
}

// TestHMACKeyer_NoPIILeak verifies the raw query text never appears in the
// derived key, so keys are safe to log.
func TestHMACKeyer_NoPIILeak(t *testing.T) {
	keyer := NewHMACKeyer("test", []byte("server-secret"))
	query := &Query{Text: "patient Jane Doe has diabetes", PatientID: "patient-42"}

	key, err := keyer.Key(query, "user-1")
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	for _, fragment := range []string{"Jane", "Doe", "diabetes", "patient-42"} {
		if strings.Contains(key, fragment) {
			t.Errorf("key %q leaks query fragment %q", key, fragment)
		}
	}
}

// TestHMACKeyer_SecretChangesKey verifies keys are not guessable without
// the server secret.
func TestHMACKeyer_SecretChangesKey(t *testing.T) {
	query := &Query{Text: "same question"}

	key1, _ := NewHMACKeyer("test", []byte("secret-a")).Key(query, "user-1")
	key2, _ := NewHMACKeyer("test", []byte("secret-b")).Key(query, "user-1")
	if key1 == key2 {
		t.Error("different secrets produced the same key")
	}
}

// TestHMACKeyer_SanitizationNormalizes verifies that queries differing only
// in markup, control characters, or whitespace derive the same key.
func TestHMACKeyer_SanitizationNormalizes(t *testing.T) {
	keyer := NewHMACKeyer("test", []byte("server-secret"))

	tests := []struct {
		name  string
		dirty string
		clean string
	}{
		{"html stripped", "<b>dosage</b> for amoxicillin", "dosage for amoxicillin"},
		{"script tags stripped", "<script></script>dosage for amoxicillin", "dosage for amoxicillin"},
		{"javascript scheme stripped", "javascript:dosage for amoxicillin", "dosage for amoxicillin"},
		{"whitespace collapsed", "dosage   for \t amoxicillin", "dosage for amoxicillin"},
		{"control chars removed", "dosage\x00 for\x1f amoxicillin", "dosage for amoxicillin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dirtyKey, err := keyer.Key(&Query{Text: tt.dirty}, "user-1")
			if err != nil {
				t.Fatalf("Key(dirty) error = %v", err)
			}
			cleanKey, err := keyer.Key(&Query{Text: tt.clean}, "user-1")
			if err != nil {
				t.Fatalf("Key(clean) error = %v", err)
			}
			if dirtyKey != cleanKey {
				t.Errorf("sanitized query %q did not normalize to %q", tt.dirty, tt.clean)
			}
		})
	}
}

// TestHMACKeyer_OptionClamping verifies numeric options are clamped into
// their bounds before hashing.
func TestHMACKeyer_OptionClamping(t *testing.T) {
	keyer := NewHMACKeyer("test", []byte("server-secret"))

	overLimit, _ := keyer.Key(&Query{Text: "q", MaxResults: 5000, Temperature: 7.5}, "user-1")
	atLimit, _ := keyer.Key(&Query{Text: "q", MaxResults: MaxMaxResults, Temperature: MaxTemperature}, "user-1")
	if overLimit != atLimit {
		t.Error("out-of-range options were not clamped to the bounds")
	}

	underLimit, _ := keyer.Key(&Query{Text: "q", MaxResults: -3, Temperature: -1}, "user-1")
	atFloor, _ := keyer.Key(&Query{Text: "q", MaxResults: MinMaxResults, Temperature: MinTemperature}, "user-1")
	if underLimit != atFloor {
		t.Error("below-range options were not clamped to the floor")
	}
}

// TestValidateUserID tests identity validation rules.
func TestValidateUserID(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		wantErr bool
	}{
		{"valid", "user-1", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"too long", strings.Repeat("x", MaxUserIDLength+1), true},
		{"max length exactly", strings.Repeat("x", MaxUserIDLength), false},
		{"contains separator", "user:1", true},
		{"contains newline", "user\n1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserID(tt.userID)
			if tt.wantErr && err != ErrInvalidIdentity {
				t.Errorf("ValidateUserID(%q) = %v, want ErrInvalidIdentity", tt.userID, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateUserID(%q) = %v, want nil", tt.userID, err)
			}
		})
	}
}

// TestSanitizeText_Truncation verifies free text is bounded.
func TestSanitizeText_Truncation(t *testing.T) {
	long := strings.Repeat("a", MaxQueryTextLength*2)
	if got := SanitizeText(long); len(got) != MaxQueryTextLength {
		t.Errorf("SanitizeText length = %d, want %d", len(got), MaxQueryTextLength)
	}
}

// TestHMACKeyer_NilQuery verifies a nil query is rejected rather than hashed.
func TestHMACKeyer_NilQuery(t *testing.T) {
	keyer := NewHMACKeyer("test", []byte("server-secret"))
	if _, err := keyer.Key(nil, "user-1"); err == nil {
		t.Error("Key(nil) = nil error, want error")
	}
}
