package cache

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// patternAlphabet is the safe alphabet for invalidation patterns. Anything
// else is rejected before the pattern reaches either tier.
var patternAlphabet = regexp.MustCompile(`^[A-Za-z0-9_:.\-*]+$`)

// Invalidator removes entries across both tiers by pattern or by
// category/user/patient scope. Remote-tier failures degrade to local-only
// invalidation rather than aborting.
type Invalidator struct {
	local     *LocalCache
	remote    *RemoteStore
	codec     Codec
	stats     *Stats
	namespace string
}

// NewInvalidator creates an invalidator over the given tiers.
func NewInvalidator(local *LocalCache, remote *RemoteStore, codec Codec, stats *Stats, namespace string) *Invalidator {
	return &Invalidator{
		local:     local,
		remote:    remote,
		codec:     codec,
		stats:     stats,
		namespace: namespace,
	}
}

// ByPattern removes all entries whose key matches pattern. The pattern is
// restricted to the safe alphabet with * as the only wildcard; locally it is
// matched via a translated regexp, never compiled from raw input.
// Returns the number of entries removed.
func (inv *Invalidator) ByPattern(ctx context.Context, pattern string) (int, error) {
	re, err := translatePattern(pattern)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range inv.local.Keys() {
		if re.MatchString(key) && inv.local.Delete(key) {
			removed++
		}
	}

	var remoteErr error
	if inv.remote != nil && inv.remote.Connected() {
		keys, err := inv.remote.Keys(ctx, pattern)
		if err != nil {
			remoteErr = err
		} else if len(keys) > 0 {
			n, err := inv.remote.Delete(ctx, keys...)
			removed += n
			remoteErr = err
		}
	}

	if removed > 0 {
		inv.stats.recordEviction(int64(removed))
	}
	if remoteErr != nil && !errors.Is(remoteErr, ErrRemoteUnavailable) {
		return removed, remoteErr
	}
	return removed, nil
}

// ByCategory removes entries tagged with category. When userID or patientID
// are non-empty the removal is further scoped to them. Returns the number of
// entries removed.
func (inv *Invalidator) ByCategory(ctx context.Context, category, userID, patientID string) (int, error) {
	if category == "" {
		return 0, nil
	}

	removed := 0
	for _, key := range inv.local.Keys() {
		entry, ok := inv.local.Peek(key)
		if !ok {
			continue
		}
		if matchScope(&entry.Metadata, category, userID, patientID) && inv.local.Delete(key) {
			removed++
		}
	}

	if inv.remote != nil && inv.remote.Connected() {
		removed += inv.remoteCategorySweep(ctx, category, userID, patientID)
	}

	if removed > 0 {
		inv.stats.recordEviction(int64(removed))
	}
	return removed, nil
}

// remoteCategorySweep scans remote keys (scoped by user when provided),
// decodes each entry's metadata, and deletes the ones in scope. Any remote
// failure ends the sweep; invalidation degrades to whatever was already done.
func (inv *Invalidator) remoteCategorySweep(ctx context.Context, category, userID, patientID string) int {
	pattern := inv.namespace + ":*"
	if userID != "" {
		pattern = inv.namespace + ":" + userID + ":*"
	}

	keys, err := inv.remote.Keys(ctx, pattern)
	if err != nil {
		return 0
	}

	var victims []string
	for _, key := range keys {
		data, found, err := inv.remote.Get(ctx, key)
		if err != nil {
			break
		}
		if !found {
			continue
		}
		entry, err := inv.codec.Decode(data)
		if err != nil {
			// Undecodable remote entries are removed as hygiene.
			victims = append(victims, key)
			continue
		}
		if matchScope(&entry.Metadata, category, userID, patientID) {
			victims = append(victims, key)
		}
	}

	n, _ := inv.remote.Delete(ctx, victims...)
	return n
}

func matchScope(md *Metadata, category, userID, patientID string) bool {
	if !md.HasCategory(category) {
		return false
	}
	if userID != "" && md.UserID != userID {
		return false
	}
	if patientID != "" && md.PatientID != patientID {
		return false
	}
	return true
}

// translatePattern converts a restricted glob into an anchored regexp.
// Literal runs are quoted; only * survives as a wildcard.
func translatePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" || !patternAlphabet.MatchString(pattern) {
		return nil, ErrInvalidPattern
	}

	parts := strings.Split(pattern, "*")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("^" + strings.Join(quoted, ".*") + "$")
}
