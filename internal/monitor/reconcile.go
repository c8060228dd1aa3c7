package monitor

import "github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/types"

// Changed reports whether a freshly fetched tweet set differs from the
// cached set. Unchanged only when both have equal cardinality and every
// fresh tweet id is already cached; anything else replaces the cache
// wholesale.
func Changed(fresh, cached []types.CachedTweet) bool {
	if len(fresh) != len(cached) {
		return true
	}

	cachedIDs := make(map[string]struct{}, len(cached))
	for _, t := range cached {
		cachedIDs[t.TweetID] = struct{}{}
	}

	for _, t := range fresh {
		if _, ok := cachedIDs[t.TweetID]; !ok {
			return true
		}
	}
	return false
}
