package cache

import (
	"fmt"
	"strings"
)

// StatsGenerationKey is bumped on every error write. Cached counters are
// keyed by generation, so a write orphans every earlier entry.
const StatsGenerationKey = "errors:stats:gen"

// StatsKey holds the dashboard counters computed in generation gen.
func StatsKey(gen string) string {
	return fmt.Sprintf("errors:stats:v%s", gen)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

// CategoryNameKey maps a category name to its id. Names are matched
// case-insensitively.
func CategoryNameKey(name string) string {
	return fmt.Sprintf("category:name:%s", strings.ToLower(strings.TrimSpace(name)))
}
