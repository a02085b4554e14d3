package connection

import (
	"strings"
	"time"
)

// Fallback lifetimes used when a provider omits or garbles an expiry date.
// Parsing an expiry never fails an exchange.
const (
	DefaultAccessTokenTTL  = 24 * time.Hour
	DefaultRefreshTokenTTL = 72 * time.Hour
)

// ResolveExpiry parses a provider expiry string with the given layouts, interpreting
// zone-less layouts in loc. It returns now+fallback and false when nothing parses.
func ResolveExpiry(raw string, layouts []string, loc *time.Location, fallback time.Duration, now time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.Add(fallback), false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return now.Add(fallback), false
}
