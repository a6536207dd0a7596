package firebase

// Temporal predicates compare a claim instant against the current instant,
// both expressed in milliseconds since the Unix epoch.

// IsPast reports whether instant lies strictly before now
func IsPast(instant, now int64) bool {
	return instant < now
}

// IsFuture reports whether instant lies strictly after now
func IsFuture(instant, now int64) bool {
	return instant > now
}

// IsNow reports whether instant equals now at millisecond resolution
func IsNow(instant, now int64) bool {
	return instant == now
}
