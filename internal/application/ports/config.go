package ports

import "time"

// ConfigView is the read side of the live configuration service. Values are
// stored as strings and parsed per declared type; every getter falls back to
// the caller's default on unknown or invalid values.
type ConfigView interface {
	String(key, def string) string
	Int(key string, def int) int
	Float(key string, def float64) float64
	Bool(key string, def bool) bool
	Duration(key string, def time.Duration) time.Duration

	// Section returns every key under the prefix with its raw string value
	Section(prefix string) map[string]string

	// OnChange registers a callback fired after a refresh changes any key
	// under the prefix.
	OnChange(prefix string, fn func(changed map[string]string))
}
