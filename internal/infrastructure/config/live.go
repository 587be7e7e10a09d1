package config

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andrescamacho/commuter-go/internal/adapters/cms"
	"github.com/andrescamacho/commuter-go/internal/application/logging"
	"github.com/andrescamacho/commuter-go/internal/application/ports"
)

// EntrySource provides the raw operational configuration rows. The CMS store
// satisfies it.
type EntrySource interface {
	ConfigEntries(ctx context.Context) ([]cms.ConfigEntryDTO, error)
}

type liveEntry struct {
	valueType    string
	value        string
	defaultValue string
}

type liveSnapshot struct {
	entries map[string]liveEntry
}

type changeHook struct {
	prefix string
	fn     func(changed map[string]string)
}

// Live is the CMS-backed operational configuration. Reads are lock-free off
// an atomic snapshot; Refresh swaps the snapshot and fires change callbacks.
//
// Every getter parses the stored value against the row's declared type; a
// value that fails to parse falls back to the row's default, and a missing or
// unparsable row falls back to the caller's default with a warning.
type Live struct {
	source EntrySource
	logger logging.OperationLogger

	snap atomic.Pointer[liveSnapshot]

	hookMu sync.Mutex
	hooks  []changeHook

	// keys already warned about, to avoid a warning per read
	warnMu sync.Mutex
	warned map[string]bool
}

var _ ports.ConfigView = (*Live)(nil)

// NewLive creates the live configuration with an empty snapshot. Call
// Refresh before serving reads; until then every getter returns its default.
func NewLive(source EntrySource, logger logging.OperationLogger) *Live {
	l := &Live{
		source: source,
		logger: logger,
		warned: make(map[string]bool),
	}
	l.snap.Store(&liveSnapshot{entries: map[string]liveEntry{}})
	return l
}

// Refresh pulls the configuration rows, swaps the snapshot and fires change
// callbacks for every prefix with at least one changed key.
func (l *Live) Refresh(ctx context.Context) error {
	rows, err := l.source.ConfigEntries(ctx)
	if err != nil {
		return err
	}

	entries := make(map[string]liveEntry, len(rows))
	for _, row := range rows {
		key := row.Key
		if row.Section != "" {
			key = row.Section + "." + row.Key
		}
		entries[key] = liveEntry{
			valueType:    row.ValueType,
			value:        row.Value,
			defaultValue: row.DefaultValue,
		}
	}

	old := l.snap.Swap(&liveSnapshot{entries: entries})

	changed := make(map[string]string)
	for key, e := range entries {
		if prev, ok := old.entries[key]; !ok || prev.value != e.value {
			changed[key] = e.value
		}
	}
	for key := range old.entries {
		if _, ok := entries[key]; !ok {
			changed[key] = ""
		}
	}
	if len(changed) > 0 {
		l.fireHooks(changed)
	}
	return nil
}

func (l *Live) fireHooks(changed map[string]string) {
	l.hookMu.Lock()
	hooks := make([]changeHook, len(l.hooks))
	copy(hooks, l.hooks)
	l.hookMu.Unlock()

	for _, h := range hooks {
		subset := make(map[string]string)
		for key, val := range changed {
			if strings.HasPrefix(key, h.prefix) {
				subset[key] = val
			}
		}
		if len(subset) > 0 {
			h.fn(subset)
		}
	}
}

// OnChange registers a callback for changes under the prefix
func (l *Live) OnChange(prefix string, fn func(changed map[string]string)) {
	l.hookMu.Lock()
	defer l.hookMu.Unlock()
	l.hooks = append(l.hooks, changeHook{prefix: prefix, fn: fn})
}

// Section returns every key under the prefix with its raw string value
func (l *Live) Section(prefix string) map[string]string {
	out := make(map[string]string)
	for key, e := range l.snap.Load().entries {
		if strings.HasPrefix(key, prefix) {
			out[key] = e.value
		}
	}
	return out
}

func (l *Live) warnOnce(key, reason string) {
	l.warnMu.Lock()
	already := l.warned[key]
	l.warned[key] = true
	l.warnMu.Unlock()
	if !already && l.logger != nil {
		l.logger.Log("WARN", "configuration value falling back to default", map[string]interface{}{
			"key": key, "reason": reason,
		})
	}
}

// lookup resolves the raw value for a key: the stored value first, the row's
// default second. ok is false when the key is absent entirely.
func (l *Live) lookup(key string) (liveEntry, bool) {
	e, ok := l.snap.Load().entries[key]
	return e, ok
}

func (l *Live) String(key, def string) string {
	e, ok := l.lookup(key)
	if !ok {
		return def
	}
	if e.value != "" {
		return e.value
	}
	if e.defaultValue != "" {
		return e.defaultValue
	}
	return def
}

func (l *Live) Int(key string, def int) int {
	e, ok := l.lookup(key)
	if !ok {
		return def
	}
	for _, raw := range []string{e.value, e.defaultValue} {
		if raw == "" {
			continue
		}
		if v, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			return v
		}
	}
	l.warnOnce(key, "not an integer")
	return def
}

func (l *Live) Float(key string, def float64) float64 {
	e, ok := l.lookup(key)
	if !ok {
		return def
	}
	for _, raw := range []string{e.value, e.defaultValue} {
		if raw == "" {
			continue
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return v
		}
	}
	l.warnOnce(key, "not a number")
	return def
}

func (l *Live) Bool(key string, def bool) bool {
	e, ok := l.lookup(key)
	if !ok {
		return def
	}
	for _, raw := range []string{e.value, e.defaultValue} {
		if raw == "" {
			continue
		}
		if v, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			return v
		}
	}
	l.warnOnce(key, "not a boolean")
	return def
}

// Duration parses a Go duration string, or a bare number scaled by the unit
// the key name declares (_seconds, _minutes, _ms). Bare numbers on unsuffixed
// keys read as seconds.
func (l *Live) Duration(key string, def time.Duration) time.Duration {
	e, ok := l.lookup(key)
	if !ok {
		return def
	}
	for _, raw := range []string{e.value, e.defaultValue} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return time.Duration(v * float64(unitFor(key)))
		}
	}
	l.warnOnce(key, "not a duration")
	return def
}

func unitFor(key string) time.Duration {
	switch {
	case strings.HasSuffix(key, "_ms"):
		return time.Millisecond
	case strings.HasSuffix(key, "_minutes"):
		return time.Minute
	default:
		return time.Second
	}
}
