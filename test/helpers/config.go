package helpers

import (
	"strconv"
	"strings"
	"time"

	"github.com/andrescamacho/commuter-go/internal/application/ports"
)

// MapConfig is a fixed-map ConfigView for tests
type MapConfig struct {
	Values map[string]string
}

var _ ports.ConfigView = (*MapConfig)(nil)

func (c *MapConfig) String(key, def string) string {
	if v, ok := c.Values[key]; ok {
		return v
	}
	return def
}

func (c *MapConfig) Int(key string, def int) int {
	if v, ok := c.Values[key]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func (c *MapConfig) Float(key string, def float64) float64 {
	if v, ok := c.Values[key]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func (c *MapConfig) Bool(key string, def bool) bool {
	if v, ok := c.Values[key]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func (c *MapConfig) Duration(key string, def time.Duration) time.Duration {
	if v, ok := c.Values[key]; ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func (c *MapConfig) Section(prefix string) map[string]string {
	out := make(map[string]string)
	for k, v := range c.Values {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out
}

func (c *MapConfig) OnChange(string, func(map[string]string)) {}
