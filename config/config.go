// Package config gathers the operator-facing knobs of a running agent
// supervisor into one value: the inactivity timeout and shutdown delay of
// §4.7, the default VFS persistence debounce of §4.2, and the model/
// conversation identity a caller would otherwise have to thread through
// agentserver.Options and vfs.PersistenceConfig by hand. Constructed via
// functional options (the runtime.Options/RuntimeOption pattern), with an
// optional YAML loader for file-driven defaults.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the durations and identity values every long-lived agent
// needs, independent of the concrete collaborators (event bus, logger,
// persistence backend) that agentserver.Options and vfs.PersistenceConfig
// also require.
type Config struct {
	// ModelHandle is the default model an agent.Attrs is built with.
	ModelHandle string
	// ConversationID seeds agentserver.Options.ConversationID.
	ConversationID string
	// InactivityTimeout is how long an idle AgentServer waits before
	// broadcasting agent_shutdown (§4.7). Zero disables the timer.
	InactivityTimeout time.Duration
	// ShutdownDelay is the grace period between agent_shutdown and the
	// OnShutdown hook firing (§4.7).
	ShutdownDelay time.Duration
	// DefaultDebounce is the coalescing window applied to a VFS base
	// directory's PersistenceConfig when none is given explicitly (§4.2).
	DefaultDebounce time.Duration
}

// defaults mirrors the values spec.md's worked examples use throughout §4.7
// and §4.2 discussion: a five-minute inactivity timeout, a ten-second
// shutdown grace period, and a two-second write debounce.
func defaults() Config {
	return Config{
		InactivityTimeout: 5 * time.Minute,
		ShutdownDelay:     10 * time.Second,
		DefaultDebounce:   2 * time.Second,
	}
}

// Option configures a Config at construction time.
type Option func(*Config)

// WithModelHandle sets the default model handle.
func WithModelHandle(handle string) Option {
	return func(c *Config) { c.ModelHandle = handle }
}

// WithConversationID sets the default conversation id.
func WithConversationID(id string) Option {
	return func(c *Config) { c.ConversationID = id }
}

// WithInactivityTimeout overrides the default inactivity timeout. A
// non-positive value disables the timer, matching agentserver.Options'
// own "0/negative disables the timer" contract.
func WithInactivityTimeout(d time.Duration) Option {
	return func(c *Config) { c.InactivityTimeout = d }
}

// WithShutdownDelay overrides the default shutdown grace period.
func WithShutdownDelay(d time.Duration) Option {
	return func(c *Config) { c.ShutdownDelay = d }
}

// WithDefaultDebounce overrides the default VFS write debounce.
func WithDefaultDebounce(d time.Duration) Option {
	return func(c *Config) { c.DefaultDebounce = d }
}

// New returns a Config seeded with defaults and then overridden by opts, in
// order.
func New(opts ...Option) Config {
	c := defaults()
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}

// fileConfig is the YAML-facing mirror of Config: durations are expressed
// in milliseconds so operators can edit plain integers rather than Go
// duration strings, matching the debounce_ms/inactivity_timeout_ms/
// shutdown_delay_ms naming spec.md itself uses.
type fileConfig struct {
	ModelHandle         string `yaml:"model_handle"`
	ConversationID      string `yaml:"conversation_id"`
	InactivityTimeoutMS int64  `yaml:"inactivity_timeout_ms"`
	ShutdownDelayMS     int64  `yaml:"shutdown_delay_ms"`
	DefaultDebounceMS   int64  `yaml:"default_debounce_ms"`
}

// LoadYAML parses data as YAML and returns a Config seeded with defaults,
// with any field present in data overriding its default. Zero/absent
// duration fields in data are left at their Config default rather than
// forced to zero, since a YAML file is expected to be a partial override,
// not a full restatement of every field.
func LoadYAML(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("config: parse yaml: %w", err)
	}
	c := defaults()
	if fc.ModelHandle != "" {
		c.ModelHandle = fc.ModelHandle
	}
	if fc.ConversationID != "" {
		c.ConversationID = fc.ConversationID
	}
	if fc.InactivityTimeoutMS != 0 {
		c.InactivityTimeout = time.Duration(fc.InactivityTimeoutMS) * time.Millisecond
	}
	if fc.ShutdownDelayMS != 0 {
		c.ShutdownDelay = time.Duration(fc.ShutdownDelayMS) * time.Millisecond
	}
	if fc.DefaultDebounceMS != 0 {
		c.DefaultDebounce = time.Duration(fc.DefaultDebounceMS) * time.Millisecond
	}
	return c, nil
}
