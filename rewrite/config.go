package rewrite

import (
	"fmt"
	"time"
)

const (
	DefaultMime        = "text/html"
	DefaultRuleTimeout = time.Second
)

// Config is read once when the engine is built and never changes afterwards.
type Config struct {
	// SearchStr empty means no literal rule.
	SearchStr  string
	ReplaceStr string

	// RegexFile holds tab separated pattern/replacement pairs, one per line.
	RegexFile string

	// KeepCache disables cache suppression. The engine itself ignores it,
	// it is carried here so a single Config describes the whole stage.
	KeepCache bool

	// Mime is the substring a response Content-Type must contain to be rewritten.
	Mime string

	// RuleTimeout bounds a single pattern rule over a single body. Zero disables the bound.
	RuleTimeout time.Duration

	// RecordCapacity bounds the bookkeeping stores with LRU eviction.
	// Zero or less keeps every entry for the life of the process.
	RecordCapacity int
}

func (c *Config) hasLiteral() bool {
	return c.SearchStr != ""
}

func (c *Config) mime() string {
	if c.Mime == "" {
		return DefaultMime
	}
	return c.Mime
}

func (c *Config) Validate() error {
	if !c.hasLiteral() && c.RegexFile == "" {
		return &ConfigurationError{Reason: "please provide a search string or a regex file"}
	}
	if c.RuleTimeout < 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("invalid rule timeout %v", c.RuleTimeout)}
	}
	return nil
}
