package main

import (
	"time"

	"github.com/lqqyt2423/go-rewriteproxy/internal/helper"
	"github.com/lqqyt2423/go-rewriteproxy/rewrite"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const (
	defaultAddr    = ":9080"
	defaultWebAddr = ":9081"
)

type Config struct {
	version  bool   // show version
	filename string // read config from the filename
	flags    *pflag.FlagSet

	Addr              string   `json:"addr" yaml:"addr"`                               // proxy listen addr
	WebAddr           string   `json:"web_addr" yaml:"web_addr"`                       // web interface listen addr
	Debug             int      `json:"debug" yaml:"debug"`                             // debug mode
	Upstream          string   `json:"upstream" yaml:"upstream"`                       // upstream proxy
	StreamLargeBodies int64    `json:"stream_large_bodies" yaml:"stream_large_bodies"` // stream bodies larger than this
	IgnoreHosts       []string `json:"ignore_hosts" yaml:"ignore_hosts"`               // a list of ignore hosts
	AllowHosts        []string `json:"allow_hosts" yaml:"allow_hosts"`                 // a list of allow hosts
	Dump              string   `json:"dump" yaml:"dump"`                               // dump filename
	DumpLevel         int      `json:"dump_level" yaml:"dump_level"`                   // dump level
	ProxyAuth         string   `json:"proxy_auth" yaml:"proxy_auth"`                   // user:pass|user2:pass2

	SearchStr      string `json:"search_str" yaml:"search_str"`
	ReplaceStr     string `json:"replace_str" yaml:"replace_str"`
	RegexFile      string `json:"regex_file" yaml:"regex_file"`
	KeepCache      bool   `json:"keep_cache" yaml:"keep_cache"`
	Mime           string `json:"mime" yaml:"mime"`
	RuleTimeout    string `json:"rule_timeout" yaml:"rule_timeout"` // Go duration, "0" disables
	RecordCapacity int    `json:"record_capacity" yaml:"record_capacity"`
}

func bindFlags(flags *pflag.FlagSet, config *Config) {
	config.flags = flags
	flags.BoolVar(&config.version, "version", false, "show go-rewriteproxy version")
	flags.StringVarP(&config.filename, "file", "f", "", "read config from the filename (json or yaml)")

	flags.StringVar(&config.Addr, "addr", "", "proxy listen addr (default "+defaultAddr+")")
	flags.StringVar(&config.WebAddr, "web-addr", "", "web interface listen addr (default "+defaultWebAddr+")")
	flags.IntVar(&config.Debug, "debug", 0, "debug mode: 1 - print debug log, 2 - show debug from")
	flags.StringVar(&config.Upstream, "upstream", "", "upstream proxy, http:// or socks5://")
	flags.Int64Var(&config.StreamLargeBodies, "stream-large-bodies", 0, "stream request and response bodies larger than this many bytes")
	flags.StringArrayVar(&config.IgnoreHosts, "ignore-hosts", nil, "a list of ignore hosts")
	flags.StringArrayVar(&config.AllowHosts, "allow-hosts", nil, "a list of allow hosts")
	flags.StringVar(&config.Dump, "dump", "", "dump filename")
	flags.IntVar(&config.DumpLevel, "dump-level", 0, "dump level: 0 - header, 1 - header + body")
	flags.StringVar(&config.ProxyAuth, "proxy-auth", "", "require proxy basic auth, user:pass|user2:pass2")

	flags.StringVar(&config.SearchStr, "search-str", "", "string to search for")
	flags.StringVar(&config.ReplaceStr, "replace-str", "", "string to replace with")
	flags.StringVar(&config.RegexFile, "regex-file", "", "file containing tab separated regex/replacement pairs")
	flags.BoolVar(&config.KeepCache, "keep-cache", false, "don't kill client/server caching")
	flags.StringVar(&config.Mime, "mime", "", "content type substring eligible for rewriting (default "+rewrite.DefaultMime+")")
	flags.StringVar(&config.RuleTimeout, "rule-timeout", "", "time budget of one regex over one body (default "+rewrite.DefaultRuleTimeout.String()+")")
	flags.IntVar(&config.RecordCapacity, "record-capacity", 0, "bound the rewrite records, 0 keeps every entry")
}

func loadConfigFromFile(filename string) (*Config, error) {
	var config Config
	if err := helper.NewStructFromFile(filename, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

func mergeConfigs(fileConfig, cliConfig *Config) *Config {
	config := new(Config)
	*config = *fileConfig
	config.version = cliConfig.version
	config.filename = cliConfig.filename
	config.flags = cliConfig.flags
	if cliConfig.Addr != "" {
		config.Addr = cliConfig.Addr
	}
	if cliConfig.WebAddr != "" {
		config.WebAddr = cliConfig.WebAddr
	}
	if cliConfig.Debug != 0 {
		config.Debug = cliConfig.Debug
	}
	if cliConfig.Upstream != "" {
		config.Upstream = cliConfig.Upstream
	}
	if cliConfig.StreamLargeBodies != 0 {
		config.StreamLargeBodies = cliConfig.StreamLargeBodies
	}
	if len(cliConfig.IgnoreHosts) > 0 {
		config.IgnoreHosts = cliConfig.IgnoreHosts
	}
	if len(cliConfig.AllowHosts) > 0 {
		config.AllowHosts = cliConfig.AllowHosts
	}
	if cliConfig.Dump != "" {
		config.Dump = cliConfig.Dump
	}
	if cliConfig.DumpLevel != 0 {
		config.DumpLevel = cliConfig.DumpLevel
	}
	if cliConfig.ProxyAuth != "" {
		config.ProxyAuth = cliConfig.ProxyAuth
	}
	if cliConfig.SearchStr != "" {
		config.SearchStr = cliConfig.SearchStr
	}
	// an empty replacement is meaningful, so an explicit flag always wins
	if cliConfig.ReplaceStr != "" || cliConfig.changed("replace-str") {
		config.ReplaceStr = cliConfig.ReplaceStr
	}
	if cliConfig.RegexFile != "" {
		config.RegexFile = cliConfig.RegexFile
	}
	if cliConfig.KeepCache || cliConfig.changed("keep-cache") {
		config.KeepCache = cliConfig.KeepCache
	}
	if cliConfig.Mime != "" {
		config.Mime = cliConfig.Mime
	}
	if cliConfig.RuleTimeout != "" {
		config.RuleTimeout = cliConfig.RuleTimeout
	}
	if cliConfig.RecordCapacity != 0 {
		config.RecordCapacity = cliConfig.RecordCapacity
	}
	return config
}

func (c *Config) changed(name string) bool {
	return c.flags != nil && c.flags.Changed(name)
}

func loadConfig(cliConfig *Config) *Config {
	config := cliConfig
	if cliConfig.filename != "" {
		fileConfig, err := loadConfigFromFile(cliConfig.filename)
		if err != nil {
			log.Warnf("read config from %v error %v", cliConfig.filename, err)
		} else {
			config = mergeConfigs(fileConfig, cliConfig)
		}
	}

	if config.Addr == "" {
		config.Addr = defaultAddr
	}
	if config.WebAddr == "" {
		config.WebAddr = defaultWebAddr
	}
	return config
}

// rewriteConfig builds the engine configuration, a bad duration is a ConfigurationError.
func (c *Config) rewriteConfig() (*rewrite.Config, error) {
	timeout := rewrite.DefaultRuleTimeout
	if c.RuleTimeout != "" {
		d, err := time.ParseDuration(c.RuleTimeout)
		if err != nil {
			return nil, &rewrite.ConfigurationError{Reason: "invalid rule_timeout " + c.RuleTimeout, Err: err}
		}
		timeout = d
	}
	return &rewrite.Config{
		SearchStr:      c.SearchStr,
		ReplaceStr:     c.ReplaceStr,
		RegexFile:      c.RegexFile,
		KeepCache:      c.KeepCache,
		Mime:           c.Mime,
		RuleTimeout:    timeout,
		RecordCapacity: c.RecordCapacity,
	}, nil
}
