package addon

import (
	"github.com/lqqyt2423/go-rewriteproxy/internal/helper"
	"github.com/lqqyt2423/go-rewriteproxy/proxy"
	_log "github.com/sirupsen/logrus"
)

var log = _log.WithField("at", "addon")

// Scope limits which hosts the addons act on. An empty AllowHosts allows every
// host, IgnoreHosts always wins.
type Scope struct {
	IgnoreHosts []string
	AllowHosts  []string
}

// Contains reports whether address (host or host:port) is in scope.
func (s *Scope) Contains(address string) bool {
	if s == nil {
		return true
	}
	if len(s.IgnoreHosts) > 0 && helper.MatchHost(address, s.IgnoreHosts) {
		return false
	}
	if len(s.AllowHosts) > 0 {
		return helper.MatchHost(address, s.AllowHosts)
	}
	return true
}

// flowInScope skips tunnelled flows, their bytes are never seen.
func (s *Scope) flowInScope(f *proxy.Flow) bool {
	if f.Request.Method == "CONNECT" {
		return false
	}
	return s.Contains(f.Request.URL.Host)
}
