package addon

import (
	"github.com/lqqyt2423/go-rewriteproxy/cachekill"
	"github.com/lqqyt2423/go-rewriteproxy/internal/observability"
	"github.com/lqqyt2423/go-rewriteproxy/proxy"
	_log "github.com/sirupsen/logrus"
)

// CacheKill strips caching from every in scope request and response, unless
// the suppressor runs in keep-cache mode.
type CacheKill struct {
	proxy.BaseAddon
	Suppressor *cachekill.Suppressor
	Scope      *Scope
	Metrics    *observability.Metrics
}

func NewCacheKill(suppressor *cachekill.Suppressor, scope *Scope, metrics *observability.Metrics) *CacheKill {
	return &CacheKill{
		Suppressor: suppressor,
		Scope:      scope,
		Metrics:    metrics,
	}
}

func (c *CacheKill) ClientConnected(client *proxy.ClientConn) {
	if !c.Suppressor.Enabled() {
		return
	}
	log.WithFields(_log.Fields{
		"in":     "CacheKill",
		"client": client.IP(),
	}).Debug("cache suppression active for connection")
}

func (c *CacheKill) Requestheaders(f *proxy.Flow) {
	if !c.Suppressor.Enabled() || !c.Scope.flowInScope(f) {
		return
	}
	c.Suppressor.SuppressRequest(f.Request.Header)
	c.Metrics.ObserveSuppression("request")
}

func (c *CacheKill) Responseheaders(f *proxy.Flow) {
	if !c.Suppressor.Enabled() || !c.Scope.flowInScope(f) {
		return
	}
	c.Suppressor.SuppressResponse(f.Response.Header)
	c.Metrics.ObserveSuppression("response")
}
