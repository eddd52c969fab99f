package addon

import (
	"github.com/lqqyt2423/go-rewriteproxy/proxy"
	"github.com/lqqyt2423/go-rewriteproxy/rewrite"
	_log "github.com/sirupsen/logrus"
)

// Replace rewrites eligible response bodies with the engine's rules and
// suppresses caching on the same flows through the embedded CacheKill.
type Replace struct {
	*CacheKill
	Engine *rewrite.Engine
}

func NewReplace(engine *rewrite.Engine, cacheKill *CacheKill) *Replace {
	return &Replace{
		CacheKill: cacheKill,
		Engine:    engine,
	}
}

func (r *Replace) Response(f *proxy.Flow) {
	if f.Stream || !f.ResponseBodyAllowed() || !r.Scope.flowInScope(f) {
		return
	}

	log := log.WithFields(_log.Fields{
		"in":  "Replace",
		"url": f.Request.URL.String(),
	})

	eligible := r.Engine.IsEligible(f.Response.Header.Get("Content-Type"))
	r.Metrics.ObserveFlow(eligible)
	if !eligible {
		return
	}

	body, err := f.Response.DecodedBody()
	if err != nil {
		log.Warnf("body not rewritten: %v", err)
		return
	}

	out := r.Engine.Apply(string(body), f.ConnContext.ClientConn.IP(), f.Request.Hostname())
	f.Response.SetBody([]byte(out))
}
