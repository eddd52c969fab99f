package web

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/lqqyt2423/go-rewriteproxy/internal/observability"
	"github.com/lqqyt2423/go-rewriteproxy/proxy"
	"github.com/lqqyt2423/go-rewriteproxy/rewrite"
	"github.com/prometheus/client_golang/prometheus"
	_log "github.com/sirupsen/logrus"
)

var log = _log.WithField("at", "web addon")

// WebAddon serves /metrics, a /records snapshot of the engine and a /ws
// stream of rewrite passes and completed flows.
type WebAddon struct {
	proxy.BaseAddon
	addr      string
	engine    *rewrite.Engine
	upgrader  *websocket.Upgrader
	serverMux *http.ServeMux
	server    *http.Server

	conns   []*concurrentConn
	connsMu sync.RWMutex
}

func NewWebAddon(addr string, engine *rewrite.Engine, reg *prometheus.Registry, metrics *observability.Metrics) *WebAddon {
	web := &WebAddon{
		addr:   addr,
		engine: engine,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns: make([]*concurrentConn, 0),
	}

	web.serverMux = new(http.ServeMux)
	web.serverMux.Handle("/metrics", metrics.Handler(reg))
	web.serverMux.HandleFunc("/records", web.records)
	web.serverMux.HandleFunc("/ws", web.echo)
	web.server = &http.Server{Addr: addr, Handler: web.serverMux}

	engine.OnPass(web.sendPass)
	return web
}

func (web *WebAddon) Handler() http.Handler {
	return web.serverMux
}

// Start serves in the background, a listen failure is only logged.
func (web *WebAddon) Start() {
	go func() {
		log.Infof("web interface start listen at %v\n", web.addr)
		err := web.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Error(err)
		}
	}()
}

func (web *WebAddon) Close() error {
	return web.server.Close()
}

func (web *WebAddon) records(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(web.engine.Snapshot()); err != nil {
		log.Error(err)
	}
}

func (web *WebAddon) echo(w http.ResponseWriter, r *http.Request) {
	c, err := web.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Print("upgrade:", err)
		return
	}

	conn := newConn(c)
	web.addConn(conn)
	defer func() {
		web.removeConn(conn)
		c.Close()
	}()

	conn.readloop()
}

func (web *WebAddon) addConn(c *concurrentConn) {
	web.connsMu.Lock()
	web.conns = append(web.conns, c)
	web.connsMu.Unlock()
}

func (web *WebAddon) removeConn(conn *concurrentConn) {
	web.connsMu.Lock()
	defer web.connsMu.Unlock()

	index := -1
	for i, c := range web.conns {
		if conn == c {
			index = i
			break
		}
	}

	if index == -1 {
		return
	}
	web.conns = append(web.conns[:index], web.conns[index+1:]...)
}

func (web *WebAddon) connCount() int {
	web.connsMu.RLock()
	defer web.connsMu.RUnlock()
	return len(web.conns)
}

func (web *WebAddon) send(msg *message) {
	web.connsMu.RLock()
	conns := make([]*concurrentConn, len(web.conns))
	copy(conns, web.conns)
	web.connsMu.RUnlock()

	if len(conns) == 0 {
		return
	}

	b, err := msg.bytes()
	if err != nil {
		log.Error(err)
		return
	}
	for _, c := range conns {
		if err := c.writeMessage(b); err != nil {
			log.Debug(err)
		}
	}
}

func (web *WebAddon) sendPass(p *rewrite.Pass) {
	web.send(newMessagePass(p))
}

func (web *WebAddon) Response(f *proxy.Flow) {
	web.send(newMessageFlow(f))
}
