package proxy

import (
	"context"
	"net"
	"net/http"
	"net/url"

	"github.com/lqqyt2423/go-rewriteproxy/internal/helper"
	log "github.com/sirupsen/logrus"
)

const Version = "1.2.0"

type Options struct {
	Debug             int
	Addr              string
	StreamLargeBodies int64  // 当请求或响应体大于此字节时，转为 stream 模式
	Upstream          string // http:// or socks5:// upstream proxy
}

type Proxy struct {
	Opts    *Options
	Version string
	Addons  []Addon

	entry         *entry
	forwarder     *forwarder
	upstreamProxy func(req *http.Request) (*url.URL, error)
	authProxy     func(res http.ResponseWriter, req *http.Request) (bool, error)
}

func NewProxy(opts *Options) (*Proxy, error) {
	if opts.StreamLargeBodies <= 0 {
		opts.StreamLargeBodies = 1024 * 1024 * 5 // 5mb
	}
	if opts.Upstream != "" {
		if _, err := url.Parse(opts.Upstream); err != nil {
			return nil, err
		}
	}

	proxy := &Proxy{
		Opts:    opts,
		Version: Version,
		Addons:  make([]Addon, 0),
	}
	proxy.entry = newEntry(proxy)
	proxy.forwarder = newForwarder(proxy)

	return proxy, nil
}

func (proxy *Proxy) AddAddon(addon Addon) {
	proxy.Addons = append(proxy.Addons, addon)
}

func (proxy *Proxy) Start() error {
	addr := proxy.Opts.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return proxy.Serve(ln)
}

// Serve accepts client connections on ln until the proxy is closed.
func (proxy *Proxy) Serve(ln net.Listener) error {
	log.Infof("Proxy start listen at %v\n", ln.Addr())
	return proxy.entry.serve(ln)
}

func (proxy *Proxy) Close() error {
	return proxy.entry.close()
}

func (proxy *Proxy) Shutdown(ctx context.Context) error {
	return proxy.entry.shutdown(ctx)
}

func (proxy *Proxy) SetUpstreamProxy(fn func(req *http.Request) (*url.URL, error)) {
	proxy.upstreamProxy = fn
}

// SetAuthProxy installs a check run on every request before it is proxied,
// a false result answers 407.
func (proxy *Proxy) SetAuthProxy(fn func(res http.ResponseWriter, req *http.Request) (bool, error)) {
	proxy.authProxy = fn
}

func (proxy *Proxy) realUpstreamProxy() func(*http.Request) (*url.URL, error) {
	return func(cReq *http.Request) (*url.URL, error) {
		req := cReq.Context().Value(proxyReqCtxKey).(*http.Request)
		return proxy.getUpstreamProxyUrl(req)
	}
}

func (proxy *Proxy) getUpstreamProxyUrl(req *http.Request) (*url.URL, error) {
	if proxy.upstreamProxy != nil {
		return proxy.upstreamProxy(req)
	}
	if len(proxy.Opts.Upstream) > 0 {
		return url.Parse(proxy.Opts.Upstream)
	}
	// CONNECT targets carry no scheme
	scheme := req.URL.Scheme
	if scheme == "" {
		scheme = "https"
	}
	cReq := &http.Request{URL: &url.URL{Scheme: scheme, Host: req.Host}}
	return http.ProxyFromEnvironment(cReq)
}

func (proxy *Proxy) getUpstreamConn(ctx context.Context, req *http.Request) (net.Conn, error) {
	proxyUrl, err := proxy.getUpstreamProxyUrl(req)
	if err != nil {
		return nil, err
	}
	address := helper.CanonicalAddr(req.URL)
	if proxyUrl != nil {
		return helper.GetProxyConn(ctx, proxyUrl, address)
	}
	return (&net.Dialer{}).DialContext(ctx, "tcp", address)
}
