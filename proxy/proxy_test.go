package proxy

import (
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSendRequest(t *testing.T, endpoint string, client *http.Client, bodyWant string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("GET", endpoint, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, bodyWant, string(body))
	return resp
}

// addon for test intercept
type interceptAddon struct {
	BaseAddon
}

func (addon *interceptAddon) Request(f *Flow) {
	// intercept request, should not send request to real endpoint
	if f.Request.URL.Path == "/intercept-request" {
		f.Response = &Response{
			StatusCode: 200,
			Body:       []byte("intercept-request"),
		}
	}
}

func (addon *interceptAddon) Response(f *Flow) {
	if f.Request.URL.Path == "/rewrite-response" {
		f.Response.SetBody([]byte("a much longer body than the origin sent"))
	}
}

// addon for test functions' execute order
type testOrderAddon struct {
	BaseAddon
	mu     sync.Mutex
	orders []string
}

func (addon *testOrderAddon) add(name string) {
	addon.mu.Lock()
	defer addon.mu.Unlock()
	addon.orders = append(addon.orders, name)
}

func (addon *testOrderAddon) snapshot() []string {
	addon.mu.Lock()
	defer addon.mu.Unlock()
	return append([]string(nil), addon.orders...)
}

func (addon *testOrderAddon) ClientConnected(*ClientConn)    { addon.add("ClientConnected") }
func (addon *testOrderAddon) ClientDisconnected(*ClientConn) { addon.add("ClientDisconnected") }
func (addon *testOrderAddon) Requestheaders(*Flow)           { addon.add("Requestheaders") }
func (addon *testOrderAddon) Request(*Flow)                  { addon.add("Request") }
func (addon *testOrderAddon) Responseheaders(*Flow)          { addon.add("Responseheaders") }
func (addon *testOrderAddon) Response(*Flow)                 { addon.add("Response") }

func newTestProxy(t *testing.T, addons ...Addon) (*Proxy, *url.URL) {
	t.Helper()
	p, err := NewProxy(&Options{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	// never pick up a proxy from the environment
	p.SetUpstreamProxy(func(*http.Request) (*url.URL, error) { return nil, nil })
	for _, addon := range addons {
		p.AddAddon(addon)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go p.Serve(ln)
	t.Cleanup(func() { p.Close() })

	proxyUrl, err := url.Parse("http://" + ln.Addr().String())
	require.NoError(t, err)
	return p, proxyUrl
}

func newOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/rewrite-response", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "5")
		w.Write([]byte("short"))
	})
	mux.HandleFunc("/headers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("Proxy-Connection") + "|" + r.Header.Get("X-Test")))
	})
	mux.HandleFunc("/no-content", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return httptest.NewServer(mux)
}

func TestProxy(t *testing.T) {
	origin := newOrigin(t)
	defer origin.Close()

	tlsOrigin := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tunnelled"))
	}))
	defer tlsOrigin.Close()

	_, proxyUrl := newTestProxy(t, &interceptAddon{})

	client := &http.Client{
		Transport: &http.Transport{
			Proxy:           http.ProxyURL(proxyUrl),
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}

	t.Run("can proxy http", func(t *testing.T) {
		testSendRequest(t, origin.URL, client, "ok")
	})

	t.Run("can tunnel connect", func(t *testing.T) {
		testSendRequest(t, tlsOrigin.URL, client, "tunnelled")
	})

	t.Run("can intercept request", func(t *testing.T) {
		testSendRequest(t, origin.URL+"/intercept-request", client, "intercept-request")
	})

	t.Run("recomputes content length of a rewritten body", func(t *testing.T) {
		resp := testSendRequest(t, origin.URL+"/rewrite-response", client, "a much longer body than the origin sent")
		assert.Equal(t, int64(len("a much longer body than the origin sent")), resp.ContentLength)
	})

	t.Run("strips proxy headers", func(t *testing.T) {
		req, err := http.NewRequest("GET", origin.URL+"/headers", nil)
		require.NoError(t, err)
		req.Header.Set("Proxy-Connection", "keep-alive")
		req.Header.Set("X-Test", "kept")
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "|kept", string(body))
	})

	t.Run("keeps no content responses empty", func(t *testing.T) {
		resp := testSendRequest(t, origin.URL+"/no-content", client, "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("rejects direct requests", func(t *testing.T) {
		resp, err := http.Get(proxyUrl.String() + "/")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, 400, resp.StatusCode)
	})
}

func TestAddonExecuteOrder(t *testing.T) {
	origin := newOrigin(t)
	defer origin.Close()

	addon := &testOrderAddon{}
	_, proxyUrl := newTestProxy(t, addon)

	client := &http.Client{
		Transport: &http.Transport{
			Proxy:             http.ProxyURL(proxyUrl),
			DisableKeepAlives: true,
		},
	}
	testSendRequest(t, origin.URL, client, "ok")

	want := []string{
		"ClientConnected",
		"Requestheaders",
		"Request",
		"Responseheaders",
		"Response",
		"ClientDisconnected",
	}
	assert.Eventually(t, func() bool {
		return len(addon.snapshot()) == len(want)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, addon.snapshot())
}

func TestClientConnIP(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	// net.Pipe addresses carry no port
	c := newClientConn(client)
	assert.Equal(t, "pipe", c.IP())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()
	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, "127.0.0.1", newClientConn(conn).IP())
	assert.True(t, strings.Contains(newClientConn(conn).Conn.RemoteAddr().String(), ":"))
}

func TestProxyAuth(t *testing.T) {
	origin := newOrigin(t)
	defer origin.Close()

	p, err := NewProxy(&Options{})
	require.NoError(t, err)
	p.SetUpstreamProxy(func(*http.Request) (*url.URL, error) { return nil, nil })
	p.SetAuthProxy(func(res http.ResponseWriter, req *http.Request) (bool, error) {
		return req.Header.Get("Proxy-Authorization") == "Basic dTpw", nil
	})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go p.Serve(ln)
	defer p.Close()

	proxyUrl := &url.URL{Scheme: "http", Host: ln.Addr().String()}
	client := &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxyUrl)}}
	resp, err := client.Get(origin.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusProxyAuthRequired, resp.StatusCode)

	authed := *proxyUrl
	authed.User = url.UserPassword("u", "p")
	client = &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(&authed)}}
	testSendRequest(t, origin.URL, client, "ok")
}
