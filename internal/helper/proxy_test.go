package helper

import (
	"bufio"
	"context"
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConnectProxy answers every CONNECT with status and then echoes the tunnel.
func fakeConnectProxy(t *testing.T, status string) (*url.URL, <-chan *http.Request) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	reqs := make(chan *http.Request, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		br := bufio.NewReader(conn)
		req, err := http.ReadRequest(br)
		if err != nil {
			return
		}
		reqs <- req
		io.WriteString(conn, "HTTP/1.1 "+status+"\r\n\r\n")
		io.Copy(conn, br)
	}()

	return &url.URL{Scheme: "http", Host: ln.Addr().String()}, reqs
}

func TestGetProxyConn(t *testing.T) {
	proxyUrl, reqs := fakeConnectProxy(t, "200 Connection Established")

	conn, err := GetProxyConn(context.Background(), proxyUrl, "example.com:80")
	require.NoError(t, err)
	defer conn.Close()
	req := <-reqs
	assert.Equal(t, "example.com:80", req.Host)
	assert.Empty(t, req.Header.Get("Proxy-Authorization"))

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
}

func TestGetProxyConnCredentials(t *testing.T) {
	proxyUrl, reqs := fakeConnectProxy(t, "200 Connection Established")
	proxyUrl.User = url.UserPassword("us@r", "p:ss%20/")

	conn, err := GetProxyConn(context.Background(), proxyUrl, "example.com:80")
	require.NoError(t, err)
	defer conn.Close()

	// credentials go out as written, not percent escaped
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("us@r:p:ss%20/"))
	assert.Equal(t, want, (<-reqs).Header.Get("Proxy-Authorization"))
}

func TestGetProxyConnRefused(t *testing.T) {
	proxyUrl, _ := fakeConnectProxy(t, "407 Proxy Authentication Required")

	_, err := GetProxyConn(context.Background(), proxyUrl, "example.com:80")
	require.Error(t, err)
	assert.Equal(t, "Proxy Authentication Required", err.Error())
}

func TestGetProxyConnScheme(t *testing.T) {
	_, err := GetProxyConn(context.Background(), &url.URL{Scheme: "ftp", Host: "127.0.0.1:21"}, "example.com:80")
	assert.Error(t, err)
}
