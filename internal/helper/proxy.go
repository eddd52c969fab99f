package helper

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	xproxy "golang.org/x/net/proxy"
)

// GetProxyConn opens a tunnel to address through the upstream proxy at proxyUrl.
// http upstreams are asked with CONNECT, socks5 upstreams go through x/net/proxy.
func GetProxyConn(ctx context.Context, proxyUrl *url.URL, address string) (net.Conn, error) {
	switch proxyUrl.Scheme {
	case "socks5", "socks5h":
		return getSocksConn(ctx, proxyUrl, address)
	case "http":
		return getConnectConn(ctx, proxyUrl, address)
	default:
		return nil, errors.New("unsupported upstream proxy scheme: " + proxyUrl.Scheme)
	}
}

func getSocksConn(ctx context.Context, proxyUrl *url.URL, address string) (net.Conn, error) {
	dialer, err := xproxy.FromURL(proxyUrl, xproxy.Direct)
	if err != nil {
		return nil, err
	}
	if cd, ok := dialer.(xproxy.ContextDialer); ok {
		return cd.DialContext(ctx, "tcp", address)
	}
	return dialer.Dial("tcp", address)
}

// ref: http/transport.go dialConn func
func getConnectConn(ctx context.Context, proxyUrl *url.URL, address string) (net.Conn, error) {
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", CanonicalAddr(proxyUrl))
	if err != nil {
		return nil, err
	}
	connectReq := &http.Request{
		Method: "CONNECT",
		URL:    &url.URL{Opaque: address},
		Host:   address,
		Header: http.Header{},
	}
	if u := proxyUrl.User; u != nil {
		pass, _ := u.Password()
		connectReq.Header.Set("Proxy-Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(u.Username()+":"+pass)))
	}

	connectCtx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()
	didReadResponse := make(chan struct{}) // closed after CONNECT write+read is done or fails
	var resp *http.Response
	go func() {
		defer close(didReadResponse)
		err = connectReq.Write(conn)
		if err != nil {
			return
		}
		// TLS server will not speak until spoken to, the buffered reader can be dropped.
		br := bufio.NewReader(conn)
		resp, err = http.ReadResponse(br, connectReq)
	}()
	select {
	case <-connectCtx.Done():
		conn.Close()
		<-didReadResponse
		return nil, connectCtx.Err()
	case <-didReadResponse:
	}
	if err != nil {
		conn.Close()
		return nil, err
	}
	if resp.StatusCode != 200 {
		_, text, ok := strings.Cut(resp.Status, " ")
		conn.Close()
		if !ok {
			return nil, errors.New("unknown status code")
		}
		return nil, errors.New(text)
	}
	return conn, nil
}
