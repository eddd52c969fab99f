package proxy

import (
	"io"
	"net"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

var normalErrMsgs []string = []string{
	"read: connection reset by peer",
	"write: broken pipe",
	"i/o timeout",
	"net/http: TLS handshake timeout",
	"io: read/write on closed pipe",
	"connect: connection refused",
	"connect: connection reset by peer",
	"use of closed network connection",
}

// 仅打印预料之外的错误信息
func logErr(log *log.Entry, err error) (loged bool) {
	msg := err.Error()

	for _, str := range normalErrMsgs {
		if strings.Contains(msg, str) {
			log.Debug(err)
			return
		}
	}

	log.Error(err)
	loged = true
	return
}

// 转发流量
func transfer(log *log.Entry, server, client net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)

	copyHalf := func(dst, src net.Conn) {
		defer wg.Done()
		_, err := io.Copy(dst, src)
		if err != nil {
			logErr(log, err)
		}
		// 半关闭写方向，让对端读到 EOF
		if tc, ok := tcpConn(dst).(interface{ CloseWrite() error }); ok {
			tc.CloseWrite()
		} else {
			dst.Close()
		}
	}

	go copyHalf(server, client)
	go copyHalf(client, server)
	wg.Wait()
}

// tcpConn returns the underlying connection of a hijacked client connection.
func tcpConn(c net.Conn) net.Conn {
	if wc, ok := c.(*wrapClientConn); ok {
		return wc.Conn
	}
	return c
}
