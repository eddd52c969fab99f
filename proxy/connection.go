package proxy

import (
	"encoding/json"
	"net"

	uuid "github.com/satori/go.uuid"
	"go.uber.org/atomic"
)

// client connection
type ClientConn struct {
	Id        uuid.UUID
	Conn      net.Conn
	FlowCount atomic.Uint32 // Number of HTTP requests made on the same connection
}

func newClientConn(c net.Conn) *ClientConn {
	return &ClientConn{
		Id:   uuid.NewV4(),
		Conn: c,
	}
}

// IP is the client address without its port.
func (c *ClientConn) IP() string {
	addr := c.Conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func (c *ClientConn) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{})
	m["id"] = c.Id
	m["address"] = c.Conn.RemoteAddr().String()
	m["flowCount"] = c.FlowCount.Load()
	return json.Marshal(m)
}

// connection context ctx key
var connContextKey = new(struct{})

// connection context
type ConnContext struct {
	ClientConn *ClientConn `json:"clientConn"`

	proxy              *Proxy
	closeAfterResponse bool // after http response, http server will close the connection
}

func newConnContext(c net.Conn, proxy *Proxy) *ConnContext {
	return &ConnContext{
		ClientConn: newClientConn(c),
		proxy:      proxy,
	}
}

func (connCtx *ConnContext) Id() uuid.UUID {
	return connCtx.ClientConn.Id
}
