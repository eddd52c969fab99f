package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	uuid "github.com/satori/go.uuid"
)

// flow http request
type Request struct {
	Method string
	URL    *url.URL
	Proto  string
	Header http.Header
	Body   []byte

	raw *http.Request
}

func newRequest(req *http.Request) *Request {
	return &Request{
		Method: req.Method,
		URL:    req.URL,
		Proto:  req.Proto,
		Header: req.Header,
		raw:    req,
	}
}

func (r *Request) Raw() *http.Request {
	return r.raw
}

// Hostname is the requested host without port, from the URL or else the Host header.
func (r *Request) Hostname() string {
	if r.URL != nil && r.URL.Host != "" {
		return r.URL.Hostname()
	}
	if r.raw != nil {
		return (&url.URL{Host: r.raw.Host}).Hostname()
	}
	return ""
}

func (r *Request) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{})
	m["method"] = r.Method
	m["url"] = r.URL.String()
	m["proto"] = r.Proto
	m["header"] = r.Header
	return json.Marshal(m)
}

// flow http response
type Response struct {
	StatusCode int         `json:"statusCode"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"-"`
	BodyReader io.Reader   `json:"-"`

	close bool // connection close
}

// flow
type Flow struct {
	Id          uuid.UUID
	ConnContext *ConnContext
	Request     *Request
	Response    *Response

	// 如果为 true，则不缓冲 Request.Body 和 Response.Body，且不进入之后的 Addon.Request 和 Addon.Response
	Stream bool
	done   chan struct{}
}

func newFlow() *Flow {
	return &Flow{
		Id:   uuid.NewV4(),
		done: make(chan struct{}),
	}
}

func (f *Flow) Done() <-chan struct{} {
	return f.done
}

// ResponseBodyAllowed is false for HEAD requests and for 1xx, 204 and 304 responses.
func (f *Flow) ResponseBodyAllowed() bool {
	if f.Response == nil {
		return false
	}
	return bodyAllowed(f.Request.Method, f.Response.StatusCode)
}

func (f *Flow) finish() {
	close(f.done)
}

func (f *Flow) MarshalJSON() ([]byte, error) {
	j := make(map[string]interface{})
	j["id"] = f.Id
	j["request"] = f.Request
	j["response"] = f.Response
	return json.Marshal(j)
}
