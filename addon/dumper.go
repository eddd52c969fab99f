package addon

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/lqqyt2423/go-rewriteproxy/proxy"
)

// Dumper writes every completed flow to Out. Level 0 dumps headers only,
// level 1 adds the response body as the client received it.
type Dumper struct {
	proxy.BaseAddon
	Out   io.Writer
	Level int

	mu sync.Mutex
}

func NewDumper(out io.Writer, level int) *Dumper {
	if level != 1 {
		level = 0
	}
	return &Dumper{Out: out, Level: level}
}

func NewDumperWithFilename(filename string, level int) (*Dumper, error) {
	out, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	return NewDumper(out, level), nil
}

func (d *Dumper) Requestheaders(f *proxy.Flow) {
	go func() {
		<-f.Done()
		d.dump(f)
	}()
}

// 参考 httputil.DumpRequest
func (d *Dumper) dump(f *proxy.Flow) {
	log := log.WithField("in", "Dumper")

	buf := bytes.NewBuffer(make([]byte, 0))
	fmt.Fprintf(buf, "%s %s %s\r\n", f.Request.Method, f.Request.URL.RequestURI(), f.Request.Proto)
	fmt.Fprintf(buf, "Host: %s\r\n", f.Request.URL.Host)
	if raw := f.Request.Raw(); raw != nil {
		if len(raw.TransferEncoding) > 0 {
			fmt.Fprintf(buf, "Transfer-Encoding: %s\r\n", strings.Join(raw.TransferEncoding, ","))
		}
		if raw.Close {
			fmt.Fprintf(buf, "Connection: close\r\n")
		}
	}

	err := f.Request.Header.WriteSubset(buf, nil)
	if err != nil {
		log.Error(err)
	}
	buf.WriteString("\r\n")

	if f.Response != nil {
		fmt.Fprintf(buf, "%v %v %v\r\n", f.Request.Proto, f.Response.StatusCode, http.StatusText(f.Response.StatusCode))
		err = f.Response.Header.WriteSubset(buf, nil)
		if err != nil {
			log.Error(err)
		}
		buf.WriteString("\r\n")

		if d.Level == 1 && len(f.Response.Body) > 0 && f.Response.IsTextContentType() {
			body, err := f.Response.DecodedBody()
			if err == nil {
				buf.Write(body)
				buf.WriteString("\r\n\r\n")
			}
		}
	}

	buf.WriteString("\r\n\r\n")

	d.mu.Lock()
	_, err = d.Out.Write(buf.Bytes())
	d.mu.Unlock()
	if err != nil {
		log.Error(err)
	}
}
