package proxy

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"
)

var errEncodingNotSupport = errors.New("content-encoding not support")

var textContentTypes = []string{
	"text",
	"javascript",
	"json",
	"xml",
}

// decoders by Content-Encoding token
var decoders = map[string]func(io.Reader) (io.Reader, error){
	"gzip": func(r io.Reader) (io.Reader, error) {
		return gzip.NewReader(r)
	},
	"br": func(r io.Reader) (io.Reader, error) {
		return brotli.NewReader(r), nil
	},
	"deflate": func(r io.Reader) (io.Reader, error) {
		return flate.NewReader(r), nil
	},
	"zstd": func(r io.Reader) (io.Reader, error) {
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	},
}

func (r *Response) IsTextContentType() bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return false
	}
	for _, substr := range textContentTypes {
		if strings.Contains(contentType, substr) {
			return true
		}
	}
	return false
}

func (r *Response) DecodedBody() ([]byte, error) {
	if len(r.Body) == 0 {
		return r.Body, nil
	}

	enc := r.Header.Get("Content-Encoding")
	if enc == "" || enc == "identity" {
		return r.Body, nil
	}

	decodedBody, err := decode(enc, r.Body)
	if err != nil {
		log.Error(err)
		return nil, err
	}
	return decodedBody, nil
}

// ReplaceToDecodedBody leaves the response untouched when the body cannot be decoded.
func (r *Response) ReplaceToDecodedBody() {
	body, err := r.DecodedBody()
	if err != nil {
		return
	}
	r.SetBody(body)
}

// SetBody replaces the buffered body with an identity encoded one.
func (r *Response) SetBody(body []byte) {
	r.Body = body
	r.Header.Del("Content-Encoding")
	r.Header.Set("Content-Length", strconv.Itoa(len(body)))
	r.Header.Del("Transfer-Encoding")
}

// decode handles a single or a comma separated list of encodings,
// listed in the order they were applied.
func decode(enc string, body []byte) ([]byte, error) {
	encodings := strings.Split(enc, ",")
	for i := len(encodings) - 1; i >= 0; i-- {
		token := strings.ToLower(strings.TrimSpace(encodings[i]))
		if token == "" || token == "identity" {
			continue
		}
		newReader, ok := decoders[token]
		if !ok {
			return nil, errEncodingNotSupport
		}
		dreader, err := newReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		buf := bytes.NewBuffer(make([]byte, 0))
		_, err = io.Copy(buf, dreader)
		if c, ok := dreader.(io.Closer); ok {
			c.Close()
		}
		if err != nil {
			return nil, err
		}
		body = buf.Bytes()
	}
	return body, nil
}
