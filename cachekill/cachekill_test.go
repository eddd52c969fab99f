package cachekill

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func cachedResponseHeader() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "text/html")
	h.Set("Cache-Control", "public, max-age=86400")
	h.Set("ETag", `"abc"`)
	h.Set("Last-Modified", "Wed, 21 Oct 2015 07:28:00 GMT")
	h.Set("Expires", "Thu, 22 Oct 2015 07:28:00 GMT")
	h.Set("Vary", "Accept-Encoding")
	return h
}

func TestSuppressResponse(t *testing.T) {
	h := cachedResponseHeader()
	assert.True(t, Cacheable(h))

	New(false).SuppressResponse(h)

	assert.Equal(t, NoCacheDirective, h.Get("Cache-Control"))
	assert.Equal(t, "0", h.Get("Expires"))
	assert.Equal(t, "no-cache", h.Get("Pragma"))
	assert.Empty(t, h.Values("ETag"))
	assert.Empty(t, h.Values("Last-Modified"))
	assert.Empty(t, h.Values("Vary"))
	assert.Equal(t, "text/html", h.Get("Content-Type"))
	assert.False(t, Cacheable(h))
}

func TestSuppressRequest(t *testing.T) {
	h := make(http.Header)
	h.Set("If-Modified-Since", "Wed, 21 Oct 2015 07:28:00 GMT")
	h.Set("If-None-Match", `"abc"`)
	h.Set("Accept", "text/html")

	New(false).SuppressRequest(h)

	assert.Empty(t, h.Values("If-Modified-Since"))
	assert.Empty(t, h.Values("If-None-Match"))
	assert.Equal(t, "no-cache", h.Get("Pragma"))
	assert.Equal(t, "no-cache", h.Get("Cache-Control"))
	assert.Equal(t, "text/html", h.Get("Accept"))
}

func TestKeepCache(t *testing.T) {
	s := New(true)
	assert.False(t, s.Enabled())

	h := cachedResponseHeader()
	want := h.Clone()
	s.SuppressResponse(h)
	assert.Equal(t, want, h)

	req := http.Header{"If-None-Match": []string{`"abc"`}}
	s.SuppressRequest(req)
	assert.Equal(t, http.Header{"If-None-Match": []string{`"abc"`}}, req)
}

func TestNilHeader(t *testing.T) {
	s := New(false)
	assert.NotPanics(t, func() {
		s.SuppressResponse(nil)
		s.SuppressRequest(nil)
	})

	var nilSuppressor *Suppressor
	assert.False(t, nilSuppressor.Enabled())
}
