// Package cachekill strips the headers that let a browser or an intermediary
// cache serve a response without asking the origin again.
package cachekill

import (
	"net/http"

	"github.com/samber/lo"
)

const NoCacheDirective = "no-cache, no-store, must-revalidate"

// response headers that allow storing or revalidating a response
var validatorHeaders = []string{
	"ETag",
	"Last-Modified",
	"Vary",
}

// request headers that let the origin answer 304 Not Modified
var conditionalHeaders = []string{
	"If-Modified-Since",
	"If-None-Match",
}

type Suppressor struct {
	keepCache bool
}

func New(keepCache bool) *Suppressor {
	return &Suppressor{keepCache: keepCache}
}

// Enabled is false in keep-cache mode, every method is then a no-op.
func (s *Suppressor) Enabled() bool {
	return s != nil && !s.keepCache
}

func (s *Suppressor) SuppressResponse(header http.Header) {
	if !s.Enabled() || header == nil {
		return
	}
	header.Set("Cache-Control", NoCacheDirective)
	header.Set("Expires", "0")
	header.Set("Pragma", "no-cache")
	lo.ForEach(validatorHeaders, func(key string, _ int) {
		header.Del(key)
	})
}

func (s *Suppressor) SuppressRequest(header http.Header) {
	if !s.Enabled() || header == nil {
		return
	}
	lo.ForEach(conditionalHeaders, func(key string, _ int) {
		header.Del(key)
	})
	header.Set("Pragma", "no-cache")
	header.Set("Cache-Control", "no-cache")
}

// Cacheable reports whether header still carries anything SuppressResponse would remove.
func Cacheable(header http.Header) bool {
	if header.Get("Cache-Control") != "" && header.Get("Cache-Control") != NoCacheDirective {
		return true
	}
	if expires := header.Get("Expires"); expires != "" && expires != "0" {
		return true
	}
	return lo.SomeBy(validatorHeaders, func(key string) bool {
		return header.Get(key) != ""
	})
}
