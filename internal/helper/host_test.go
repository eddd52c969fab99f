package helper

import (
	"net/url"
	"testing"
)

func TestMatchHost(t *testing.T) {
	cases := []struct {
		address string
		hosts   []string
		want    bool
	}{
		// exact match
		{"www.example.com:443", []string{"www.example.com:443", "www.example.org"}, true},
		// entry without port matches any port
		{"www.example.org:80", []string{"www.example.com:443", "www.example.org"}, true},
		// no port on the address
		{"www.example.org", []string{"www.example.org"}, true},
		// no match
		{"www.test.com:80", []string{"www.example.com:443", "www.example.org"}, false},
		// port mismatch
		{"www.example.com:80", []string{"www.example.com:443"}, false},
		// wildcard
		{"cdn.example.com:443", []string{"*.example.com"}, true},
		{"example.com", []string{"*.example.com"}, true},
		{"cdn.example.com:443", []string{"*.example.com:443"}, true},
		{"cdn.example.com:80", []string{"*.example.com:443"}, false},
		{"cdn.example.net:80", []string{"*.example.com"}, false},
		{"img1.example.com", []string{"img?.example.com"}, true},
		{"anything", []string{"*"}, true},
		{"anything", nil, false},
	}

	for _, c := range cases {
		if got := MatchHost(c.address, c.hosts); got != c.want {
			t.Errorf("MatchHost(%q, %v) = %t, want %t", c.address, c.hosts, got, c.want)
		}
	}
}

func TestCanonicalAddr(t *testing.T) {
	cases := map[string]string{
		"http://example.com/a":     "example.com:80",
		"https://example.com":      "example.com:443",
		"http://example.com:8080/": "example.com:8080",
		"socks5://127.0.0.1":       "127.0.0.1:1080",
		"http://[::1]:9000/x":      "[::1]:9000",
	}
	for raw, want := range cases {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatal(err)
		}
		if got := CanonicalAddr(u); got != want {
			t.Errorf("CanonicalAddr(%q) = %q, want %q", raw, got, want)
		}
	}
}
