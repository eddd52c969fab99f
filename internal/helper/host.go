package helper

import (
	"net"
	"net/url"
	"strings"

	"github.com/tidwall/match"
)

var portMap = map[string]string{
	"http":   "80",
	"https":  "443",
	"socks5": "1080",
}

// CanonicalAddr returns url.Host but always with a ":port" suffix.
func CanonicalAddr(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = portMap[u.Scheme]
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// MatchHost reports whether address (host or host:port) matches one of hosts.
// Entries may carry a port and use * and ? wildcards, "*.example.com" also
// matches "example.com".
func MatchHost(address string, hosts []string) bool {
	hostname, port := splitHostPort(address)
	for _, host := range hosts {
		h, p := splitHostPort(host)
		if matchHostname(hostname, h) && (p == "" || p == port) {
			return true
		}
	}
	return false
}

func matchHostname(hostname string, h string) bool {
	if strings.HasPrefix(h, "*.") && hostname == h[2:] {
		return true
	}
	return match.Match(hostname, h)
}

func splitHostPort(address string) (string, string) {
	index := strings.LastIndex(address, ":")
	if index == -1 || strings.HasSuffix(address, "]") {
		return address, ""
	}
	return address[:index], address[index+1:]
}
