package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

type DefaultBasicAuth struct {
	Auth map[string]string
}

// Create a new BasicAuth instance from a user:password string
func NewDefaultBasicAuth(auth string) (*DefaultBasicAuth, error) {
	basicAuth := &DefaultBasicAuth{
		Auth: make(map[string]string),
	}
	for _, e := range strings.Split(auth, "|") {
		user, pass, ok := strings.Cut(e, ":")
		if !ok || user == "" {
			return nil, fmt.Errorf("invalid proxy auth format: %s, expected user:pass", e)
		}
		basicAuth.Auth[user] = pass
	}
	return basicAuth, nil
}

// Validate proxy authentication
func (auth *DefaultBasicAuth) EntryAuth(res http.ResponseWriter, req *http.Request) (bool, error) {
	get := req.Header.Get("Proxy-Authorization")
	if get == "" {
		return false, errors.New("missing authentication")
	}
	if !auth.parseRequestAuth(get) {
		return false, errors.New("invalid credentials")
	}
	return true, nil
}

// Parse and verify the Proxy-Authorization header
func (auth *DefaultBasicAuth) parseRequestAuth(proxyAuth string) bool {
	encodedAuth, ok := strings.CutPrefix(proxyAuth, "Basic ")
	if !ok {
		return false
	}
	decodedAuth, err := base64.StdEncoding.DecodeString(encodedAuth)
	if err != nil {
		log.Warnf("Failed to decode Proxy-Authorization header: %v", err)
		return false
	}

	user, pass, ok := strings.Cut(string(decodedAuth), ":")
	if !ok {
		return false
	}
	s, found := auth.Auth[user]
	return found && s == pass
}
