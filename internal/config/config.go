package config

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPort is the port the platform backend listens on.
const DefaultPort = "8082"

// Settings holds the client-side configuration persisted between runs.
type Settings struct {
	ServerAddress string
	Port          string
	AccessToken   string
	DisplayName   string
}

var (
	schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
	portSuffix   = regexp.MustCompile(`:\d+$`)
)

// NormalizeServerAddress reduces user input like "https://media.example.com:9000/"
// to the bare host the URL builders expect.
func NormalizeServerAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = schemePrefix.ReplaceAllString(addr, "")
	addr = strings.TrimSuffix(addr, "/")
	addr = portSuffix.ReplaceAllString(addr, "")
	if addr == "" {
		return "localhost"
	}
	return addr
}

func (s Settings) host() string {
	host := NormalizeServerAddress(s.ServerAddress)
	port := s.Port
	if port == "" {
		port = DefaultPort
	}
	return fmt.Sprintf("%s:%s", host, port)
}

// APIBaseURL returns the base URL for REST calls, without a trailing slash.
func (s Settings) APIBaseURL() string {
	return "http://" + s.host()
}

// WSURL returns the websocket endpoint the realtime channel dials.
func (s Settings) WSURL() string {
	return "ws://" + s.host() + "/ws"
}
