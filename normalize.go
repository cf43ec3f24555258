package nostr

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/ImVexed/fasturl"
)

// NormalizeURL brings a relay address to the form used as pool key and stored in sessions:
// ws:// or wss:// scheme, lowercase host, no default port, no trailing slash.
// Bare hosts get wss://, or ws:// for loopback. http(s) map to ws(s).
// Anything else, including other schemes, gives "".
func NormalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}

	p, err := fasturl.ParseURL(u)
	if err != nil {
		return ""
	}

	// fasturl reads "localhost:1234" as protocol "localhost" and host "1234"
	if p.Port == "" && len(p.Protocol) > 5 && !strings.Contains(u, "://") {
		p.Protocol, p.Host, p.Port = "", p.Protocol, p.Host
	}

	p.Host = strings.ToLower(p.Host)
	if p.Host == "" {
		return ""
	}

	switch strings.ToLower(p.Protocol) {
	case "":
		if isLoopback(p.Host) {
			p.Protocol = "ws"
		} else {
			p.Protocol = "wss"
		}
	case "wss", "https":
		p.Protocol = "wss"
	case "ws", "http":
		p.Protocol = "ws"
	default:
		return ""
	}

	if (p.Protocol == "wss" && p.Port == "443") || (p.Protocol == "ws" && p.Port == "80") {
		p.Port = ""
	}
	p.Path = strings.TrimRight(p.Path, "/")

	var buf strings.Builder
	buf.Grow(
		len(p.Protocol) + 3 + len(p.Host) + 1 + len(p.Port) + len(p.Path) + 1 + len(p.Query),
	)

	buf.WriteString(p.Protocol)
	buf.WriteString("://")
	buf.WriteString(p.Host)
	if p.Port != "" {
		buf.WriteByte(':')
		buf.WriteString(p.Port)
	}
	buf.WriteString(p.Path)
	if p.Query != "" {
		buf.WriteByte('?')
		buf.WriteString(p.Query)
	}
	return buf.String()
}

// NormalizeRelayURLs normalizes a relay list keeping its order. Duplicates and addresses
// NormalizeURL rejects are dropped.
func NormalizeRelayURLs(urls []string) []string {
	res := make([]string, 0, len(urls))
	for _, u := range urls {
		nm := NormalizeURL(u)
		if nm == "" {
			InfoLogger.Printf("invalid relay url '%s'\n", u)
			continue
		}
		if !slices.Contains(res, nm) {
			res = append(res, nm)
		}
	}
	return res
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "[::1]"
}

// NormalizeHTTPURL normalizes blob server addresses: https:// is assumed when the scheme is
// missing, the host is lowercased, default ports, fragments and the trailing slash go away
// and query parameters are sorted. Don't use for relay URLs.
func NormalizeHTTPURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty url")
	}
	if lower := strings.ToLower(s); !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		s = "https://" + strings.TrimPrefix(s, "//")
	}

	u, err := url.Parse(s)
	if err != nil {
		return s, err
	}
	if u.Host == "" {
		return s, fmt.Errorf("url '%s' has no host", s)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	switch u.Scheme {
	case "https":
		u.Host = strings.TrimSuffix(u.Host, ":443")
	case "http":
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	u.Fragment, u.RawFragment = "", ""

	return strings.TrimSuffix(u.String(), "/"), nil
}

// NormalizeOKMessage prefixes the reason of an OK or CLOSED message with "<prefix>: " unless
// it already starts with a single-word machine readable prefix.
func NormalizeOKMessage(reason string, prefix string) string {
	if idx := strings.Index(reason, ": "); idx == -1 || strings.IndexByte(reason[0:idx], ' ') != -1 {
		return prefix + ": " + reason
	}
	return reason
}
