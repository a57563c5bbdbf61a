package urlutil

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var hostProfile = idna.New(idna.MapForLookup(), idna.Transitional(false))

// Canonicalize returns the form of rawURL used as a website's identity.
// A missing scheme defaults to https. Scheme and host are lowercased, the
// host is converted to its ASCII (punycode) form, default ports and
// fragments are dropped, an empty path becomes "/" and any other trailing
// slash is trimmed.
func Canonicalize(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("url is empty")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("url must be an absolute http or https url")
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url has no host")
	}

	host, err := hostProfile.ToASCII(strings.ToLower(u.Hostname()))
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", u.Hostname(), err)
	}
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	}
	u.Host = host

	u.Fragment = ""
	u.RawFragment = ""

	if u.Path == "" {
		u.Path = "/"
	} else if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	u.RawPath = ""

	return u.String(), nil
}

// SameHost reports whether two absolute URLs point at the same host,
// ignoring a leading "www.".
func SameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return stripWWW(ua.Hostname()) == stripWWW(ub.Hostname())
}

func stripWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
