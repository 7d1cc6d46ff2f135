package session

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// Origin is the canonicalized tuple a session token is bound to (§4.7).
// Two Origins are equal, and therefore the same binding, iff every field
// matches exactly.
type Origin struct {
	Scheme string
	Host   string // lowercased, IDNA-to-A-label
	Port   string // explicit or scheme default
	Path   string
	Query  string
}

func (o Origin) String() string {
	q := o.Path
	if o.Query != "" {
		q += "?" + o.Query
	}
	return fmt.Sprintf("%s://%s:%s%s", o.Scheme, o.Host, o.Port, q)
}

var defaultPorts = map[string]string{
	"hackvr":       "7600",
	"hackvrs":      "7601",
	"http+hackvr":  "80",
	"https+hackvr": "443",
}

// CanonicalizeRaw builds the origin tuple for a raw-transport
// (hackvr://, hackvrs://) URI: (scheme, lowercased IDNA-A-label host,
// explicit or default port, path, query). The fragment, if any, is never
// part of the bound origin.
func CanonicalizeRaw(rawURL string) (Origin, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Origin{}, fmt.Errorf("session: invalid origin uri %q: %w", rawURL, err)
	}
	if !u.IsAbs() {
		return Origin{}, fmt.Errorf("session: origin uri %q is not absolute", rawURL)
	}

	host, err := canonicalHost(u.Hostname())
	if err != nil {
		return Origin{}, err
	}

	port := u.Port()
	if port == "" {
		port = defaultPorts[u.Scheme]
	}

	return Origin{
		Scheme: strings.ToLower(u.Scheme),
		Host:   host,
		Port:   port,
		Path:   u.EscapedPath(),
		Query:  u.RawQuery,
	}, nil
}

// CanonicalizeHTTP builds the origin tuple for an HTTP/1.1 Upgrade
// connection: (scheme, Host header canonicalized, request-target).
func CanonicalizeHTTP(scheme, hostHeader, requestTarget string) (Origin, error) {
	hostPart, portPart := hostHeader, ""
	if i := strings.LastIndexByte(hostHeader, ':'); i >= 0 && !strings.Contains(hostHeader[i:], "]") {
		hostPart, portPart = hostHeader[:i], hostHeader[i+1:]
	}

	host, err := canonicalHost(hostPart)
	if err != nil {
		return Origin{}, err
	}

	if portPart == "" {
		portPart = defaultPorts[scheme]
	}

	path, query, _ := strings.Cut(requestTarget, "?")
	return Origin{
		Scheme: strings.ToLower(scheme),
		Host:   host,
		Port:   portPart,
		Path:   path,
		Query:  query,
	}, nil
}

// canonicalHost lowercases and IDNA-converts host to its ASCII A-label
// form, per §4.7.
func canonicalHost(host string) (string, error) {
	host = strings.ToLower(host)
	a, err := idna.Lookup.ToASCII(host)
	if err != nil {
		// idna rejects some already-ASCII hostnames with punctuation it
		// doesn't recognize (e.g. "localhost" variants, bare IPs); fall
		// back to the lowercased host rather than failing origin
		// binding outright.
		return host, nil
	}
	return a, nil
}
