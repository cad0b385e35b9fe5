// Package safety rejects feed URLs that would let the fetch pipeline reach
// internal infrastructure (SSRF). Hostnames are resolved freshly on every
// call so a DNS record cannot be swapped between an earlier check and the
// fetch; callers are expected to validate immediately before connecting.
package safety

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError marks a permanently rejected URL. Jobs failing with it are
// dead-lettered instead of retried.
type ValidationError struct {
	URL    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unsafe feed URL %q: %s", e.URL, e.Reason)
}

// Validator checks candidate feed URLs against unsafe schemes and address
// ranges. The zero LookupIP field falls back to net.LookupIP.
type Validator struct {
	// LookupIP is swappable for tests.
	LookupIP func(host string) ([]net.IP, error)
}

func NewValidator() *Validator {
	return &Validator{LookupIP: net.LookupIP}
}

// Validate returns a *ValidationError when the URL must not be fetched.
// It has no side effects.
func (v *Validator) Validate(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{URL: rawURL, Reason: fmt.Sprintf("malformed URL: %v", err)}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return &ValidationError{URL: rawURL, Reason: fmt.Sprintf("scheme %q is not allowed", parsed.Scheme)}
	}

	host := parsed.Hostname()
	if host == "" {
		return &ValidationError{URL: rawURL, Reason: "missing host"}
	}

	lowered := strings.ToLower(strings.TrimSuffix(host, "."))
	if lowered == "localhost" || strings.HasSuffix(lowered, ".localhost") {
		return &ValidationError{URL: rawURL, Reason: "host resolves to localhost"}
	}

	if ip := net.ParseIP(host); ip != nil {
		if reason := unsafeAddress(ip); reason != "" {
			return &ValidationError{URL: rawURL, Reason: reason}
		}
		return nil
	}

	ips, err := v.lookup(host)
	if err != nil {
		return &ValidationError{URL: rawURL, Reason: fmt.Sprintf("cannot resolve host: %v", err)}
	}
	if len(ips) == 0 {
		return &ValidationError{URL: rawURL, Reason: "host has no addresses"}
	}

	for _, ip := range ips {
		if reason := unsafeAddress(ip); reason != "" {
			return &ValidationError{URL: rawURL, Reason: fmt.Sprintf("%s (%s)", reason, ip)}
		}
	}

	return nil
}

func (v *Validator) lookup(host string) ([]net.IP, error) {
	if v.LookupIP != nil {
		return v.LookupIP(host)
	}
	return net.LookupIP(host)
}

// metadataV4 is the cloud metadata endpoint shared by AWS, GCP and Azure.
var metadataV4 = net.IPv4(169, 254, 169, 254)

func unsafeAddress(ip net.IP) string {
	switch {
	case ip.IsLoopback():
		return "address is loopback"
	case ip.IsUnspecified():
		return "address is unspecified"
	case ip.Equal(metadataV4):
		return "address is a cloud metadata endpoint"
	case ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast():
		return "address is link-local"
	case ip.IsPrivate():
		return "address is private"
	}
	return ""
}
