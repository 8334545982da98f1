package validate

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// URL validation errors
var (
	ErrInvalidURL       = errors.New("invalid URL")
	ErrInvalidScheme    = errors.New("URL scheme not allowed")
	ErrPrivateIP        = errors.New("URL resolves to private IP address")
	ErrURLTooLong       = errors.New("URL is too long")
	ErrMissingHost      = errors.New("URL is missing a host")
	ErrDisallowedDomain = errors.New("URL domain not allowed")
)

// URLConstraints defines validation constraints for URLs.
type URLConstraints struct {
	AllowedSchemes []string // Allowed URL schemes (e.g., "http", "https")
	MaxLength      int      // Maximum URL length (0 = no maximum)
	CheckSSRF      bool     // Whether to block private/internal IP addresses
	AllowedDomains []string // Optional domain allowlist (suffix match)
	RequireHTTPS   bool     // Whether to require the https scheme
}

// DefaultURLConstraints are the constraints applied to user-supplied URLs.
var DefaultURLConstraints = URLConstraints{
	AllowedSchemes: []string{"http", "https"},
	MaxLength:      2048,
	CheckSSRF:      true,
}

// EndpointURLConstraints are the constraints for operator-configured service
// endpoints. SSRF checking is off: self-hosted geocoders and S3-compatible
// stores commonly run on private addresses.
var EndpointURLConstraints = URLConstraints{
	AllowedSchemes: []string{"http", "https"},
	MaxLength:      2048,
	CheckSSRF:      false,
}

// URL validates a URL against the given constraints.
// Returns the validated URL string and an error if validation fails.
func URL(urlStr string, constraints URLConstraints) (string, error) {
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return "", ErrInvalidURL
	}

	if constraints.MaxLength > 0 && len(urlStr) > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrURLTooLong, len(urlStr), constraints.MaxLength)
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if u.Host == "" {
		return "", ErrMissingHost
	}

	scheme := strings.ToLower(u.Scheme)
	if constraints.RequireHTTPS && scheme != "https" {
		return "", fmt.Errorf("%w: https required", ErrInvalidScheme)
	}
	if len(constraints.AllowedSchemes) > 0 {
		allowed := false
		for _, s := range constraints.AllowedSchemes {
			if scheme == s {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", fmt.Errorf("%w: %q", ErrInvalidScheme, u.Scheme)
		}
	}

	hostname := strings.ToLower(u.Hostname())
	if len(constraints.AllowedDomains) > 0 {
		matched := false
		for _, domain := range constraints.AllowedDomains {
			domain = strings.ToLower(domain)
			if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
				matched = true
				break
			}
		}
		if !matched {
			return "", fmt.Errorf("%w: %q", ErrDisallowedDomain, hostname)
		}
	}

	if constraints.CheckSSRF {
		if err := checkSSRF(hostname); err != nil {
			return "", err
		}
	}

	return urlStr, nil
}

// checkSSRF blocks hostnames that are, or resolve to, private or loopback
// addresses. Only literal IPs and a handful of well-known internal names are
// rejected; DNS resolution is deliberately not performed here to keep
// validation fast and deterministic.
func checkSSRF(hostname string) error {
	if hostname == "localhost" || strings.HasSuffix(hostname, ".local") || strings.HasSuffix(hostname, ".internal") {
		return fmt.Errorf("%w: %q", ErrPrivateIP, hostname)
	}

	if ip := net.ParseIP(hostname); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: %q", ErrPrivateIP, hostname)
		}
	}
	return nil
}

// isPrivateIP reports whether the IP is loopback, link-local, unspecified,
// or in a private range.
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	return ip.IsPrivate()
}

// ProfileURL validates a user-supplied profile link. The host is not pinned
// to a single provider here; provider-specific normalization happens in the
// connection package.
func ProfileURL(urlStr string) (string, error) {
	return URL(urlStr, DefaultURLConstraints)
}

// EndpointURL validates an operator-configured service endpoint such as the
// geocoding endpoint or the archive store.
func EndpointURL(urlStr string) (string, error) {
	return URL(urlStr, EndpointURLConstraints)
}
