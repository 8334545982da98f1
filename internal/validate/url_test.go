package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestURL(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		constraints URLConstraints
		wantErr     error
	}{
		{
			name:        "valid https url",
			input:       "https://example.com/path",
			constraints: DefaultURLConstraints,
		},
		{
			name:        "valid http url",
			input:       "http://example.com",
			constraints: DefaultURLConstraints,
		},
		{
			name:        "empty url",
			input:       "",
			constraints: DefaultURLConstraints,
			wantErr:     ErrInvalidURL,
		},
		{
			name:        "missing host",
			input:       "https://",
			constraints: DefaultURLConstraints,
			wantErr:     ErrMissingHost,
		},
		{
			name:        "disallowed scheme",
			input:       "ftp://example.com/file",
			constraints: DefaultURLConstraints,
			wantErr:     ErrInvalidScheme,
		},
		{
			name:        "javascript scheme",
			input:       "javascript:alert(1)",
			constraints: DefaultURLConstraints,
			wantErr:     ErrMissingHost,
		},
		{
			name:        "https required",
			input:       "http://example.com",
			constraints: URLConstraints{RequireHTTPS: true},
			wantErr:     ErrInvalidScheme,
		},
		{
			name:        "too long",
			input:       "https://example.com/" + strings.Repeat("a", 2048),
			constraints: DefaultURLConstraints,
			wantErr:     ErrURLTooLong,
		},
		{
			name:        "loopback blocked",
			input:       "http://127.0.0.1:8080/admin",
			constraints: DefaultURLConstraints,
			wantErr:     ErrPrivateIP,
		},
		{
			name:        "localhost blocked",
			input:       "http://localhost/admin",
			constraints: DefaultURLConstraints,
			wantErr:     ErrPrivateIP,
		},
		{
			name:        "private range blocked",
			input:       "http://10.0.0.5/metadata",
			constraints: DefaultURLConstraints,
			wantErr:     ErrPrivateIP,
		},
		{
			name:        "link-local blocked",
			input:       "http://169.254.169.254/latest/meta-data",
			constraints: DefaultURLConstraints,
			wantErr:     ErrPrivateIP,
		},
		{
			name:        "internal suffix blocked",
			input:       "http://db.internal/query",
			constraints: DefaultURLConstraints,
			wantErr:     ErrPrivateIP,
		},
		{
			name:        "private address allowed for endpoints",
			input:       "http://10.0.0.5:8088/search",
			constraints: EndpointURLConstraints,
		},
		{
			name:  "allowed domain suffix match",
			input: "https://www.linkedin.com/in/ada",
			constraints: URLConstraints{
				AllowedSchemes: []string{"https"},
				AllowedDomains: []string{"linkedin.com"},
			},
		},
		{
			name:  "domain not in allowlist",
			input: "https://evil.example.com/in/ada",
			constraints: URLConstraints{
				AllowedSchemes: []string{"https"},
				AllowedDomains: []string{"linkedin.com"},
			},
			wantErr: ErrDisallowedDomain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := URL(tt.input, tt.constraints)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("URL(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Errorf("URL(%q) unexpected error: %v", tt.input, err)
			}
		})
	}
}

func TestProfileURL(t *testing.T) {
	if _, err := ProfileURL("https://www.linkedin.com/in/ada"); err != nil {
		t.Errorf("ProfileURL() unexpected error: %v", err)
	}
	if _, err := ProfileURL("http://127.0.0.1/in/ada"); err == nil {
		t.Error("ProfileURL() should block loopback hosts")
	}
}

func TestEndpointURL(t *testing.T) {
	if _, err := EndpointURL("http://localhost:8088/search"); err != nil {
		t.Errorf("EndpointURL() should allow local endpoints, got %v", err)
	}
	if _, err := EndpointURL("redis://localhost:6379"); err == nil {
		t.Error("EndpointURL() should reject non-http schemes")
	}
}
