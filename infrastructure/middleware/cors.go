// Package middleware provides HTTP middleware for the control plane.
package middleware

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// CORSConfig describes which browser origins may call the fleet API
// and how permissive the response to a preflight request should be.
type CORSConfig struct {
	AllowedOrigins         []string
	AllowedMethods         []string
	AllowedHeaders         []string
	ExposedHeaders         []string
	AllowCredentials       bool
	MaxAgeSeconds          int
	PreflightStatus        int
	RejectDisallowedOrigin bool
}

// CORSPolicy enforces a CORSConfig on every request.
type CORSPolicy struct {
	cfg      CORSConfig
	allowAny bool
}

// NewCORSMiddleware builds a CORSPolicy, filling in the defaults the
// dashboard and device-provisioning clients expect: a tenant header
// alongside the usual bearer/trace headers, and trace id echoed back
// on the response.
func NewCORSMiddleware(cfg *CORSConfig) *CORSPolicy {
	resolved := CORSConfig{}
	if cfg != nil {
		resolved = *cfg
	}

	if len(resolved.AllowedMethods) == 0 {
		resolved.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	}
	if len(resolved.AllowedHeaders) == 0 {
		resolved.AllowedHeaders = []string{"Content-Type", "Authorization", "X-Trace-ID", "X-Tenant-ID"}
	}
	if len(resolved.ExposedHeaders) == 0 {
		resolved.ExposedHeaders = []string{"X-Trace-ID"}
	}
	if resolved.MaxAgeSeconds == 0 {
		resolved.MaxAgeSeconds = 3600
	}
	if resolved.PreflightStatus == 0 {
		resolved.PreflightStatus = http.StatusNoContent
	}

	p := &CORSPolicy{cfg: resolved}
	for _, origin := range resolved.AllowedOrigins {
		if origin == "*" {
			p.allowAny = true
			break
		}
	}
	return p
}

// Handler applies the CORS policy to next.
func (p *CORSPolicy) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		switch {
		case origin != "" && (p.allowAny || p.permits(origin)):
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", strings.Join(p.cfg.AllowedMethods, ", "))
			h.Set("Access-Control-Allow-Headers", strings.Join(p.cfg.AllowedHeaders, ", "))
			h.Set("Access-Control-Expose-Headers", strings.Join(p.cfg.ExposedHeaders, ", "))
			h.Set("Access-Control-Max-Age", strconv.Itoa(p.cfg.MaxAgeSeconds))
			if p.cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		case origin != "" && p.cfg.RejectDisallowedOrigin:
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			http.Error(w, "CORS origin not allowed", http.StatusForbidden)
			return
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(p.cfg.PreflightStatus)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// permits reports whether origin matches an exact entry in
// AllowedOrigins, or a ".example.com"-style subdomain wildcard entry.
func (p *CORSPolicy) permits(origin string) bool {
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	if host == "" {
		return false
	}

	for _, allowed := range p.cfg.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" || allowed == origin {
			if allowed == origin {
				return true
			}
			continue
		}
		suffix, isWildcard := strings.CutPrefix(allowed, ".")
		if !isWildcard || suffix == "" {
			continue
		}
		if idx := len(host) - len(suffix); idx > 0 && host[idx-1] == '.' && strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}
