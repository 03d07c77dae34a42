package api

import (
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/Rohith-Pavan/Dare-Exchange/internal/config"
)

// newSecurityMiddleware applies the transport security settings: HTTPS
// redirect, HSTS and the hardening response headers.
func newSecurityMiddleware(sec config.SecurityConfig, proxySSLHeader string) (middlewareFunc, error) {
	exempt := make([]*regexp.Regexp, 0, len(sec.SecureRedirectExempt))
	for _, pattern := range sec.SecureRedirectExempt {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &config.ConfigurationError{
				Key:    "SECURE_REDIRECT_EXEMPT",
				Value:  pattern,
				Reason: "invalid regular expression",
				Err:    err,
			}
		}
		exempt = append(exempt, re)
	}

	hsts := ""
	if sec.SecureHSTSSeconds > 0 {
		hsts = "max-age=" + strconv.Itoa(sec.SecureHSTSSeconds)
		if sec.SecureHSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
		if sec.SecureHSTSPreload {
			hsts += "; preload"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secure := isSecureRequest(r, proxySSLHeader)

			if sec.SecureSSLRedirect && !secure && !redirectExempt(exempt, r.URL.Path) {
				host := sec.SecureSSLHost
				if host == "" {
					host = r.Host
				}
				http.Redirect(w, r, "https://"+host+r.URL.RequestURI(), http.StatusMovedPermanently)
				return
			}

			header := w.Header()
			if hsts != "" && secure {
				header.Set("Strict-Transport-Security", hsts)
			}
			if sec.SecureContentTypeNosniff {
				header.Set("X-Content-Type-Options", "nosniff")
			}
			if sec.SecureBrowserXSSFilter {
				header.Set("X-XSS-Protection", "1; mode=block")
			}
			if sec.SecureReferrerPolicy != "" {
				header.Set("Referrer-Policy", sec.SecureReferrerPolicy)
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

func isSecureRequest(r *http.Request, proxySSLHeader string) bool {
	if r.TLS != nil {
		return true
	}
	if proxySSLHeader == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get(proxySSLHeader)), "https")
}

func redirectExempt(patterns []*regexp.Regexp, urlPath string) bool {
	p := strings.TrimPrefix(urlPath, "/")
	for _, re := range patterns {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

// allowedHostsMiddleware answers 400 unless the request host matches one of
// hosts. "*" matches anything and a leading dot matches the domain and all
// of its subdomains.
func allowedHostsMiddleware(hosts []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := requestHostname(r.Host)
		if !hostAllowed(host, hosts) {
			writeError(w, http.StatusBadRequest, "Bad request",
				fmt.Sprintf("invalid host header %q", r.Host),
				"add the host to ALLOWED_HOSTS")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestHostname(hostport string) string {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.Trim(host, "[]"), ".")
	return strings.ToLower(host)
}

func hostAllowed(host string, allowed []string) bool {
	if host == "" {
		return false
	}
	for _, pattern := range allowed {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		switch {
		case pattern == "*":
			return true
		case strings.HasPrefix(pattern, "."):
			if host == pattern[1:] || strings.HasSuffix(host, pattern) {
				return true
			}
		case strings.Trim(pattern, "[]") == host:
			return true
		}
	}
	return false
}

func clickjackingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("X-Frame-Options") == "" {
			w.Header().Set("X-Frame-Options", "DENY")
		}
		next.ServeHTTP(w, r)
	})
}
