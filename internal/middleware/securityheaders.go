package middleware

import (
	"net/http"
)

// APIContentSecurityPolicy forbids every resource; JSON responses never load anything.
const APIContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

// DashboardContentSecurityPolicy allows the dashboard's own stylesheet and form posts.
const DashboardContentSecurityPolicy = "default-src 'self'; style-src 'self' 'unsafe-inline'; form-action 'self'; frame-ancestors 'none'"

// SecurityHeaders sets common security response headers with the given CSP.
// When hsts is true (serving HTTPS), Strict-Transport-Security is added.
func SecurityHeaders(csp string, hsts bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			if csp != "" {
				h.Set("Content-Security-Policy", csp)
			}
			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
