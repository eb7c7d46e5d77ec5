package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strings"
	"time"

	"nightboard/attachments"
	"nightboard/config"
	"nightboard/database"
	"nightboard/models"
	"nightboard/utils"

	"github.com/google/uuid"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	CSRFTokenKey ContextKey = "csrfToken"
	AppKey       ContextKey = "app"
	UserKey      ContextKey = "user"
)

// AppContextMiddleware injects the App dependency into the request context.
func AppContextMiddleware(app App, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), AppKey, app)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CSRFMiddleware protects against Cross-Site Request Forgery attacks with a
// double-submit cookie, checked on every POST.
func CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		csrfCookie, err := r.Cookie("csrf_token")
		var csrfToken string

		if err != nil || csrfCookie.Value == "" {
			csrfToken = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     "csrf_token",
				Value:    csrfToken,
				Path:     "/",
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
		} else {
			csrfToken = csrfCookie.Value
		}

		if r.Method == http.MethodPost {
			// FormValue handles both multipart and urlencoded bodies.
			tokenFromForm := r.FormValue("csrf_token")
			if tokenFromForm == "" {
				tokenFromForm = r.Header.Get("X-CSRF-Token")
			}
			if subtle.ConstantTimeCompare([]byte(tokenFromForm), []byte(csrfToken)) != 1 {
				http.Error(w, "Invalid CSRF token", http.StatusForbidden)
				return
			}
		}

		ctx := context.WithValue(r.Context(), CSRFTokenKey, csrfToken)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionMiddleware resolves the session cookie to a user, if any.
func SessionMiddleware(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(config.SessionCookieName)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			user, err := app.DB().GetSessionUser(c.Value)
			if err != nil {
				if !errors.Is(err, database.ErrNotFound) {
					app.Logger().Error("Failed to load session", "error", err)
				}
				clearSessionCookie(w, app)
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func currentUser(r *http.Request) *models.User {
	u, _ := r.Context().Value(UserKey).(*models.User)
	return u
}

func setSessionCookie(w http.ResponseWriter, app App, s *models.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.SessionCookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   app.Settings().SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, app App) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   app.Settings().SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireLogin sends anonymous visitors to the login page with a return path.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) == nil {
			http.Redirect(w, r, "/login/?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin lets only superusers through.
func RequireAdmin(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := currentUser(r)
			if user == nil {
				http.Redirect(w, r, "/login/?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
				return
			}
			if !user.IsSuperuser {
				app.Logger().Warn("Non-admin tried to reach admin area", "user", user.Username, "path", r.URL.Path)
				renderError(w, r, app, http.StatusForbidden, "You do not have permission to view this page.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TrustedRealIP rewrites RemoteAddr to the forwarded client address, but only
// for requests whose direct peer is one of the trusted proxies. Requests from
// anyone else keep their socket address whatever headers they send.
func TrustedRealIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(trusted) > 0 {
				if ip := utils.ClientIP(r, trusted); ip != utils.GetIPAddress(r) {
					r.RemoteAddr = net.JoinHostPort(ip, "0")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireLAN restricts access to private or loopback addresses.
func RequireLAN(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !utils.IsPrivateRequest(r) {
			http.Error(w, "Forbidden: access restricted to LAN", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewSecurityHeadersMiddleware sets the standard hardening headers and a CSP
// that also admits media from the object storage origin, when there is one.
func NewSecurityHeadersMiddleware(mediaOrigin string, https bool) func(http.Handler) http.Handler {
	media := "'self' data:"
	if mediaOrigin != "" {
		media += " " + strings.TrimSuffix(mediaOrigin, "/")
	}
	csp := strings.Join([]string{
		"default-src 'self'",
		"img-src " + media,
		"media-src " + media,
		"style-src 'self' 'unsafe-inline'",
		"script-src 'self'",
		"object-src 'none'",
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	}, "; ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers := w.Header()
			headers.Set("X-Frame-Options", "DENY")
			headers.Set("X-Content-Type-Options", "nosniff")
			headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			headers.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")
			headers.Set("Content-Security-Policy", csp)
			if https {
				headers.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

const mediaCSP = "sandbox; default-src 'none'; img-src 'self'; media-src 'self'; style-src 'unsafe-inline'"

// MediaHandler serves locally stored uploads. Every response is sandboxed and
// never sniffed; anything that is not an image, video or audio file is sent
// as a download. SVG counts as a download since it can carry script.
func MediaHandler(dir string) http.Handler {
	files := http.StripPrefix("/media/", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("Content-Security-Policy", mediaCSP)
		headers.Set("X-Content-Type-Options", "nosniff")
		if !inlineMedia(r.URL.Path) {
			headers.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(r.URL.Path)}))
		}
		files.ServeHTTP(w, r)
	})
}

func inlineMedia(name string) bool {
	if attachments.Ext(name) == ".svg" {
		return false
	}
	switch attachments.Classify(name) {
	case attachments.KindImage, attachments.KindVideo, attachments.KindAudio:
		return true
	}
	return false
}

// safeNext returns next when it is a local path, "/" otherwise.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
