package security

import (
	"net/http"
	"time"
)

const (
	AccessTokenCookie = "access_token"
	CSRFTokenCookie   = "csrf_token"
	SessionCookie     = "sid"
)

type CookieManager struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func NewCookieManager(domain string, secure bool, sameSite string) *CookieManager {
	mode := http.SameSiteLaxMode
	switch sameSite {
	case "strict":
		mode = http.SameSiteStrictMode
	case "none":
		mode = http.SameSiteNoneMode
	}
	return &CookieManager{Domain: domain, Secure: secure, SameSite: mode}
}

// SetAuthCookies installs the signed-in state: an HttpOnly access token and
// a script-readable CSRF token, both scoped to the whole site.
func (m *CookieManager) SetAuthCookies(w http.ResponseWriter, access, csrf string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name: AccessTokenCookie, Value: access, Path: "/",
		HttpOnly: true, Secure: m.Secure, SameSite: m.SameSite, Domain: m.Domain,
		MaxAge: int(ttl.Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name: CSRFTokenCookie, Value: csrf, Path: "/",
		HttpOnly: false, Secure: m.Secure, SameSite: m.SameSite, Domain: m.Domain,
		MaxAge: int(ttl.Seconds()),
	})
}

func (m *CookieManager) ClearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, CSRFTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name: name, Value: "", Path: "/",
			HttpOnly: name == AccessTokenCookie, Secure: m.Secure, SameSite: m.SameSite, Domain: m.Domain,
			MaxAge: -1,
		})
	}
}

// SetSessionCookie pins the browser session ID. The cookie itself carries no
// expiry; the server-side session's idle TTL bounds its life.
func (m *CookieManager) SetSessionCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name: SessionCookie, Value: sid, Path: "/",
		HttpOnly: true, Secure: m.Secure, SameSite: m.SameSite, Domain: m.Domain,
	})
}

func GetCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
