package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/madhesh-litfest/mlf/pkg/content"
)

const (
	langCookieName       = "mlf_lang"
	disclaimerCookieName = "mlf_disclaimer"
	preferenceCookieAge  = 365 * 24 * time.Hour
	disclaimerPath       = "/disclaimer"
)

// visitorPrefs are the display choices a browser has made.
type visitorPrefs struct {
	Lang                content.Language
	DisclaimerDismissed bool
}

func prefsFromContext(ctx context.Context) visitorPrefs {
	if p, ok := ctx.Value(prefsContextKey).(visitorPrefs); ok {
		return p
	}
	return visitorPrefs{Lang: content.LangEnglish}
}

// preferencesMiddleware reads the language and disclaimer cookies. A lang
// query parameter switches the language and remembers the choice.
func (s *Server) preferencesMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefs := visitorPrefs{Lang: content.LangEnglish}
		if c, err := r.Cookie(langCookieName); err == nil {
			if lang, ok := content.ParseLanguage(c.Value); ok {
				prefs.Lang = lang
			}
		}
		if raw := r.URL.Query().Get("lang"); raw != "" {
			if lang, ok := content.ParseLanguage(raw); ok {
				prefs.Lang = lang
				s.setPreferenceCookie(w, r, langCookieName, string(lang))
			}
		}
		if c, err := r.Cookie(disclaimerCookieName); err == nil && c.Value == "1" {
			prefs.DisclaimerDismissed = true
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), prefsContextKey, prefs)))
	})
}

func (s *Server) setPreferenceCookie(w http.ResponseWriter, r *http.Request, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Server.SecureCookies || isRequestSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  s.now().Add(preferenceCookieAge),
		MaxAge:   int(preferenceCookieAge.Seconds()),
	})
}

// handleDismissDisclaimer remembers that the visitor closed the disclaimer.
// Scripted clients get 204; form posts return to the page they came from.
func (s *Server) handleDismissDisclaimer(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBytes)
	_ = r.ParseForm()
	s.setPreferenceCookie(w, r, disclaimerCookieName, "1")
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, localPath(r.PostFormValue("next")), http.StatusSeeOther)
}

// localPath returns raw when it is a path on this site, "/" otherwise.
func localPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return u.RequestURI()
}

// languageHref is the current page with the language switched to lang.
func languageHref(r *http.Request, lang content.Language) string {
	q := r.URL.Query()
	q.Set("lang", string(lang))
	return r.URL.Path + "?" + q.Encode()
}

// navLinks localizes the public navigation.
func navLinks(r *http.Request, section string, lang content.Language) []link {
	links := make([]link, 0, len(content.NavItems))
	for _, item := range content.NavItems {
		links = append(links, link{
			Label:  lang.Pick(item.Label, item.LabelNp),
			Href:   item.Href,
			Active: item.Href == r.URL.Path || (section == "speakers" && item.Href == "/speakers"),
		})
	}
	return links
}
