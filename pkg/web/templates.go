package web

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/madhesh-litfest/mlf/pkg/content"
)

//go:embed templates static
var assets embed.FS

// page is the data every template receives. Body holds the page-specific
// view.
type page struct {
	Title       string
	Section     string
	Festival    content.Festival
	User        string
	Notice      string
	Error       string
	Remediation []string
	Body        any

	Lang       content.Language
	LangHref   string
	Nav        []link
	Path       string
	Disclaimer *content.Notice
}

// speakerCardView is a speaker card in the visitor's language.
type speakerCardView struct {
	content.SpeakerCard
	Lang content.Language
}

func cardFor(card content.SpeakerCard, lang content.Language) speakerCardView {
	return speakerCardView{SpeakerCard: card, Lang: lang}
}

// Title is the name in the visitor's language.
func (v speakerCardView) Title() string { return v.Lang.Pick(v.Name, v.NameNp) }

// Subtitle is the name in the other language, if there is one.
func (v speakerCardView) Subtitle() string {
	if v.Title() == v.Name {
		return v.NameNp
	}
	return v.Name
}

// SubtitleLang is the HTML lang of Subtitle.
func (v speakerCardView) SubtitleLang() string {
	if v.Title() == v.Name {
		return content.LangNepali.Tag()
	}
	return content.LangEnglish.Tag()
}

// Href links the card to the speaker's page.
func (v speakerCardView) Href() string { return speakerPath(v.ID) }

func speakerPath(id string) string { return "/speakers/" + url.PathEscape(id) }

// paragraphs splits free text on blank lines.
func paragraphs(text string) []string {
	var out []string
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			out = append(out, block)
		}
	}
	return out
}

type renderer struct {
	pages map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"join":       strings.Join,
	"add":        func(a, b int) int { return a + b },
	"card":       cardFor,
	"paragraphs": paragraphs,
}

// newRenderer parses each page together with the layout and partials so
// that every page can define its own "content" block.
func newRenderer() (*renderer, error) {
	names, err := fs.Glob(assets, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	rd := &renderer{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		t, err := template.New("layout.html").Funcs(templateFuncs).
			ParseFS(assets, "templates/layout.html", "templates/partials/*.html", name)
		if err != nil {
			return nil, err
		}
		rd.pages[strings.TrimSuffix(path.Base(name), ".html")] = t
	}
	return rd, nil
}

// fragment renders a partial on its own, for live-search updates.
func (rd *renderer) fragment(name string, data any) (string, error) {
	t, ok := rd.pages["speakers"]
	if !ok {
		return "", fs.ErrNotExist
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// render executes a page into a buffer first so a template error never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	t, ok := s.pages.pages[name]
	if !ok {
		s.logger.Error("unknown template", zap.String("template", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	p.Festival = content.DefaultFestival
	if sess := sessionFromContext(r.Context()); sess != nil && sess.Backend != nil {
		p.User = sess.Backend.Email
	}
	prefs := prefsFromContext(r.Context())
	p.Lang = prefs.Lang
	p.LangHref = languageHref(r, prefs.Lang.Other())
	p.Nav = navLinks(r, p.Section, prefs.Lang)
	p.Path = r.URL.RequestURI()
	if !prefs.DisclaimerDismissed && !strings.HasPrefix(r.URL.Path, "/admin") {
		notice := content.Disclaimer
		p.Disclaimer = &notice
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", p); err != nil {
		s.logger.Error("template execution failed", zap.String("template", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if p.User != "" {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "error", page{
		Title: "Not found",
		Error: "The page you are looking for does not exist.",
	})
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// mediaHandler serves local objects without directory listings.
func mediaHandler(root string) http.Handler {
	files := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		if info, err := os.Stat(filepath.Join(root, filepath.FromSlash(path.Clean("/"+r.URL.Path)))); err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}
