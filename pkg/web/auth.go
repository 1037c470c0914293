package web

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/madhesh-litfest/mlf/pkg/content"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
	"github.com/madhesh-litfest/mlf/pkg/telemetry"
)

const (
	loginPath     = "/admin/login"
	dashboardPath = "/admin/dashboard"
	maxLoginBytes = 16 << 10
)

func errNotSignedIn() *mlferrors.Error {
	return mlferrors.Unauthorized("Not authenticated")
}

type loginView struct {
	Email string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if sessionFromContext(r.Context()) != nil {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	p := page{Title: "Admin sign in", Section: "login", Body: loginView{}}
	if r.URL.Query().Get("expired") != "" {
		p.Notice = "Your session has expired. Please sign in again."
	}
	s.render(w, r, http.StatusOK, "login", p)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBytes)
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, "login", page{Title: "Admin sign in", Section: "login", Error: "Invalid sign-in form", Body: loginView{}})
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	view := loginView{Email: email}

	if !s.loginLimiter.Allow(clientIP(r)) {
		s.logger.Warn("login rate limited", zap.String("ip", clientIP(r)))
		s.render(w, r, http.StatusTooManyRequests, "login", page{
			Title:   "Admin sign in",
			Section: "login",
			Error:   "Too many sign-in attempts. Please wait a minute and try again.",
			Body:    view,
		})
		return
	}
	if email == "" || password == "" {
		s.render(w, r, http.StatusBadRequest, "login", page{Title: "Admin sign in", Section: "login", Error: "Email and password are required", Body: view})
		return
	}
	if s.backend.Auth == nil {
		s.render(w, r, http.StatusServiceUnavailable, "login", page{Title: "Admin sign in", Section: "login", Error: "Authentication is not configured", Body: view})
		return
	}

	session, err := s.backend.Auth.SignIn(r.Context(), email, password)
	telemetry.ObserveLogin(err)
	if err != nil {
		s.logger.Info("admin sign-in failed", zap.String("email", email), zap.Error(err))
		s.render(w, r, statusForError(err), "login", page{
			Title:   "Admin sign in",
			Section: "login",
			Error:   mlferrors.UserText(err, "Sign-in failed"),
			Body:    view,
		})
		return
	}

	id, err := randomHex(32)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	expires := s.now().Add(s.cfg.Server.SessionTTL)
	if err := s.sessions.CreateWebSession(id, session, expires); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.setSessionCookie(w, r, id, expires)
	s.refreshSessionGauge()
	s.logger.Info("admin signed in", zap.String("email", session.Email))
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := sessionFromContext(r.Context()); sess != nil {
		s.endSession(w, r, sess)
	}
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

// endSession drops the web session and signs out of the backend. A failed
// backend sign-out still ends the local session.
func (s *Server) endSession(w http.ResponseWriter, r *http.Request, sess *adminSession) {
	if err := s.sessions.DeleteWebSession(sess.ID); err != nil {
		s.logger.Warn("delete web session failed", zap.Error(err))
	}
	if s.backend.Auth != nil && sess.Backend != nil {
		if err := s.backend.Auth.SignOut(r.Context(), sess.Backend); err != nil {
			s.logger.Info("backend sign-out failed", zap.Error(err))
		}
	}
	s.clearSessionCookie(w, r)
	s.refreshSessionGauge()
}

// sessionExpired handles UNAUTHORIZED results of admin writes: the stored
// web session no longer maps to a valid identity.
func (s *Server) sessionExpired(w http.ResponseWriter, r *http.Request) {
	s.dropSession(w, r, sessionFromContext(r.Context()))
	http.Redirect(w, r, loginPath+"?expired=1", http.StatusSeeOther)
}

// dropSession forgets the web session locally without calling the backend.
func (s *Server) dropSession(w http.ResponseWriter, r *http.Request, sess *adminSession) {
	if sess != nil {
		if err := s.sessions.DeleteWebSession(sess.ID); err != nil {
			s.logger.Warn("delete web session failed", zap.Error(err))
		}
	}
	s.clearSessionCookie(w, r)
	s.refreshSessionGauge()
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	s.render(w, r, http.StatusInternalServerError, "error", page{
		Title: "Something went wrong",
		Error: "Something went wrong. Please try again.",
	})
}

func (s *Server) handleAdminIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

type categoryCount struct {
	Label string
	Color content.Color
	Count int
}

type dashboardView struct {
	SpeakerCount   int
	PartnerCount   int
	SpeakersErr    string
	PartnersErr    string
	SpeakersByKind []categoryCount
	PartnersByKind []categoryCount
	Recent         []content.SpeakerCard
	Backend        string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	speakers := s.speakers.List(r.Context(), sess.Backend)
	partners := s.partners.List(r.Context(), sess.Backend)

	view := dashboardView{
		SpeakerCount: len(speakers.Records),
		PartnerCount: len(partners.Records),
		SpeakersErr:  speakers.Err,
		PartnersErr:  partners.Err,
		Backend:      s.backend.Name,
	}
	for _, c := range content.SpeakerCategories {
		n := len(content.FilterSpeakersByCategory(speakers.Records, string(c)))
		view.SpeakersByKind = append(view.SpeakersByKind, categoryCount{Label: string(c), Color: c.Color(), Count: n})
	}
	for _, g := range content.GroupPartners(partners.Records) {
		view.PartnersByKind = append(view.PartnersByKind, categoryCount{Label: string(g.Category), Color: g.Category.Color(), Count: len(g.Partners)})
	}
	view.Recent = speakers.Records
	if len(view.Recent) > 5 {
		view.Recent = view.Recent[:5]
	}
	s.render(w, r, http.StatusOK, "dashboard", page{Title: "Dashboard", Section: "dashboard", Body: view})
}
