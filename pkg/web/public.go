package web

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/madhesh-litfest/mlf/pkg/collection"
	"github.com/madhesh-litfest/mlf/pkg/content"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
	"github.com/madhesh-litfest/mlf/pkg/search"
	"github.com/madhesh-litfest/mlf/pkg/table"
)

type link struct {
	Label  string
	Href   string
	Active bool
}

type pageLink struct {
	Number   int
	Href     string
	Current  bool
	Ellipsis bool
}

// pager is the pagination strip shared by public and admin listings.
type pager struct {
	Show      bool
	PrevHref  string
	NextHref  string
	Links     []pageLink
	Start     int
	End       int
	Total     int
	Page      int
	PageCount int
}

func newPager[T any](res table.Result[T], href func(page int) string) pager {
	p := pager{
		Show:      res.ShowPagination,
		Start:     res.StartItem,
		End:       res.EndItem,
		Total:     res.Total,
		Page:      res.Page,
		PageCount: res.TotalPages,
	}
	if res.HasPrev {
		p.PrevHref = href(res.Page - 1)
	}
	if res.HasNext {
		p.NextHref = href(res.Page + 1)
	}
	for _, item := range res.Pages {
		if item.Ellipsis {
			p.Links = append(p.Links, pageLink{Ellipsis: true})
			continue
		}
		p.Links = append(p.Links, pageLink{Number: item.Number, Href: href(item.Number), Current: item.Current})
	}
	return p
}

type homeView struct {
	About      template.HTML
	Highlights []content.Feature
	Pillars    []content.Feature
	Evenings   []content.Feature
	Days       []link
	Themes     []link
	Day        content.Day
	Sessions   []content.Session

	Speakers    []content.SpeakerCard
	MoreSpeaker bool
	SpeakersErr string
	Partners    []content.PartnerGroup
	PartnersErr string
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dayNumber := parseIntDefault(q.Get("day"), 1)
	theme := strings.TrimSpace(q.Get("theme"))
	if theme == "" {
		theme = content.AllCategories
	}

	about, err := content.AboutHTML()
	if err != nil {
		s.logger.Error("render about text", zap.Error(err))
	}

	view := homeView{
		About:      about,
		Highlights: content.Highlights,
		Pillars:    content.Pillars,
		Evenings:   content.Evenings,
		Day:        content.ScheduleDay(dayNumber),
	}
	view.Sessions = content.FilterSessions(view.Day.Sessions, theme)
	for _, d := range content.Schedule {
		view.Days = append(view.Days, link{
			Label:  fmt.Sprintf("Day %d · %s", d.Number, d.Date),
			Href:   scheduleHref(d.Number, theme),
			Active: d.Number == view.Day.Number,
		})
	}
	for _, t := range content.ScheduleThemes {
		view.Themes = append(view.Themes, link{Label: t, Href: scheduleHref(view.Day.Number, t), Active: t == theme})
	}

	speakers, partners := s.loadPublic(r.Context())
	view.SpeakersErr = speakers.Err
	view.Speakers = speakers.Records
	if len(view.Speakers) > homeSpeakerLimit {
		view.Speakers = view.Speakers[:homeSpeakerLimit]
		view.MoreSpeaker = true
	}
	view.PartnersErr = partners.Err
	view.Partners = content.GroupPartners(partners.Records)

	s.render(w, r, http.StatusOK, "home", page{Title: content.DefaultFestival.Edition, Section: "home", Body: view})
}

// loadPublic fetches both collections concurrently.
func (s *Server) loadPublic(ctx context.Context) (collection.Snapshot[content.SpeakerCard], collection.Snapshot[content.PartnerCard]) {
	var (
		speakers collection.Snapshot[content.SpeakerCard]
		partners collection.Snapshot[content.PartnerCard]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		speakers = collection.Speakers(s.backend.Records, s.logger).Load(gctx)
		return nil
	})
	g.Go(func() error {
		partners = collection.Partners(s.backend.Records, s.logger).Load(gctx)
		return nil
	})
	_ = g.Wait()
	return speakers, partners
}

func scheduleHref(day int, theme string) string {
	v := url.Values{}
	v.Set("day", strconv.Itoa(day))
	if theme != "" && theme != content.AllCategories {
		v.Set("theme", theme)
	}
	return "/?" + v.Encode() + "#schedule"
}

// speakerResults is the part of the speakers page that live search replaces.
type speakerResults struct {
	Cards []content.SpeakerCard
	Lang  content.Language
	Pager pager
	Err   string
	Hint  string
	Query string
	Empty bool
}

type speakersView struct {
	Query      string
	Category   string
	Categories []link
	MinLength  int
	QuietMs    int64
	Results    speakerResults
}

func (s *Server) handleSpeakers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	category := strings.TrimSpace(q.Get("category"))
	if category == "" {
		category = content.AllCategories
	}
	pageNum := parseIntDefault(q.Get("page"), 1)

	snap := collection.Speakers(s.backend.Records, s.logger).Load(r.Context())

	view := speakersView{
		Query:     query,
		Category:  category,
		MinLength: s.cfg.Search.MinLength,
		QuietMs:   s.cfg.Search.QuietPeriod.Milliseconds(),
		Results:   s.speakerResults(snap, prefsFromContext(r.Context()).Lang, category, query, pageNum),
	}
	for _, c := range content.SpeakerCategoriesPresent(snap.Records) {
		// Choosing a category starts from page 1 and keeps the search.
		view.Categories = append(view.Categories, link{Label: c, Href: speakersHref(c, query, 1), Active: c == category})
	}

	s.render(w, r, http.StatusOK, "speakers", page{Title: "Speakers", Section: "speakers", Body: view})
}

func (s *Server) speakerResults(snap collection.Snapshot[content.SpeakerCard], lang content.Language, category, query string, pageNum int) speakerResults {
	out := speakerResults{Err: snap.Err, Lang: lang, Query: strings.TrimSpace(query)}
	if search.BelowMinimum(query, s.cfg.Search.MinLength) {
		out.Hint = s.minLengthHint()
	}
	matched := filterPublicSpeakers(snap.Records, category, query, s.cfg.Search.MinLength)
	res := table.Paginate(matched, pageNum, publicPageSize)
	out.Cards = res.Rows
	out.Empty = res.Empty
	out.Pager = newPager(res, func(p int) string { return speakersHref(category, query, p) })
	return out
}

type speakerView struct {
	speakerCardView
	Bio []string
}

// handleSpeakerDetail shows one speaker with the full biography.
func (s *Server) handleSpeakerDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	card, err := s.speakers.Get(r.Context(), nil, id)
	if mlferrors.IsCode(err, mlferrors.ErrCodeNotFound) {
		s.handleNotFound(w, r)
		return
	}
	if err != nil {
		s.logger.Warn("load speaker", zap.String("id", id), zap.Error(err))
		p := page{Title: "Speakers", Section: "speakers", Error: mlferrors.UserText(err, "Failed to load speaker")}
		if e, ok := mlferrors.As(err); ok {
			p.Remediation = e.Remediation
		}
		s.render(w, r, statusForError(err), "error", p)
		return
	}
	view := speakerView{
		speakerCardView: cardFor(card, prefsFromContext(r.Context()).Lang),
		Bio:             paragraphs(card.Bio),
	}
	s.render(w, r, http.StatusOK, "speaker", page{Title: view.Title(), Section: "speakers", Body: view})
}

func (s *Server) minLengthHint() string {
	return fmt.Sprintf("Type at least %d characters to search", s.cfg.Search.MinLength)
}

func filterPublicSpeakers(all []content.SpeakerCard, category, query string, minLen int) []content.SpeakerCard {
	byCategory := content.FilterSpeakersByCategory(all, category)
	return search.Filter(byCategory, search.Effective(query, minLen), search.MatchSpeakerPublic)
}

func speakersHref(category, query string, pageNum int) string {
	v := url.Values{}
	if category != "" && category != content.AllCategories {
		v.Set("category", category)
	}
	if q := strings.TrimSpace(query); q != "" {
		v.Set("q", q)
	}
	if pageNum > 1 {
		v.Set("page", strconv.Itoa(pageNum))
	}
	if len(v) == 0 {
		return "/speakers"
	}
	return "/speakers?" + v.Encode()
}
