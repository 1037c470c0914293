package web

import (
	stdliberrors "errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/madhesh-litfest/mlf/pkg/admin"
	"github.com/madhesh-litfest/mlf/pkg/backend"
	"github.com/madhesh-litfest/mlf/pkg/content"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
	"github.com/madhesh-litfest/mlf/pkg/media"
	"github.com/madhesh-litfest/mlf/pkg/search"
	"github.com/madhesh-litfest/mlf/pkg/table"
)

// collectionAdmin serves the list, form, delete and export pages of one
// collection.
type collectionAdmin[T any, P admin.Payload] struct {
	s          *Server
	svc        *admin.Service[T, P]
	label      string
	columns    []table.Column[T]
	match      func(T, string) bool
	id         func(T) string
	title      func(T) string
	decode     func(r *http.Request) P
	prefill    func(T) P
	image      func(P) string
	setImage   func(P, string) P
	form       string
	categories []string
}

func newSpeakerAdmin(s *Server) *collectionAdmin[content.SpeakerCard, content.SpeakerInput] {
	cats := make([]string, 0, len(content.SpeakerCategories))
	for _, c := range content.SpeakerCategories {
		cats = append(cats, string(c))
	}
	return &collectionAdmin[content.SpeakerCard, content.SpeakerInput]{
		s:       s,
		svc:     s.speakers,
		label:   "Speakers",
		columns: admin.SpeakerColumns(),
		match:   search.MatchSpeaker,
		id:      func(c content.SpeakerCard) string { return c.ID },
		title:   func(c content.SpeakerCard) string { return c.Name },
		decode: func(r *http.Request) content.SpeakerInput {
			return content.SpeakerInput{
				Name:     r.PostFormValue("name"),
				NameNp:   r.PostFormValue("name_np"),
				Domain:   r.PostFormValue("domain"),
				Country:  r.PostFormValue("country"),
				Category: r.PostFormValue("category"),
				Bio:      r.PostFormValue("bio"),
				PhotoURL: r.PostFormValue("photo_url"),
			}
		},
		prefill: content.SpeakerInputFrom,
		image:   func(in content.SpeakerInput) string { return in.PhotoURL },
		setImage: func(in content.SpeakerInput, u string) content.SpeakerInput {
			in.PhotoURL = u
			return in
		},
		form:       "speaker_form",
		categories: cats,
	}
}

func newPartnerAdmin(s *Server) *collectionAdmin[content.PartnerCard, content.PartnerInput] {
	cats := make([]string, 0, len(content.PartnerCategories))
	for _, c := range content.PartnerCategories {
		cats = append(cats, string(c))
	}
	return &collectionAdmin[content.PartnerCard, content.PartnerInput]{
		s:       s,
		svc:     s.partners,
		label:   "Partners",
		columns: admin.PartnerColumns(),
		match:   search.MatchPartner,
		id:      func(c content.PartnerCard) string { return c.ID },
		title:   func(c content.PartnerCard) string { return c.Name },
		decode: func(r *http.Request) content.PartnerInput {
			return content.PartnerInput{
				Name:       r.PostFormValue("name"),
				NameNp:     r.PostFormValue("name_np"),
				Category:   r.PostFormValue("category"),
				LogoURL:    r.PostFormValue("logo_url"),
				WebsiteURL: r.PostFormValue("website_url"),
			}
		},
		prefill: content.PartnerInputFrom,
		image:   func(in content.PartnerInput) string { return in.LogoURL },
		setImage: func(in content.PartnerInput, u string) content.PartnerInput {
			in.LogoURL = u
			return in
		},
		form:       "partner_form",
		categories: cats,
	}
}

func (c *collectionAdmin[T, P]) routes(r chi.Router) {
	r.Get("/", c.list)
	r.Post("/", c.create)
	r.Get("/new", c.newForm)
	r.Get("/export.xlsx", c.export)
	r.Get("/{id}/edit", c.edit)
	r.Post("/{id}", c.update)
	r.Get("/{id}/delete", c.confirmDelete)
	r.Post("/{id}/delete", c.delete)
}

func (c *collectionAdmin[T, P]) base() string { return "/admin/" + c.svc.Name() }

func (c *collectionAdmin[T, P]) singularTitle() string {
	s := c.svc.Singular()
	return strings.ToUpper(s[:1]) + s[1:]
}

// listState is the table state carried in the list URL.
type listState struct {
	Query   string
	Sort    string
	Dir     table.Direction
	Page    int
	PerPage int
}

func parseListState(r *http.Request) listState {
	q := r.URL.Query()
	return listState{
		Query:   q.Get("q"),
		Sort:    strings.TrimSpace(q.Get("sort")),
		Dir:     table.ParseDirection(q.Get("dir")),
		Page:    parseIntDefault(q.Get("page"), 1),
		PerPage: parseIntDefault(q.Get("per_page"), 0),
	}
}

func (st listState) href(base string) string {
	v := url.Values{}
	if q := strings.TrimSpace(st.Query); q != "" {
		v.Set("q", q)
	}
	if st.Sort != "" {
		v.Set("sort", st.Sort)
		v.Set("dir", string(st.Dir))
	}
	if st.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(st.PerPage))
	}
	if st.Page > 1 {
		v.Set("page", strconv.Itoa(st.Page))
	}
	if len(v) == 0 {
		return base
	}
	return base + "?" + v.Encode()
}

// view restores a table view from the URL state. Page size and sort are
// applied before the page because both reset it.
func (c *collectionAdmin[T, P]) view(st listState) *table.View[T] {
	v := table.NewView(c.columns)
	v.Actions = true
	if st.PerPage > 0 {
		v.SetPageSize(st.PerPage)
	}
	if st.Sort != "" {
		v.SetSort(st.Sort, st.Dir)
	}
	v.SetPage(st.Page)
	return v
}

type listColumn struct {
	Label    string
	Class    string
	Sortable bool
	Href     string
	Active   bool
	Dir      string
}

type listCell struct {
	HTML  template.HTML
	Class string
}

type listRow struct {
	ID         string
	Title      string
	Cells      []listCell
	EditHref   string
	DeleteHref string
}

type listView struct {
	Label      string
	Singular   string
	Base       string
	Query      string
	Sort       string
	Dir        string
	PerPage    int
	Hint       string
	Columns    []listColumn
	Rows       []listRow
	Actions    bool
	Empty      bool
	Filtered   bool
	PageSizes  []link
	Pager      pager
	Err        string
	ExportHref string
}

var notices = map[string]string{
	"created": "%s created.",
	"updated": "%s updated.",
	"deleted": "%s deleted.",
}

func (c *collectionAdmin[T, P]) list(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	st := parseListState(r)
	v := c.view(st)
	minLen := c.s.cfg.Search.MinLength

	snap := c.svc.List(r.Context(), sess.Backend)
	query := search.Effective(st.Query, minLen)
	records := search.Filter(snap.Records, query, c.match)
	res := v.Render(records)

	// Links carry the effective state, not the raw request.
	st.PerPage = v.PageSize()
	if sort := v.Sort(); sort != nil {
		st.Sort, st.Dir = sort.Key, sort.Direction
	} else {
		st.Sort = ""
	}

	view := listView{
		Label:    c.label,
		Singular: c.svc.Singular(),
		Base:     c.base(),
		Query:    st.Query,
		Sort:     st.Sort,
		Dir:      string(st.Dir),
		PerPage:  st.PerPage,
		Actions:  res.Actions,
		Empty:    res.Empty,
		Filtered: query != "" && len(snap.Records) > 0,
		Err:      snap.Err,
	}
	if search.BelowMinimum(st.Query, minLen) {
		view.Hint = c.s.minLengthHint()
	}
	exportState := st
	exportState.Page, exportState.PerPage = 0, 0
	view.ExportHref = exportState.href(c.base() + "/export.xlsx")

	for _, col := range c.columns {
		lc := listColumn{Label: col.Label, Class: col.Class, Sortable: col.Sortable}
		if col.Sortable {
			next := v.NextSort(col.Key)
			linkState := st
			linkState.Sort, linkState.Dir, linkState.Page = next.Key, next.Direction, 1
			lc.Href = linkState.href(c.base())
			if st.Sort == col.Key {
				lc.Active = true
				lc.Dir = string(st.Dir)
			}
		}
		view.Columns = append(view.Columns, lc)
	}
	for _, rec := range res.Rows {
		id := c.id(rec)
		row := listRow{
			ID:         id,
			Title:      c.title(rec),
			EditHref:   c.base() + "/" + url.PathEscape(id) + "/edit",
			DeleteHref: c.base() + "/" + url.PathEscape(id) + "/delete",
		}
		for _, col := range c.columns {
			row.Cells = append(row.Cells, listCell{HTML: col.Cell(rec), Class: col.Class})
		}
		view.Rows = append(view.Rows, row)
	}
	for _, n := range v.PageSizes {
		sizeState := st
		sizeState.PerPage, sizeState.Page = n, 1
		view.PageSizes = append(view.PageSizes, link{Label: strconv.Itoa(n), Href: sizeState.href(c.base()), Active: n == v.PageSize()})
	}
	view.Pager = newPager(res, func(p int) string {
		pageState := st
		pageState.Page = p
		return pageState.href(c.base())
	})

	p := page{Title: c.label, Section: c.svc.Name(), Body: view}
	if format, ok := notices[r.URL.Query().Get("notice")]; ok {
		p.Notice = fmt.Sprintf(format, c.singularTitle())
	}
	c.s.render(w, r, http.StatusOK, "admin_list", p)
}

type formView struct {
	Label      string
	Singular   string
	Base       string
	Action     string
	Editing    bool
	ID         string
	Values     any
	Image      string
	Categories []string
	MaxImageMB int
}

func (c *collectionAdmin[T, P]) renderForm(w http.ResponseWriter, r *http.Request, status int, id string, values P, err error) {
	view := formView{
		Label:      c.label,
		Singular:   c.svc.Singular(),
		Base:       c.base(),
		Action:     c.base(),
		Editing:    id != "",
		ID:         id,
		Values:     values,
		Image:      c.image(values),
		Categories: c.categories,
		MaxImageMB: media.MaxImageBytes >> 20,
	}
	title := "Add " + c.svc.Singular()
	if id != "" {
		view.Action = c.base() + "/" + url.PathEscape(id)
		title = "Edit " + c.svc.Singular()
	}
	p := page{Title: title, Section: c.svc.Name(), Body: view}
	if err != nil {
		p.Error = mlferrors.UserText(err, "Failed to save "+c.svc.Singular())
		if e, ok := mlferrors.As(err); ok {
			p.Remediation = e.Remediation
		}
	}
	c.s.render(w, r, status, c.form, p)
}

func (c *collectionAdmin[T, P]) newForm(w http.ResponseWriter, r *http.Request) {
	var zero P
	c.renderForm(w, r, http.StatusOK, "", zero, nil)
}

func (c *collectionAdmin[T, P]) edit(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	id := chi.URLParam(r, "id")
	rec, err := c.svc.Get(r.Context(), sess.Backend, id)
	if err != nil {
		c.s.adminError(w, r, c.svc.Name(), err)
		return
	}
	c.renderForm(w, r, http.StatusOK, id, c.prefill(rec), nil)
}

func (c *collectionAdmin[T, P]) create(w http.ResponseWriter, r *http.Request) {
	c.save(w, r, "")
}

func (c *collectionAdmin[T, P]) update(w http.ResponseWriter, r *http.Request) {
	c.save(w, r, chi.URLParam(r, "id"))
}

// save handles both create and update: parse, validate, attach any image,
// then run the service save which re-verifies the administrator before
// writing. Success redirects to the list, which fetches fresh data.
func (c *collectionAdmin[T, P]) save(w http.ResponseWriter, r *http.Request, id string) {
	sess := sessionFromContext(r.Context())
	if err := c.s.parseUploadForm(w, r); err != nil {
		var zero P
		c.renderForm(w, r, statusForError(err), id, zero, err)
		return
	}
	payload := c.decode(r)
	if err := payload.Validate(); err != nil {
		c.renderForm(w, r, http.StatusBadRequest, id, payload, err)
		return
	}

	imageURL, err := c.s.attachImage(r, sess.Backend, c.svc.Name(), payload.Title())
	if err != nil {
		if mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized) {
			c.s.sessionExpired(w, r)
			return
		}
		c.renderForm(w, r, statusForError(err), id, payload, err)
		return
	}
	if imageURL != "" {
		payload = c.setImage(payload, imageURL)
	}

	if _, err := c.svc.Save(r.Context(), sess.Backend, id, payload); err != nil {
		if mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized) {
			c.s.sessionExpired(w, r)
			return
		}
		c.renderForm(w, r, statusForError(err), id, payload, err)
		return
	}
	notice := "updated"
	if id == "" {
		notice = "created"
	}
	http.Redirect(w, r, c.base()+"?notice="+notice, http.StatusSeeOther)
}

type deleteView struct {
	Label    string
	Singular string
	Base     string
	Action   string
	Title    string
	Message  string
}

func (c *collectionAdmin[T, P]) confirmDelete(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	id := chi.URLParam(r, "id")
	rec, err := c.svc.Get(r.Context(), sess.Backend, id)
	if err != nil {
		c.s.adminError(w, r, c.svc.Name(), err)
		return
	}
	// Asking the service without confirmation yields the prompt text.
	prompt := c.svc.Delete(r.Context(), sess.Backend, id, false)
	c.s.render(w, r, http.StatusOK, "confirm_delete", page{
		Title:   "Delete " + c.svc.Singular(),
		Section: c.svc.Name(),
		Body: deleteView{
			Label:    c.label,
			Singular: c.svc.Singular(),
			Base:     c.base(),
			Action:   c.base() + "/" + url.PathEscape(id) + "/delete",
			Title:    c.title(rec),
			Message:  mlferrors.UserText(prompt, ""),
		},
	})
}

func (c *collectionAdmin[T, P]) delete(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		c.s.adminError(w, r, c.svc.Name(), mlferrors.Validation("Invalid form"))
		return
	}
	confirmed := r.PostFormValue("confirm") == "yes"
	err := c.svc.Delete(r.Context(), sess.Backend, id, confirmed)
	switch {
	case err == nil:
		http.Redirect(w, r, c.base()+"?notice=deleted", http.StatusSeeOther)
	case mlferrors.IsCode(err, mlferrors.ErrCodeConfirmationRequired):
		http.Redirect(w, r, c.base()+"/"+url.PathEscape(id)+"/delete", http.StatusSeeOther)
	case mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized):
		c.s.sessionExpired(w, r)
	default:
		c.s.adminError(w, r, c.svc.Name(), err)
	}
}

func (c *collectionAdmin[T, P]) export(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	st := parseListState(r)
	v := c.view(st)
	snap := c.svc.List(r.Context(), sess.Backend)
	if snap.Failed() {
		c.s.adminError(w, r, c.svc.Name(), mlferrors.New(mlferrors.ErrCodeRemoteCall, "list failed").WithUserMessage(snap.Err))
		return
	}
	records := v.Sorted(search.Filter(snap.Records, search.Effective(st.Query, c.s.cfg.Search.MinLength), c.match))

	filename := fmt.Sprintf("%s-%s.xlsx", c.svc.Name(), c.s.now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Cache-Control", "no-store")
	if err := admin.Export(w, c.label, c.columns, records); err != nil {
		c.s.logger.Error("export failed", zap.String("collection", c.svc.Name()), zap.Error(err))
	}
}

// adminError renders an error page for admin requests. Unauthorized
// results end the session instead.
func (s *Server) adminError(w http.ResponseWriter, r *http.Request, section string, err error) {
	if mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized) {
		s.sessionExpired(w, r)
		return
	}
	p := page{Title: "Error", Section: section, Error: mlferrors.UserText(err, "Request failed")}
	if e, ok := mlferrors.As(err); ok {
		p.Remediation = e.Remediation
	}
	s.render(w, r, statusForError(err), "error", p)
}

// parseUploadForm parses a urlencoded or multipart admin form. Bodies over
// the upload ceiling are reported with the image size message.
func (s *Server) parseUploadForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes+1<<20)
	err := r.ParseMultipartForm(1 << 20)
	if stdliberrors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err == nil {
		return nil
	}
	var maxErr *http.MaxBytesError
	if stdliberrors.As(err, &maxErr) {
		return mlferrors.Validation(media.MsgTooLarge)
	}
	return mlferrors.Wrap(err, mlferrors.ErrCodeValidation, "parse form").WithUserMessage("Invalid form submission")
}

// attachImage uploads the "image" file field, or fetches "image_url", and
// returns the public URL. It returns "" when neither was supplied.
func (s *Server) attachImage(r *http.Request, session *backend.Session, collection, recordName string) (string, error) {
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["image"]; len(files) > 0 && files[0].Filename != "" {
			header := files[0]
			f, err := header.Open()
			if err != nil {
				return "", mlferrors.Wrap(err, mlferrors.ErrCodeValidation, "open upload").WithUserMessage("Failed to read uploaded image")
			}
			defer f.Close()
			return s.uploader.Upload(r.Context(), session, collection, recordName, media.File{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
				Body:        f,
			})
		}
	}
	if remote := strings.TrimSpace(r.PostFormValue("image_url")); remote != "" {
		return s.uploader.FetchAndUpload(r.Context(), session, collection, recordName, remote)
	}
	return "", nil
}
