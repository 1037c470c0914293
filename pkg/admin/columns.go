package admin

import (
	"fmt"
	"html/template"

	"github.com/madhesh-litfest/mlf/pkg/content"
	"github.com/madhesh-litfest/mlf/pkg/table"
)

const createdLayout = "2006-01-02 15:04"

func present(s string) (string, bool) { return s, s != "" }

func badge(label string, color content.Color) template.HTML {
	return template.HTML(fmt.Sprintf(`<span class="badge badge-%s">%s</span>`,
		template.HTMLEscapeString(string(color)), template.HTMLEscapeString(label)))
}

func thumbnail(src, alt string) template.HTML {
	if src == "" {
		return `<span class="thumb thumb-empty">—</span>`
	}
	return template.HTML(fmt.Sprintf(`<img class="thumb" src="%s" alt="%s" loading="lazy">`,
		template.HTMLEscapeString(src), template.HTMLEscapeString(alt)))
}

// SpeakerColumns are the admin speakers table columns.
func SpeakerColumns() []table.Column[content.SpeakerCard] {
	return []table.Column[content.SpeakerCard]{
		{
			Key:    "photo_url",
			Label:  "Photo",
			Value:  func(s content.SpeakerCard) (string, bool) { return present(s.PhotoURL) },
			Render: func(s content.SpeakerCard) template.HTML { return thumbnail(s.PhotoURL, s.Name) },
			Class:  "col-thumb",
		},
		{Key: "name", Label: "Name", Sortable: true, Value: func(s content.SpeakerCard) (string, bool) { return present(s.Name) }},
		{Key: "name_np", Label: "Name (Nepali)", Sortable: true, Value: func(s content.SpeakerCard) (string, bool) { return present(s.NameNp) }},
		{Key: "domain", Label: "Domain", Sortable: true, Value: func(s content.SpeakerCard) (string, bool) { return present(s.Domain) }},
		{Key: "country", Label: "Country", Sortable: true, Value: func(s content.SpeakerCard) (string, bool) { return present(s.Country) }},
		{
			Key:      "category",
			Label:    "Category",
			Sortable: true,
			Value:    func(s content.SpeakerCard) (string, bool) { return present(string(s.Category)) },
			Render:   func(s content.SpeakerCard) template.HTML { return badge(string(s.Category), s.Category.Color()) },
		},
		{Key: "created_at", Label: "Added", Sortable: true, Value: func(s content.SpeakerCard) (string, bool) { return timeValue(s.CreatedAt) }},
	}
}

// PartnerColumns are the admin partners table columns.
func PartnerColumns() []table.Column[content.PartnerCard] {
	return []table.Column[content.PartnerCard]{
		{
			Key:    "logo_url",
			Label:  "Logo",
			Value:  func(p content.PartnerCard) (string, bool) { return present(p.LogoURL) },
			Render: func(p content.PartnerCard) template.HTML { return thumbnail(p.LogoURL, p.Name) },
			Class:  "col-thumb",
		},
		{Key: "name", Label: "Name", Sortable: true, Value: func(p content.PartnerCard) (string, bool) { return present(p.Name) }},
		{Key: "name_np", Label: "Name (Nepali)", Sortable: true, Value: func(p content.PartnerCard) (string, bool) { return present(p.NameNp) }},
		{
			Key:      "category",
			Label:    "Category",
			Sortable: true,
			Value:    func(p content.PartnerCard) (string, bool) { return present(string(p.Category)) },
			Render:   func(p content.PartnerCard) template.HTML { return badge(string(p.Category), p.Category.Color()) },
		},
		{
			Key:      "website_url",
			Label:    "Website",
			Sortable: true,
			Value:    func(p content.PartnerCard) (string, bool) { return present(p.WebsiteURL) },
			Render: func(p content.PartnerCard) template.HTML {
				if p.WebsiteURL == "" {
					return "—"
				}
				u := template.HTMLEscapeString(p.WebsiteURL)
				return template.HTML(`<a href="` + u + `" target="_blank" rel="noopener">` + u + `</a>`)
			},
		},
		{Key: "created_at", Label: "Added", Sortable: true, Value: func(p content.PartnerCard) (string, bool) { return timeValue(p.CreatedAt) }},
	}
}
