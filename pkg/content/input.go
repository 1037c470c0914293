package content

import (
	"net/url"
	"strings"

	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
)

// SpeakerInput is the admin form payload for a speaker.
type SpeakerInput struct {
	Name     string
	NameNp   string
	Domain   string
	Country  string
	Category string
	Bio      string
	PhotoURL string
}

// Collection implements admin payloads.
func (in SpeakerInput) Collection() string { return CollectionSpeakers }

// Title is the record name used for slugs and messages.
func (in SpeakerInput) Title() string { return strings.TrimSpace(in.Name) }

// Validate enforces required fields and the category enumeration.
func (in SpeakerInput) Validate() error {
	for _, f := range []struct{ label, value string }{
		{"Name", in.Name},
		{"Domain", in.Domain},
		{"Country", in.Country},
		{"Category", in.Category},
		{"Bio", in.Bio},
	} {
		if strings.TrimSpace(f.value) == "" {
			return mlferrors.Validation(f.label+" is required").WithContext("field", strings.ToLower(f.label))
		}
	}
	if _, ok := ParseSpeakerCategory(in.Category); !ok {
		return mlferrors.Validation("Category must be one of: " + joinSpeakerCategories()).WithContext("category", in.Category)
	}
	return nil
}

// Fields returns the column values written to the store. Optional blanks
// are written as nulls.
func (in SpeakerInput) Fields() map[string]any {
	return map[string]any{
		"name":      strings.TrimSpace(in.Name),
		"name_np":   StringPtr(in.NameNp),
		"domain":    strings.TrimSpace(in.Domain),
		"country":   strings.TrimSpace(in.Country),
		"category":  strings.TrimSpace(in.Category),
		"bio":       strings.TrimSpace(in.Bio),
		"photo_url": StringPtr(in.PhotoURL),
	}
}

// SpeakerInputFrom prefills the admin form from a stored record.
func SpeakerInputFrom(c SpeakerCard) SpeakerInput {
	return SpeakerInput{
		Name:     c.Name,
		NameNp:   c.NameNp,
		Domain:   c.Domain,
		Country:  c.Country,
		Category: string(c.Category),
		Bio:      c.Bio,
		PhotoURL: c.PhotoURL,
	}
}

// PartnerInput is the admin form payload for a partner.
type PartnerInput struct {
	Name       string
	NameNp     string
	Category   string
	LogoURL    string
	WebsiteURL string
}

// Collection implements admin payloads.
func (in PartnerInput) Collection() string { return CollectionPartners }

// Title is the record name used for slugs and messages.
func (in PartnerInput) Title() string { return strings.TrimSpace(in.Name) }

// Validate enforces required fields, the category enumeration and a
// well-formed website URL when one is given.
func (in PartnerInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return mlferrors.Validation("Name is required").WithContext("field", "name")
	}
	if strings.TrimSpace(in.Category) == "" {
		return mlferrors.Validation("Category is required").WithContext("field", "category")
	}
	if _, ok := ParsePartnerCategory(in.Category); !ok {
		return mlferrors.Validation("Category must be one of: " + joinPartnerCategories()).WithContext("category", in.Category)
	}
	if site := strings.TrimSpace(in.WebsiteURL); site != "" {
		u, err := url.Parse(site)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return mlferrors.Validation("Website must be an http(s) URL").WithContext("field", "website_url")
		}
	}
	return nil
}

// Fields returns the column values written to the store.
func (in PartnerInput) Fields() map[string]any {
	return map[string]any{
		"name":        strings.TrimSpace(in.Name),
		"name_np":     StringPtr(in.NameNp),
		"category":    strings.TrimSpace(in.Category),
		"logo_url":    StringPtr(in.LogoURL),
		"website_url": StringPtr(in.WebsiteURL),
	}
}

// PartnerInputFrom prefills the admin form from a stored record.
func PartnerInputFrom(c PartnerCard) PartnerInput {
	return PartnerInput{
		Name:       c.Name,
		NameNp:     c.NameNp,
		Category:   string(c.Category),
		LogoURL:    c.LogoURL,
		WebsiteURL: c.WebsiteURL,
	}
}

func joinSpeakerCategories() string {
	parts := make([]string, len(SpeakerCategories))
	for i, c := range SpeakerCategories {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

func joinPartnerCategories() string {
	parts := make([]string, len(PartnerCategories))
	for i, c := range PartnerCategories {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
