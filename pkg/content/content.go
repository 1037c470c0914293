// Package content holds the festival's record types, their closed category
// enumerations, and the static copy rendered on the public site.
package content

import (
	"strings"
	"time"
)

// Collection names in the remote store.
const (
	CollectionSpeakers = "speakers"
	CollectionPartners = "partners"
)

// Color is a palette token used by templates.
type Color string

const (
	ColorIndigo    Color = "indigo"
	ColorSaffron   Color = "saffron"
	ColorLeafGreen Color = "leaf-green"
	ColorRoyalBlue Color = "royal-blue"
	ColorMaroon    Color = "maroon"
)

// SpeakerCategory is the closed set of speaker groupings.
type SpeakerCategory string

const (
	CategoryWritersThinkers SpeakerCategory = "Writers & Thinkers"
	CategoryPerformers      SpeakerCategory = "Performers"
	CategoryPoets           SpeakerCategory = "Poets"
	CategoryInternational   SpeakerCategory = "International"
)

// SpeakerCategories lists speaker categories in display order.
var SpeakerCategories = []SpeakerCategory{
	CategoryWritersThinkers,
	CategoryPerformers,
	CategoryPoets,
	CategoryInternational,
}

var speakerCategoryColors = map[SpeakerCategory]Color{
	CategoryWritersThinkers: ColorIndigo,
	CategoryPerformers:      ColorSaffron,
	CategoryPoets:           ColorLeafGreen,
	CategoryInternational:   ColorRoyalBlue,
}

// ParseSpeakerCategory maps a stored string onto the enumeration.
func ParseSpeakerCategory(raw string) (SpeakerCategory, bool) {
	raw = strings.TrimSpace(raw)
	for _, c := range SpeakerCategories {
		if string(c) == raw {
			return c, true
		}
	}
	return "", false
}

// Color returns the palette token for the category. Only enumerated values
// carry a color; unknown values render uncolored.
func (c SpeakerCategory) Color() Color {
	return speakerCategoryColors[c]
}

// PartnerCategory is the closed set of partner groupings.
type PartnerCategory string

const (
	PartnerOrganizedBy       PartnerCategory = "Organized By"
	PartnerSupportedBy       PartnerCategory = "Supported By"
	PartnerCultural          PartnerCategory = "Cultural Partner"
	PartnerTech              PartnerCategory = "Tech Partner"
	PartnerCommunityPartners PartnerCategory = "Community Partners"
)

// PartnerCategories lists partner categories in display order.
var PartnerCategories = []PartnerCategory{
	PartnerOrganizedBy,
	PartnerSupportedBy,
	PartnerCultural,
	PartnerTech,
	PartnerCommunityPartners,
}

var partnerCategoryColors = map[PartnerCategory]Color{
	PartnerOrganizedBy:       ColorMaroon,
	PartnerSupportedBy:       ColorIndigo,
	PartnerCultural:          ColorSaffron,
	PartnerTech:              ColorRoyalBlue,
	PartnerCommunityPartners: ColorLeafGreen,
}

// ParsePartnerCategory maps a stored string onto the enumeration.
func ParsePartnerCategory(raw string) (PartnerCategory, bool) {
	raw = strings.TrimSpace(raw)
	for _, c := range PartnerCategories {
		if string(c) == raw {
			return c, true
		}
	}
	return "", false
}

// Color returns the palette token for the category.
func (c PartnerCategory) Color() Color {
	return partnerCategoryColors[c]
}

// Speaker is the stored shape of a speaker row.
type Speaker struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	NameNp    *string    `json:"name_np"`
	Domain    string     `json:"domain"`
	Country   string     `json:"country"`
	Category  string     `json:"category"`
	Bio       string     `json:"bio"`
	PhotoURL  *string    `json:"photo_url"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Partner is the stored shape of a partner row.
type Partner struct {
	ID         string     `json:"id,omitempty"`
	Name       string     `json:"name"`
	NameNp     *string    `json:"name_np"`
	Category   string     `json:"category"`
	LogoURL    *string    `json:"logo_url"`
	WebsiteURL *string    `json:"website_url"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// SpeakerCard is the display shape used by public pages and admin tables.
type SpeakerCard struct {
	ID        string
	Name      string
	NameNp    string
	Domain    string
	Country   string
	Category  SpeakerCategory
	Bio       string
	PhotoURL  string
	CreatedAt time.Time
}

// PartnerCard is the display shape of a partner.
type PartnerCard struct {
	ID         string
	Name       string
	NameNp     string
	Category   PartnerCategory
	LogoURL    string
	WebsiteURL string
	CreatedAt  time.Time
}

// Initial returns the first letter of the partner name for logo placeholders.
func (p PartnerCard) Initial() string {
	for _, r := range p.Name {
		return strings.ToUpper(string(r))
	}
	return "?"
}

// Card maps a stored speaker onto its display shape.
func (s Speaker) Card() SpeakerCard {
	card := SpeakerCard{
		ID:       s.ID,
		Name:     s.Name,
		NameNp:   deref(s.NameNp),
		Domain:   s.Domain,
		Country:  s.Country,
		Category: SpeakerCategory(s.Category),
		Bio:      s.Bio,
		PhotoURL: deref(s.PhotoURL),
	}
	if s.CreatedAt != nil {
		card.CreatedAt = *s.CreatedAt
	}
	return card
}

// Card maps a stored partner onto its display shape.
func (p Partner) Card() PartnerCard {
	card := PartnerCard{
		ID:         p.ID,
		Name:       p.Name,
		NameNp:     deref(p.NameNp),
		Category:   PartnerCategory(p.Category),
		LogoURL:    deref(p.LogoURL),
		WebsiteURL: deref(p.WebsiteURL),
	}
	if p.CreatedAt != nil {
		card.CreatedAt = *p.CreatedAt
	}
	return card
}

// GroupPartners buckets partners by category in display order, skipping
// empty categories.
func GroupPartners(partners []PartnerCard) []PartnerGroup {
	byCat := make(map[PartnerCategory][]PartnerCard)
	for _, p := range partners {
		byCat[p.Category] = append(byCat[p.Category], p)
	}
	groups := make([]PartnerGroup, 0, len(PartnerCategories))
	for _, c := range PartnerCategories {
		if len(byCat[c]) == 0 {
			continue
		}
		groups = append(groups, PartnerGroup{Category: c, Partners: byCat[c]})
	}
	return groups
}

// PartnerGroup is one category row in the partners section.
type PartnerGroup struct {
	Category PartnerCategory
	Partners []PartnerCard
}

// SpeakerCategoriesPresent returns "All" followed by the distinct categories
// found in speakers, in first-seen order.
func SpeakerCategoriesPresent(speakers []SpeakerCard) []string {
	out := []string{AllCategories}
	seen := make(map[SpeakerCategory]bool)
	for _, s := range speakers {
		if s.Category == "" || seen[s.Category] {
			continue
		}
		seen[s.Category] = true
		out = append(out, string(s.Category))
	}
	return out
}

// AllCategories is the pseudo-category that disables category filtering.
const AllCategories = "All"

// FilterSpeakersByCategory keeps speakers in category; "All" or empty keeps everything.
func FilterSpeakersByCategory(speakers []SpeakerCard, category string) []SpeakerCard {
	category = strings.TrimSpace(category)
	if category == "" || category == AllCategories {
		return speakers
	}
	out := make([]SpeakerCard, 0, len(speakers))
	for _, s := range speakers {
		if string(s.Category) == category {
			out = append(out, s)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StringPtr returns nil for blank strings, otherwise a pointer to the trimmed value.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
