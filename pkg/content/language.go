package content

import "strings"

// Language is the visitor's display language for labels and names.
type Language string

const (
	LangEnglish Language = "en"
	LangNepali  Language = "np"
)

// ParseLanguage accepts "en" and "np" in any case, and the ISO code "ne"
// for Nepali.
func ParseLanguage(raw string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "en":
		return LangEnglish, true
	case "np", "ne":
		return LangNepali, true
	}
	return "", false
}

// Nepali reports whether l is Nepali.
func (l Language) Nepali() bool { return l == LangNepali }

// Other is the language the toggle switches to.
func (l Language) Other() Language {
	if l.Nepali() {
		return LangEnglish
	}
	return LangNepali
}

// Tag is the value for the HTML lang attribute.
func (l Language) Tag() string {
	if l.Nepali() {
		return "ne"
	}
	return "en"
}

// ToggleLabel names the language the toggle switches to.
func (l Language) ToggleLabel() string {
	return strings.ToUpper(string(l.Other()))
}

// Pick returns np for Nepali visitors when it is set, en otherwise.
func (l Language) Pick(en, np string) string {
	if l.Nepali() && strings.TrimSpace(np) != "" {
		return np
	}
	return en
}

// NavItem is one entry of the public navigation bar.
type NavItem struct {
	Label   string
	LabelNp string
	Href    string
}

// NavItems is the public navigation in display order.
var NavItems = []NavItem{
	{Label: "Home", LabelNp: "मुख्य", Href: "/"},
	{Label: "About", LabelNp: "बारेमा", Href: "/#about"},
	{Label: "Program", LabelNp: "कार्यक्रम", Href: "/#schedule"},
	{Label: "Speakers", LabelNp: "वक्ता", Href: "/speakers"},
	{Label: "Partners", LabelNp: "साझेदार", Href: "/#partners"},
	{Label: "Contact", LabelNp: "सम्पर्क", Href: "/#contact"},
}

// Notice is a dismissible announcement.
type Notice struct {
	Title  string
	Body   string
	Follow string
	Action string
}

// Disclaimer is shown to visitors until they dismiss it.
var Disclaimer = Notice{
	Title:  "Website Under Development",
	Body:   "The website is under development and may lack accuracy in data. Kindly contact us for further information.",
	Follow: "Follow us on social media for latest and updated information.",
	Action: "I Understand",
}
