package search

import (
	"strings"

	"github.com/madhesh-litfest/mlf/pkg/content"
)

func containsFold(haystack, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(haystack), lowerNeedle)
}

// MatchSpeaker matches the admin search over every text field of a speaker.
// The secondary-script name is matched on the raw query since case folding
// does not apply to Devanagari.
func MatchSpeaker(s content.SpeakerCard, query string) bool {
	if strings.TrimSpace(query) == "" {
		return true
	}
	q := strings.ToLower(query)
	return containsFold(s.Name, q) ||
		(s.NameNp != "" && strings.Contains(s.NameNp, query)) ||
		containsFold(s.Domain, q) ||
		containsFold(s.Country, q) ||
		containsFold(string(s.Category), q) ||
		containsFold(s.Bio, q)
}

// MatchSpeakerPublic matches the public speakers page search: name,
// secondary-script name and domain.
func MatchSpeakerPublic(s content.SpeakerCard, query string) bool {
	if strings.TrimSpace(query) == "" {
		return true
	}
	q := strings.ToLower(query)
	return containsFold(s.Name, q) ||
		(s.NameNp != "" && strings.Contains(s.NameNp, query)) ||
		containsFold(s.Domain, q)
}

// MatchPartner matches the admin partner search.
func MatchPartner(p content.PartnerCard, query string) bool {
	if strings.TrimSpace(query) == "" {
		return true
	}
	q := strings.ToLower(query)
	return containsFold(p.Name, q) ||
		(p.NameNp != "" && strings.Contains(p.NameNp, query)) ||
		containsFold(string(p.Category), q) ||
		(p.WebsiteURL != "" && containsFold(p.WebsiteURL, q))
}

// Filter returns the records accepted by match. The input is not modified.
func Filter[T any](records []T, query string, match func(T, string) bool) []T {
	if strings.TrimSpace(query) == "" {
		return records
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		if match(r, query) {
			out = append(out, r)
		}
	}
	return out
}
