package collection

import (
	"go.uber.org/zap"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	"github.com/madhesh-litfest/mlf/pkg/content"
)

// SpeakerCard maps a speakers row onto its display shape.
func SpeakerCard(row backend.Row) (content.SpeakerCard, error) {
	s, err := backend.Decode[content.Speaker](row)
	if err != nil {
		return content.SpeakerCard{}, err
	}
	return s.Card(), nil
}

// PartnerCard maps a partners row onto its display shape.
func PartnerCard(row backend.Row) (content.PartnerCard, error) {
	p, err := backend.Decode[content.Partner](row)
	if err != nil {
		return content.PartnerCard{}, err
	}
	return p.Card(), nil
}

// Speakers is the accessor for the speakers collection.
func Speakers(store backend.RecordStore, logger *zap.Logger) *Accessor[content.SpeakerCard] {
	return New(store, content.CollectionSpeakers, SpeakerCard, logger)
}

// Partners is the accessor for the partners collection.
func Partners(store backend.RecordStore, logger *zap.Logger) *Accessor[content.PartnerCard] {
	return New(store, content.CollectionPartners, PartnerCard, logger)
}
