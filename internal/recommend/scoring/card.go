package scoring

import (
	"github.com/example/media-platform/internal/media"
	"github.com/example/media-platform/internal/recommend/preference"
)

// Card is the per-item summary shown on browse rows.
type Card struct {
	MatchPercentage int    `json:"match_percentage"`
	Reason          string `json:"reason"`
}

// PrimaryReason returns the first reason, or a generic fallback.
func PrimaryReason(s Score) string {
	if len(s.Reasons) > 0 {
		return s.Reasons[0]
	}
	return "Popular choice"
}

func CardOf(s Score) Card {
	return Card{MatchPercentage: s.Composite, Reason: PrimaryReason(s)}
}

// Card scores a single item for a browse row.
func (e *Engine) Card(item media.Item, prefs preference.Preferences) Card {
	return CardOf(e.Score(item, prefs))
}
