package incident

import (
	"math"

	"github.com/sosdesk/intake/app/models"
)

const (
	TextWeight  = 0.6
	ImageWeight = 0.4
)

// FusePriority combines the text and image priorities. With both present
// the weighted sum is rounded half-up; with one present it is returned
// as is; with none the result is nil.
func FusePriority(text, image *int) *int {
	switch {
	case text != nil && image != nil:
		weighted := float64(*text)*TextWeight + float64(*image)*ImageWeight
		v := int(math.Floor(weighted + 0.5))
		return &v
	case text != nil:
		v := *text
		return &v
	case image != nil:
		v := *image
		return &v
	default:
		return nil
	}
}

// applyFusion recomputes inc.FinalPriority from the stored inputs and
// reports whether it changed.
func applyFusion(inc *models.Incident) bool {
	next := FusePriority(inc.TextPriority, inc.ImagePriority)
	changed := !samePriority(inc.FinalPriority, next)
	inc.FinalPriority = next
	return changed
}

func samePriority(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
