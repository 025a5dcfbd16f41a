package incident

import (
	"errors"
	"fmt"

	"github.com/sosdesk/intake/app/models"
	"github.com/sosdesk/intake/internal/pkg/apperror"
)

// ErrInvalidTransition is wrapped by every refused status change.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitionMode tells checkTransition who is moving the incident.
type transitionMode int

const (
	// operatorMove is a status change requested through the API.
	operatorMove transitionMode = iota
	// forcedMove is an administrator rejection of an approved incident.
	forcedMove
	// analysisMove is a status change made by an analysis handler.
	analysisMove
)

// pipelineRank orders the non-terminal states along the analysis pipeline.
var pipelineRank = map[models.IncidentStatus]int{
	models.StatusReceived:        0,
	models.StatusInTextAnalysis:  1,
	models.StatusInImageAnalysis: 2,
	models.StatusAnalyzed:        3,
	models.StatusApproved:        4,
}

func invalidTransition(from, to models.IncidentStatus, why string) error {
	return &apperror.Error{
		Kind:    apperror.KindInvalidRequest,
		Op:      "transition",
		Message: fmt.Sprintf("cannot move incident from %s to %s: %s", from, to, why),
		Err:     ErrInvalidTransition,
	}
}

// CanTransition checks whether an operator may move inc to the target status.
//
//   - REJECTED and CANCELED are terminal.
//   - Nothing returns to RECEIVED.
//   - Operators only move an incident forward along the pipeline.
//   - APPROVED requires ANALYZED and an incident not known to be implausible.
//   - An APPROVED incident cannot be canceled, rejected or re-analyzed;
//     ForceReject is the only way out.
func CanTransition(inc *models.Incident, to models.IncidentStatus) error {
	return checkTransition(inc, to, operatorMove)
}

func checkTransition(inc *models.Incident, to models.IncidentStatus, mode transitionMode) error {
	from := inc.Status
	if !to.IsValid() {
		return invalidTransition(from, to, "unknown status")
	}
	if from.IsTerminal() {
		return invalidTransition(from, to, "incident is closed")
	}
	if to == models.StatusReceived && from != models.StatusReceived {
		return invalidTransition(from, to, "incidents never return to RECEIVED")
	}

	switch to {
	case models.StatusApproved:
		if from != models.StatusAnalyzed {
			return invalidTransition(from, to, "only ANALYZED incidents can be approved")
		}
		if inc.KnownImplausible() {
			return invalidTransition(from, to, "image veracity check marked the incident as not plausible")
		}
	case models.StatusCanceled:
		if from == models.StatusApproved {
			return invalidTransition(from, to, "approved incidents cannot be canceled")
		}
	case models.StatusRejected:
		if from == models.StatusApproved && mode != forcedMove {
			return invalidTransition(from, to, "approved incidents require a forced rejection")
		}
	case models.StatusInTextAnalysis, models.StatusInImageAnalysis, models.StatusAnalyzed:
		if from == models.StatusApproved {
			return invalidTransition(from, to, "approved incidents are not re-analyzed")
		}
		// Handlers re-enter analysis when a new result arrives; operators
		// only move forward.
		if mode != analysisMove && pipelineRank[to] < pipelineRank[from] {
			return invalidTransition(from, to, "status only moves forward")
		}
	}
	return nil
}
