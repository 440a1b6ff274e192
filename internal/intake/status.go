package intake

import (
	"slices"

	"github.com/kiranshivaraju/errdesk/pkg/models"
)

// transitions lists the status changes the dashboard workflow performs.
// No status is terminal.
var transitions = map[models.ErrorStatus][]models.ErrorStatus{
	models.StatusOpen:       {models.StatusInProgress, models.StatusResolved, models.StatusIgnored},
	models.StatusInProgress: {models.StatusResolved, models.StatusIgnored, models.StatusOpen},
	models.StatusResolved:   {models.StatusOpen},
	models.StatusIgnored:    {models.StatusOpen},
}

// CanTransition reports whether from -> to is in the transition table.
// Staying in the same status is always allowed.
func CanTransition(from, to models.ErrorStatus) bool {
	if from == to {
		return from.Valid()
	}
	return slices.Contains(transitions[from], to)
}
