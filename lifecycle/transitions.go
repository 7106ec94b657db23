package lifecycle

import "github.com/linesmerrill/resolveit-api/models"

// allowedNext is the case workflow. Terminal states have no entry.
var allowedNext = map[models.CaseStatus][]models.CaseStatus{
	models.StatusRegistered: {
		models.StatusUnderReview, models.StatusAwaitingResponse, models.StatusCancelled,
	},
	models.StatusUnderReview: {
		models.StatusAwaitingResponse, models.StatusAccepted, models.StatusCancelled,
	},
	models.StatusAwaitingResponse: {
		models.StatusAccepted, models.StatusWitnessNomination, models.StatusCancelled,
	},
	models.StatusAccepted: {
		models.StatusWitnessNomination, models.StatusPanelFormation, models.StatusCancelled,
	},
	models.StatusWitnessNomination: {
		models.StatusPanelFormation, models.StatusCancelled,
	},
	models.StatusPanelFormation: {
		models.StatusMediationInProgress, models.StatusCancelled,
	},
	models.StatusMediationInProgress: {
		models.StatusResolved, models.StatusUnresolved, models.StatusCancelled,
	},
}

// AllowedNext returns the states an administrator may move a case to from s
func AllowedNext(s models.CaseStatus) []models.CaseStatus {
	next := allowedNext[s]
	out := make([]models.CaseStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is an edge of the workflow
func CanTransition(from, to models.CaseStatus) bool {
	for _, s := range allowedNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func IsTerminal(s models.CaseStatus) bool {
	return s.Valid() && len(allowedNext[s]) == 0
}
