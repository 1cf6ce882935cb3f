package services

import "civicsync/models"

// TransitionPolicy selects whether SetStatus enforces the triage workflow.
type TransitionPolicy int

const (
	// AdvisoryTransitions accepts any valid status; the workflow is only
	// surfaced to clients through AllowedTransitions.
	AdvisoryTransitions TransitionPolicy = iota
	// StrictTransitions rejects moves outside the workflow graph.
	StrictTransitions
)

var workflow = map[models.IssueStatus][]models.IssueStatus{
	models.Pending:    {models.InProgress},
	models.InProgress: {models.Resolved},
	models.Resolved:   {models.InProgress},
}

// AllowedTransitions lists the statuses reachable from the given one:
// start, resolve and reopen.
func AllowedTransitions(from models.IssueStatus) []models.IssueStatus {
	next := workflow[from]
	out := make([]models.IssueStatus, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to models.IssueStatus) bool {
	for _, s := range workflow[from] {
		if s == to {
			return true
		}
	}
	return false
}
