package service

import "github.com/iliyamo/civic-budget/internal/model"

// Action is a lifecycle command applied to a project.
type Action string

const (
	ActionSubmit      Action = "submit"
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionStartVoting Action = "start_voting"
	ActionClose       Action = "close"
)

// ModerationActions are the actions a moderator may apply.
var ModerationActions = []Action{ActionApprove, ActionReject, ActionStartVoting, ActionClose}

// transitions is the complete table of legal moves. A (status, action)
// pair absent from it is illegal.
var transitions = map[Action]struct {
	from []model.ProjectStatus
	to   model.ProjectStatus
}{
	ActionSubmit:      {from: []model.ProjectStatus{model.StatusDraft}, to: model.StatusPendingModeration},
	ActionApprove:     {from: []model.ProjectStatus{model.StatusPendingModeration}, to: model.StatusApproved},
	ActionReject:      {from: []model.ProjectStatus{model.StatusPendingModeration}, to: model.StatusModerationRejected},
	ActionStartVoting: {from: []model.ProjectStatus{model.StatusPendingModeration, model.StatusApproved}, to: model.StatusVoting},
	ActionClose: {
		from: []model.ProjectStatus{
			model.StatusDraft, model.StatusPendingModeration, model.StatusApproved,
			model.StatusVoting, model.StatusFundraising, model.StatusInProgress,
		},
		to: model.StatusCancelled,
	},
}

// Transition returns the status reached by applying action to from, or an
// IllegalTransition error.
func Transition(from model.ProjectStatus, action Action) (model.ProjectStatus, error) {
	t, ok := transitions[action]
	if ok {
		for _, s := range t.from {
			if s == from {
				return t.to, nil
			}
		}
	}
	return from, errf(KindIllegalTransition, "cannot %s a project in status %s", action, from)
}

// requiresNotes reports whether the action must carry moderator notes.
func requiresNotes(a Action) bool { return a == ActionReject || a == ActionClose }

func parseModerationAction(s string) (Action, bool) {
	for _, a := range ModerationActions {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// ownerDeletable are the statuses in which an author may delete their own
// project.
var ownerDeletable = map[model.ProjectStatus]bool{
	model.StatusDraft:              true,
	model.StatusPendingModeration:  true,
	model.StatusModerationRejected: true,
	model.StatusCompleted:          true,
}
