package claim

import "github.com/lijunhao/projfin/internal/models"

// Action is a decision applied to a submitted claim.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionVoid    Action = "void"
)

// IsValid reports whether the action is part of the decision vocabulary.
func (a Action) IsValid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionVoid:
		return true
	}
	return false
}

// editableStates are the only states in which a claim's item set may change.
var editableStates = map[models.ClaimStatus]bool{
	models.ClaimDraft:    true,
	models.ClaimRejected: true,
}

// decisionTransitions maps each action to the states it may fire from and
// the state it lands in. Void is terminal.
var decisionTransitions = map[Action]struct {
	from map[models.ClaimStatus]bool
	to   models.ClaimStatus
}{
	ActionApprove: {
		from: map[models.ClaimStatus]bool{models.ClaimSubmitted: true},
		to:   models.ClaimApproved,
	},
	ActionReject: {
		from: map[models.ClaimStatus]bool{models.ClaimSubmitted: true},
		to:   models.ClaimRejected,
	},
	ActionVoid: {
		from: map[models.ClaimStatus]bool{
			models.ClaimSubmitted: true,
			models.ClaimApproved:  true,
			models.ClaimRejected:  true,
		},
		to: models.ClaimVoid,
	},
}

// CanEdit reports whether a claim in the given state may be edited.
func CanEdit(status models.ClaimStatus) bool {
	return editableStates[status]
}

// CanSubmit reports whether a claim in the given state may be submitted.
// Submit and edit share the same source states.
func CanSubmit(status models.ClaimStatus) bool {
	return editableStates[status]
}

// CanFire reports whether a decision action is legal in the given state.
func CanFire(status models.ClaimStatus, action Action) bool {
	t, ok := decisionTransitions[action]
	return ok && t.from[status]
}

// Target returns the state an action transitions into.
func Target(action Action) models.ClaimStatus {
	return decisionTransitions[action].to
}
