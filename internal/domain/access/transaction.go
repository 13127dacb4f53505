package access

import (
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

// Action: мутирующее действие над сделкой.
type Action string

const (
	ActionStartWork         Action = "start_work"
	ActionRequestCompletion Action = "request_completion"
	ActionApproveCompletion Action = "approve_completion"
	ActionRejectCompletion  Action = "reject_completion"
	ActionCancel            Action = "cancel"
	ActionSetProgress       Action = "set_progress"
	ActionAddMilestone      Action = "add_milestone"
	ActionMilestoneProgress Action = "milestone_progress"
	ActionReviewApplication Action = "review_application"
)

var transactionActionRoles = map[Action]valueobject.Role{
	ActionStartWork:         valueobject.RoleFreelancerOrSeller,
	ActionRequestCompletion: valueobject.RoleFreelancerOrSeller,
	ActionApproveCompletion: valueobject.RoleClientOrBuyer,
	ActionRejectCompletion:  valueobject.RoleClientOrBuyer,
	ActionCancel:            valueobject.RoleClientOrBuyer,
	ActionSetProgress:       valueobject.RoleFreelancerOrSeller,
	ActionAddMilestone:      valueobject.RoleFreelancerOrSeller,
	ActionMilestoneProgress: valueobject.RoleFreelancerOrSeller,
	ActionReviewApplication: valueobject.RoleClientOrBuyer,
}

// RequiredRole возвращает роль, которой разрешено действие.
func RequiredRole(action Action) valueobject.Role {
	return transactionActionRoles[action]
}

// AuthorizeTransaction проверяет, что роль участника допускает действие.
func AuthorizeTransaction(role valueobject.Role, action Action) error {
	required, ok := transactionActionRoles[action]
	if !ok || role != required {
		return apperror.Unauthorized(string(required), "недостаточно прав для действия "+string(action))
	}
	return nil
}

type milestoneEdge struct {
	from valueobject.MilestoneStatus
	to   valueobject.MilestoneStatus
}

// AuthorizeMilestoneMove проверяет право перевести этап с учётом политики подтверждения.
func AuthorizeMilestoneMove(role valueobject.Role, from, to valueobject.MilestoneStatus, approval valueobject.MilestoneApproval) error {
	performer := role == valueobject.RoleFreelancerOrSeller
	payer := role == valueobject.RoleClientOrBuyer
	selfApproval := approval == valueobject.MilestoneApprovalSelf

	var allowed bool
	required := valueobject.RoleFreelancerOrSeller

	switch (milestoneEdge{from, to}) {
	case milestoneEdge{valueobject.MilestoneStatusPending, valueobject.MilestoneStatusInProgress},
		milestoneEdge{valueobject.MilestoneStatusInProgress, valueobject.MilestoneStatusPendingCompletion}:
		allowed = performer
	case milestoneEdge{valueobject.MilestoneStatusInProgress, valueobject.MilestoneStatusCompleted}:
		allowed = performer && selfApproval
		if !selfApproval {
			return apperror.InvalidTransition(string(from), string(to), "этап требует подтверждения заказчиком")
		}
	case milestoneEdge{valueobject.MilestoneStatusPendingCompletion, valueobject.MilestoneStatusCompleted},
		milestoneEdge{valueobject.MilestoneStatusPendingCompletion, valueobject.MilestoneStatusInProgress}:
		allowed = payer || (performer && selfApproval)
		if !selfApproval {
			required = valueobject.RoleClientOrBuyer
		}
	default:
		return apperror.InvalidTransition(string(from), string(to), "недопустимый переход статуса этапа")
	}

	if !allowed {
		return apperror.Unauthorized(string(required), "недостаточно прав для изменения этапа")
	}
	return nil
}
