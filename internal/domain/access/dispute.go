package access

import (
	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

// disputeActor: категория участника для таблицы прав на статусы спора.
type disputeActor string

const (
	actorAssignedMediator     disputeActor = "assigned_mediator"
	actorPartyBeforeMediation disputeActor = "party_before_mediation"
)

var (
	allStatuses = statusSet(valueobject.DisputeStatuses...)
	escalation  = statusSet(valueobject.DisputeStatusOpened, valueobject.DisputeStatusUnderReview)
)

// disputeStatusPermissions: (категория участника) -> (допустимые исходные статусы, допустимые целевые статусы).
var disputeStatusPermissions = map[disputeActor]struct {
	from map[valueobject.DisputeStatus]bool
	to   map[valueobject.DisputeStatus]bool
}{
	actorAssignedMediator:     {from: allStatuses, to: allStatuses},
	actorPartyBeforeMediation: {from: escalation, to: escalation},
}

func statusSet(statuses ...valueobject.DisputeStatus) map[valueobject.DisputeStatus]bool {
	set := make(map[valueobject.DisputeStatus]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return set
}

func classify(actor entity.Actor, d *entity.Dispute, t *entity.Transaction) (disputeActor, bool) {
	if IsAssignedMediator(actor, d, t) {
		return actorAssignedMediator, true
	}
	if TransactionRole(actor, t).IsParty() && !d.HasMediator() {
		return actorPartyBeforeMediation, true
	}
	return "", false
}

// AuthorizeDisputeStatus проверяет право установить целевой статус спора.
func AuthorizeDisputeStatus(actor entity.Actor, d *entity.Dispute, t *entity.Transaction, target valueobject.DisputeStatus) error {
	kind, ok := classify(actor, d, t)
	if !ok {
		return apperror.Unauthorized(string(valueobject.RoleMediator), "статус спора меняет назначенный медиатор")
	}
	perm := disputeStatusPermissions[kind]
	if !perm.from[d.Status] || !perm.to[target] {
		return apperror.Unauthorized(string(valueobject.RoleMediator),
			"до назначения медиатора стороны могут переключать только OPENED и UNDER_REVIEW")
	}
	return nil
}

// AuthorizeOpenDispute: открыть спор может только сторона сделки.
func AuthorizeOpenDispute(actor entity.Actor, t *entity.Transaction) error {
	if !TransactionRole(actor, t).IsParty() {
		return apperror.Unauthorized("TRANSACTION_PARTY", "открыть спор может только сторона сделки")
	}
	return nil
}

// AuthorizeAssignMediator: назначать может только медиатор, не являющийся стороной сделки,
// и только медиатора.
func AuthorizeAssignMediator(actor entity.Actor, t *entity.Transaction, candidate entity.Actor) error {
	if !actor.IsMediator || TransactionRole(actor, t).IsParty() {
		return apperror.Unauthorized(string(valueobject.RoleMediator), "назначать медиатора может только медиатор")
	}
	if !candidate.IsMediator {
		return apperror.Validation("назначаемый пользователь не является медиатором")
	}
	if TransactionRole(candidate, t).IsParty() {
		return apperror.Validation("сторона сделки не может быть медиатором своего спора")
	}
	return nil
}

// AuthorizeResolve: решение выносит только назначенный медиатор.
func AuthorizeResolve(actor entity.Actor, d *entity.Dispute, t *entity.Transaction) error {
	if !IsAssignedMediator(actor, d, t) {
		return apperror.Unauthorized(string(valueobject.RoleMediator), "решение выносит назначенный медиатор")
	}
	return nil
}

// AuthorizeEvidence: доказательства загружают только стороны сделки.
func AuthorizeEvidence(actor entity.Actor, t *entity.Transaction) error {
	if !TransactionRole(actor, t).IsParty() {
		return apperror.Unauthorized("TRANSACTION_PARTY", "доказательства загружают только стороны сделки")
	}
	return nil
}

// AuthorizeMessage: писать могут стороны сделки и назначенный медиатор.
func AuthorizeMessage(actor entity.Actor, d *entity.Dispute, t *entity.Transaction) error {
	if TransactionRole(actor, t).IsParty() || IsAssignedMediator(actor, d, t) {
		return nil
	}
	return apperror.Unauthorized("TRANSACTION_PARTY_OR_MEDIATOR", "писать в переписку могут стороны и назначенный медиатор")
}

// CanView: карточку спора видят стороны сделки и медиаторы.
func CanView(actor entity.Actor, d *entity.Dispute, t *entity.Transaction) bool {
	return DisputeRole(actor, d, t) != valueobject.RoleUnrelated
}
