// Package access вычисляет роль участника относительно сделки или спора и
// проверяет права на действия. Функции пакета чистые: они не обращаются к хранилищу.
package access

import (
	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
)

// TransactionRole возвращает роль участника в сделке. Медиатор, не являющийся
// стороной, получает MEDIATOR: это глобальная возможность, а не роль в сделке.
func TransactionRole(actor entity.Actor, t *entity.Transaction) valueobject.Role {
	switch {
	case t.IsPayer(actor.ID):
		return valueobject.RoleClientOrBuyer
	case t.IsPerformer(actor.ID):
		return valueobject.RoleFreelancerOrSeller
	case actor.IsMediator:
		return valueobject.RoleMediator
	default:
		return valueobject.RoleUnrelated
	}
}

// DisputeRole возвращает роль участника в споре. Роль стороны сделки имеет приоритет:
// медиатор не может выступать посредником в собственной сделке.
func DisputeRole(actor entity.Actor, d *entity.Dispute, t *entity.Transaction) valueobject.Role {
	role := TransactionRole(actor, t)
	if role.IsParty() {
		return role
	}
	if d.IsMediator(actor.ID) || actor.IsMediator {
		return valueobject.RoleMediator
	}
	return valueobject.RoleUnrelated
}

// IsAssignedMediator: участник является назначенным медиатором спора и не является стороной сделки.
func IsAssignedMediator(actor entity.Actor, d *entity.Dispute, t *entity.Transaction) bool {
	return d.IsMediator(actor.ID) && !TransactionRole(actor, t).IsParty()
}

const (
	DisplayBuyer     = "Buyer"
	DisplaySeller    = "Seller"
	DisplayInitiator = "Initiator"
	DisplayMediator  = "Mediator"
)

// DisplayRoles возвращает подписи участника для карточки спора.
func DisplayRoles(actor entity.Actor, d *entity.Dispute, t *entity.Transaction) []string {
	var roles []string
	switch {
	case t.IsPayer(actor.ID):
		roles = append(roles, DisplayBuyer)
	case t.IsPerformer(actor.ID):
		roles = append(roles, DisplaySeller)
	}
	if d.InitiatorID == actor.ID {
		roles = append(roles, DisplayInitiator)
	}
	if d.IsMediator(actor.ID) {
		roles = append(roles, DisplayMediator)
	}
	return roles
}
