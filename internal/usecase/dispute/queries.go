package dispute

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/domain/access"
	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

// View описывает карточку спора с доказательствами, перепиской, сделкой и подписями участника.
type View struct {
	Dispute      *entity.Dispute
	Transaction  *entity.Transaction
	Role         valueobject.Role
	DisplayRoles []string
}

type GetDisputeUseCase struct {
	engine
}

func NewGetDisputeUseCase(deps Dependencies) *GetDisputeUseCase {
	return &GetDisputeUseCase{engine: newEngine(deps)}
}

func (uc *GetDisputeUseCase) Execute(ctx context.Context, disputeID, actorID uuid.UUID) (*View, error) {
	d, err := uc.deps.Disputes.FindByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	s, err := uc.load(ctx, d, actorID)
	if err != nil {
		return nil, err
	}
	if !access.CanView(s.actor, d, s.tx) {
		return nil, apperror.Unauthorized("TRANSACTION_PARTY_OR_MEDIATOR", "нет доступа к спору")
	}

	if d.Evidence, err = uc.deps.Evidence.ListByDispute(ctx, d.ID); err != nil {
		return nil, err
	}
	// Переписка видна сторонам и назначенному медиатору.
	if access.AuthorizeMessage(s.actor, d, s.tx) == nil {
		if d.Messages, err = uc.deps.Messages.ListByDispute(ctx, d.ID); err != nil {
			return nil, err
		}
	}

	return &View{
		Dispute:      d,
		Transaction:  s.tx,
		Role:         access.DisputeRole(s.actor, d, s.tx),
		DisplayRoles: access.DisplayRoles(s.actor, d, s.tx),
	}, nil
}

type ListDisputesUseCase struct {
	engine
}

func NewListDisputesUseCase(deps Dependencies) *ListDisputesUseCase {
	return &ListDisputesUseCase{engine: newEngine(deps)}
}

// Execute возвращает споры участника с фильтром по роли.
func (uc *ListDisputesUseCase) Execute(ctx context.Context, actorID uuid.UUID, filter repository.DisputeFilter) ([]*entity.Dispute, error) {
	if filter.Role == valueobject.RoleUnrelated {
		return nil, apperror.Validation("некорректный фильтр роли")
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperror.Validation("некорректный статус спора")
	}
	return uc.deps.Disputes.ListForActor(ctx, actorID, filter)
}

type ListUnassignedUseCase struct {
	engine
}

func NewListUnassignedUseCase(deps Dependencies) *ListUnassignedUseCase {
	return &ListUnassignedUseCase{engine: newEngine(deps)}
}

// Execute: очередь споров без медиатора, доступна только медиаторам.
func (uc *ListUnassignedUseCase) Execute(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*entity.Dispute, error) {
	actor, err := uc.deps.Identity.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsMediator {
		return nil, apperror.Unauthorized(string(valueobject.RoleMediator), "очередь споров доступна медиаторам")
	}
	return uc.deps.Disputes.ListUnassigned(ctx, limit, offset)
}
