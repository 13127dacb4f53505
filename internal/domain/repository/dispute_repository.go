package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
)

type DisputeRepository interface {
	Create(ctx context.Context, d *entity.Dispute) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Dispute, error)
	// FindOpenByTransaction возвращает nil, nil если открытого спора нет.
	FindOpenByTransaction(ctx context.Context, transactionID uuid.UUID) (*entity.Dispute, error)
	Update(ctx context.Context, d *entity.Dispute) error
	ListForActor(ctx context.Context, actorID uuid.UUID, filter DisputeFilter) ([]*entity.Dispute, error)
	ListUnassigned(ctx context.Context, limit, offset int) ([]*entity.Dispute, error)
}

// DisputeFilter.Role: CLIENT_OR_BUYER и FREELANCER_OR_SELLER выбирают споры по сделкам,
// где участник занимает эту сторону, MEDIATOR — споры, где он назначен. Пустая роль — все.
type DisputeFilter struct {
	Role   valueobject.Role
	Status valueobject.DisputeStatus
	Limit  int
	Offset int
}

type EvidenceRepository interface {
	Append(ctx context.Context, e *entity.Evidence) error
	ListByDispute(ctx context.Context, disputeID uuid.UUID) ([]entity.Evidence, error)
}

type MessageRepository interface {
	// Append назначает сообщению монотонно возрастающий Seq в пределах спора.
	Append(ctx context.Context, m *entity.MediationMessage) error
	ListByDispute(ctx context.Context, disputeID uuid.UUID) ([]entity.MediationMessage, error)
}
