package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
)

// TransactionRepository хранит сделки. FindBy* возвращают apperror NOT_FOUND при отсутствии записи.
type TransactionRepository interface {
	Create(ctx context.Context, t *entity.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Transaction, error)
	// FindByIDForUpdate блокирует строку до конца транзакции.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Transaction, error)
	// Update сохраняет сделку, если её версия не изменилась с момента чтения,
	// иначе возвращает CONFLICT_RACE. При успехе увеличивает t.Version.
	Update(ctx context.Context, t *entity.Transaction) error
	ListForActor(ctx context.Context, actorID uuid.UUID, filter TransactionFilter) ([]*entity.Transaction, error)
}

// TransactionFilter: пустая роль означает обе стороны.
type TransactionFilter struct {
	Role   valueobject.Role
	Kind   valueobject.TransactionKind
	Status valueobject.TransactionStatus
	Limit  int
	Offset int
}

type MilestoneRepository interface {
	Create(ctx context.Context, m *entity.Milestone) error
	Update(ctx context.Context, m *entity.Milestone) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Milestone, error)
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]entity.Milestone, error)
}

type ApplicationRepository interface {
	Create(ctx context.Context, a *entity.Application) error
	Update(ctx context.Context, a *entity.Application) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Application, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.Application, error)
	ExistsForFreelancer(ctx context.Context, jobID, freelancerID uuid.UUID) (bool, error)
}
