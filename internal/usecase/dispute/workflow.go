package dispute

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/domain/access"
	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/event"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

type OpenInput struct {
	TransactionID uuid.UUID
	ActorID       uuid.UUID
	Reason        string
	Description   string
}

type OpenDisputeUseCase struct {
	engine
}

func NewOpenDisputeUseCase(deps Dependencies) *OpenDisputeUseCase {
	return &OpenDisputeUseCase{engine: newEngine(deps)}
}

// Execute открывает спор. Сделка блокируется, чтобы два параллельных открытия не прошли оба.
func (uc *OpenDisputeUseCase) Execute(ctx context.Context, input OpenInput) (*entity.Dispute, error) {
	var s *scope
	err := uc.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := uc.deps.Transactions.FindByIDForUpdate(ctx, input.TransactionID)
		if err != nil {
			return err
		}
		actor, err := uc.deps.Identity.Actor(ctx, input.ActorID)
		if err != nil {
			return err
		}
		if err := access.AuthorizeOpenDispute(actor, t); err != nil {
			return err
		}

		open, err := uc.deps.Disputes.FindOpenByTransaction(ctx, t.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return apperror.ErrAlreadyDisputed.WithDetail("dispute_id", open.ID.String())
		}

		d, err := entity.NewDispute(t.ID, actor.ID, input.Reason, input.Description)
		if err != nil {
			return err
		}
		if err := uc.deps.Disputes.Create(ctx, d); err != nil {
			return err
		}
		s = &scope{dispute: d, tx: t, actor: actor}
		return uc.recordDispute(ctx, event.DisputeOpened, s)
	})
	if err != nil {
		return nil, err
	}

	uc.logAction(s, "спор открыт")
	return s.dispute, nil
}

type AssignMediatorInput struct {
	DisputeID  uuid.UUID
	ActorID    uuid.UUID
	MediatorID uuid.UUID
}

type AssignMediatorUseCase struct {
	engine
}

func NewAssignMediatorUseCase(deps Dependencies) *AssignMediatorUseCase {
	return &AssignMediatorUseCase{engine: newEngine(deps)}
}

// Execute назначает медиатора. Повторное назначение разрешено; статус не меняется.
func (uc *AssignMediatorUseCase) Execute(ctx context.Context, input AssignMediatorInput) (*entity.Dispute, error) {
	var s *scope
	err := uc.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if s, err = uc.lock(ctx, input.DisputeID, input.ActorID); err != nil {
			return err
		}
		if err := s.dispute.EnsureMutable(); err != nil {
			return err
		}

		mediatorID := input.MediatorID
		if mediatorID == uuid.Nil {
			mediatorID = s.actor.ID
		}
		candidate, err := uc.deps.Identity.Actor(ctx, mediatorID)
		if err != nil {
			return err
		}
		if err := access.AuthorizeAssignMediator(s.actor, s.tx, candidate); err != nil {
			return err
		}

		var previous []uuid.UUID
		if s.dispute.MediatorID != nil {
			previous = append(previous, *s.dispute.MediatorID)
		}
		if err := s.dispute.AssignMediator(candidate.ID); err != nil {
			return err
		}
		return uc.save(ctx, event.DisputeMediatorAssigned, s, previous...)
	})
	if err != nil {
		return nil, err
	}

	uc.logAction(s, "медиатор назначен")
	return s.dispute, nil
}

type UpdateStatusInput struct {
	DisputeID uuid.UUID
	ActorID   uuid.UUID
	Status    valueobject.DisputeStatus
}

type UpdateStatusUseCase struct {
	engine
}

func NewUpdateStatusUseCase(deps Dependencies) *UpdateStatusUseCase {
	return &UpdateStatusUseCase{engine: newEngine(deps)}
}

// Execute устанавливает статус спора по таблице прав. CLOSED окончателен.
func (uc *UpdateStatusUseCase) Execute(ctx context.Context, input UpdateStatusInput) (*entity.Dispute, error) {
	if !input.Status.IsValid() {
		return nil, apperror.Validation("некорректный статус спора")
	}

	var s *scope
	err := uc.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if s, err = uc.lock(ctx, input.DisputeID, input.ActorID); err != nil {
			return err
		}
		if err := s.dispute.EnsureMutable(); err != nil {
			return err
		}
		if err := access.AuthorizeDisputeStatus(s.actor, s.dispute, s.tx, input.Status); err != nil {
			return err
		}
		if err := s.dispute.SetStatus(input.Status); err != nil {
			return err
		}
		return uc.save(ctx, event.DisputeStatusChanged, s)
	})
	if err != nil {
		return nil, err
	}

	uc.logAction(s, "статус спора изменён")
	return s.dispute, nil
}

type ResolveInput struct {
	DisputeID  uuid.UUID
	ActorID    uuid.UUID
	Resolution string
}

type ResolveUseCase struct {
	engine
}

func NewResolveUseCase(deps Dependencies) *ResolveUseCase {
	return &ResolveUseCase{engine: newEngine(deps)}
}

// Execute фиксирует решение медиатора. Решение носит рекомендательный характер:
// сделка не меняется, закрытие спора выполняется отдельно.
func (uc *ResolveUseCase) Execute(ctx context.Context, input ResolveInput) (*entity.Dispute, error) {
	var s *scope
	err := uc.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if s, err = uc.lock(ctx, input.DisputeID, input.ActorID); err != nil {
			return err
		}
		if err := s.dispute.EnsureMutable(); err != nil {
			return err
		}
		if err := access.AuthorizeResolve(s.actor, s.dispute, s.tx); err != nil {
			return err
		}
		if err := s.dispute.Resolve(input.Resolution); err != nil {
			return err
		}
		return uc.save(ctx, event.DisputeResolved, s)
	})
	if err != nil {
		return nil, err
	}

	uc.logAction(s, "решение по спору вынесено")
	return s.dispute, nil
}
