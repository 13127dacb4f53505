package transaction

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/domain/access"
	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/event"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

// ActionInput: участник и сделка, над которой он выполняет действие.
type ActionInput struct {
	TransactionID uuid.UUID
	ActorID       uuid.UUID
}

type StartWorkUseCase struct {
	engine
}

func NewStartWorkUseCase(deps Dependencies, settings Settings) *StartWorkUseCase {
	return &StartWorkUseCase{engine: newEngine(deps, settings)}
}

// Execute: исполнитель начинает работу по вакансии. Заказ услуги запускается только оплатой.
func (uc *StartWorkUseCase) Execute(ctx context.Context, input ActionInput) (*entity.Transaction, error) {
	return uc.transition(ctx, input.TransactionID, input.ActorID, access.ActionStartWork,
		valueobject.TransactionStatusInProgress, func(t *entity.Transaction) error {
			if t.Kind == valueobject.KindGigOrder {
				return apperror.Unauthorized("SYSTEM", "заказ услуги переходит в работу после подтверждения оплаты")
			}
			return t.Start()
		})
}

type RequestCompletionUseCase struct {
	engine
}

func NewRequestCompletionUseCase(deps Dependencies, settings Settings) *RequestCompletionUseCase {
	return &RequestCompletionUseCase{engine: newEngine(deps, settings)}
}

func (uc *RequestCompletionUseCase) Execute(ctx context.Context, input ActionInput) (*entity.Transaction, error) {
	return uc.transition(ctx, input.TransactionID, input.ActorID, access.ActionRequestCompletion,
		valueobject.TransactionStatusPendingCompletion, (*entity.Transaction).RequestCompletion)
}

type ApproveCompletionUseCase struct {
	engine
}

func NewApproveCompletionUseCase(deps Dependencies, settings Settings) *ApproveCompletionUseCase {
	return &ApproveCompletionUseCase{engine: newEngine(deps, settings)}
}

func (uc *ApproveCompletionUseCase) Execute(ctx context.Context, input ActionInput) (*entity.Transaction, error) {
	return uc.transition(ctx, input.TransactionID, input.ActorID, access.ActionApproveCompletion,
		valueobject.TransactionStatusCompleted, (*entity.Transaction).ApproveCompletion)
}

type RejectCompletionUseCase struct {
	engine
}

func NewRejectCompletionUseCase(deps Dependencies, settings Settings) *RejectCompletionUseCase {
	return &RejectCompletionUseCase{engine: newEngine(deps, settings)}
}

func (uc *RejectCompletionUseCase) Execute(ctx context.Context, input ActionInput) (*entity.Transaction, error) {
	return uc.transition(ctx, input.TransactionID, input.ActorID, access.ActionRejectCompletion,
		valueobject.TransactionStatusInProgress, (*entity.Transaction).RejectCompletion)
}

type CancelUseCase struct {
	engine
}

func NewCancelUseCase(deps Dependencies, settings Settings) *CancelUseCase {
	return &CancelUseCase{engine: newEngine(deps, settings)}
}

func (uc *CancelUseCase) Execute(ctx context.Context, input ActionInput) (*entity.Transaction, error) {
	return uc.transition(ctx, input.TransactionID, input.ActorID, access.ActionCancel,
		valueobject.TransactionStatusCancelled, (*entity.Transaction).Cancel)
}

type SetProgressInput struct {
	TransactionID uuid.UUID
	ActorID       uuid.UUID
	Progress      int
}

type SetProgressUseCase struct {
	engine
}

func NewSetProgressUseCase(deps Dependencies, settings Settings) *SetProgressUseCase {
	return &SetProgressUseCase{engine: newEngine(deps, settings)}
}

// Execute задаёт явный прогресс; он учитывается, пока у сделки нет этапов.
func (uc *SetProgressUseCase) Execute(ctx context.Context, input SetProgressInput) (*entity.Transaction, error) {
	var result *entity.Transaction
	err := uc.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, role, err := uc.lockWithRole(ctx, input.TransactionID, input.ActorID)
		if err != nil {
			return err
		}
		if err := access.AuthorizeTransaction(role, access.ActionSetProgress); err != nil {
			return err
		}
		if err := t.SetProgress(input.Progress); err != nil {
			return err
		}
		if err := uc.deps.Transactions.Update(ctx, t); err != nil {
			return err
		}
		result = t
		return uc.events.Record(ctx, event.TransactionProgressUpdated, event.AggregateTransaction, t.ID, t.Parties(),
			event.ProgressPayload{TransactionID: t.ID, Progress: uc.progress(t)})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
