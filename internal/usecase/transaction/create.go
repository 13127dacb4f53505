package transaction

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

type CreateJobInput struct {
	ClientID uuid.UUID
	Title    string
	Budget   float64
}

type CreateJobUseCase struct {
	engine
}

func NewCreateJobUseCase(deps Dependencies, settings Settings) *CreateJobUseCase {
	return &CreateJobUseCase{engine: newEngine(deps, settings)}
}

func (uc *CreateJobUseCase) Execute(ctx context.Context, input CreateJobInput) (*entity.Transaction, error) {
	job, err := entity.NewJob(input.ClientID, input.Title, input.Budget)
	if err != nil {
		return nil, err
	}
	if err := uc.create(ctx, job, input.ClientID); err != nil {
		return nil, err
	}
	return job, nil
}

type PlaceGigOrderInput struct {
	BuyerID  uuid.UUID
	SellerID uuid.UUID
	GigID    uuid.UUID
	Title    string
	Price    float64
}

type PlaceGigOrderUseCase struct {
	engine
}

func NewPlaceGigOrderUseCase(deps Dependencies, settings Settings) *PlaceGigOrderUseCase {
	return &PlaceGigOrderUseCase{engine: newEngine(deps, settings)}
}

// Execute создаёт заказ услуги. Продавец закреплён сразу, работа начнётся после подтверждения оплаты.
func (uc *PlaceGigOrderUseCase) Execute(ctx context.Context, input PlaceGigOrderInput) (*entity.Transaction, error) {
	if input.SellerID == uuid.Nil || input.GigID == uuid.Nil {
		return nil, apperror.Validation("не указаны продавец или услуга")
	}
	order, err := entity.NewGigOrder(input.BuyerID, input.SellerID, input.GigID, input.Title, input.Price)
	if err != nil {
		return nil, err
	}
	if err := uc.create(ctx, order, input.BuyerID); err != nil {
		return nil, err
	}
	return order, nil
}

func (e engine) create(ctx context.Context, t *entity.Transaction, actorID uuid.UUID) error {
	err := e.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := e.deps.Transactions.Create(ctx, t); err != nil {
			return err
		}
		return e.recordStatus(ctx, t, "", actorID)
	})
	if err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{
		"transaction_id": t.ID,
		"kind":           t.Kind,
		"client_id":      t.ClientID,
	}).Info("сделка создана")
	return nil
}

type ConfirmPaymentUseCase struct {
	engine
}

func NewConfirmPaymentUseCase(deps Dependencies, settings Settings) *ConfirmPaymentUseCase {
	return &ConfirmPaymentUseCase{engine: newEngine(deps, settings)}
}

// Execute выполняет системное действие платёжного сервиса: оплаченный заказ услуги переходит в работу.
func (uc *ConfirmPaymentUseCase) Execute(ctx context.Context, transactionID uuid.UUID) (*entity.Transaction, error) {
	var result *entity.Transaction
	err := uc.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := uc.deps.Transactions.FindByIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if t.Kind != valueobject.KindGigOrder {
			return apperror.InvalidTransition(string(t.Status), string(valueobject.TransactionStatusInProgress),
				"оплата подтверждается только для заказа услуги")
		}
		if err := uc.ensureNotFrozen(ctx, t, valueobject.TransactionStatusInProgress); err != nil {
			return err
		}

		from := t.Status
		if err := t.Start(); err != nil {
			return err
		}
		if err := uc.deps.Transactions.Update(ctx, t); err != nil {
			return err
		}
		if err := uc.recordStatus(ctx, t, from, uuid.Nil); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.WithField("transaction_id", result.ID).Info("оплата подтверждена, заказ в работе")
	return result, nil
}
