// Package transaction реализует жизненный цикл сделки: вакансии и заказы услуг,
// отклики, этапы и производный прогресс.
package transaction

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/marketplace-backend/internal/domain/access"
	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/event"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/logger"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/usecase/eventlog"
)

const DefaultProgressBaseline = 25

// Dependencies: порты хранилища, общие для всех сценариев сделки.
type Dependencies struct {
	Tx           repository.TxManager
	Transactions repository.TransactionRepository
	Milestones   repository.MilestoneRepository
	Applications repository.ApplicationRepository
	Disputes     repository.DisputeRepository
	Outbox       repository.OutboxRepository
	Identity     repository.IdentityProvider
}

// Settings: настраиваемые правила жизненного цикла.
type Settings struct {
	Policies          valueobject.Policies
	FreezeOnDispute   bool
	ProgressBaseline  int
	AutoStartOnAccept bool
}

func DefaultSettings() Settings {
	return Settings{
		Policies:          valueobject.DefaultPolicies(),
		ProgressBaseline:  DefaultProgressBaseline,
		AutoStartOnAccept: true,
	}
}

type engine struct {
	deps     Dependencies
	settings Settings
	events   *eventlog.Recorder
	log      *logrus.Entry
}

func newEngine(deps Dependencies, settings Settings) engine {
	if settings.Policies == nil {
		settings.Policies = valueobject.DefaultPolicies()
	}
	return engine{
		deps:     deps,
		settings: settings,
		events:   eventlog.NewRecorder(deps.Outbox),
		log:      logger.WithComponent("transaction"),
	}
}

// lockWithRole читает сделку под блокировкой и вычисляет роль участника.
func (e engine) lockWithRole(ctx context.Context, transactionID, actorID uuid.UUID) (*entity.Transaction, valueobject.Role, error) {
	t, err := e.deps.Transactions.FindByIDForUpdate(ctx, transactionID)
	if err != nil {
		return nil, "", err
	}
	actor, err := e.deps.Identity.Actor(ctx, actorID)
	if err != nil {
		return nil, "", err
	}
	return t, access.TransactionRole(actor, t), nil
}

// ensureNotFrozen запрещает смену статуса сделки при открытом споре, если включена заморозка.
func (e engine) ensureNotFrozen(ctx context.Context, t *entity.Transaction, requested valueobject.TransactionStatus) error {
	if !e.settings.FreezeOnDispute || e.deps.Disputes == nil {
		return nil
	}
	open, err := e.deps.Disputes.FindOpenByTransaction(ctx, t.ID)
	if err != nil {
		return err
	}
	if open != nil {
		return apperror.InvalidTransition(string(t.Status), string(requested), "сделка заморожена открытым спором").
			WithDetail("dispute_id", open.ID.String())
	}
	return nil
}

func (e engine) progress(t *entity.Transaction) int {
	return t.OverallProgress(e.settings.ProgressBaseline)
}

func (e engine) recordStatus(ctx context.Context, t *entity.Transaction, from valueobject.TransactionStatus, actorID uuid.UUID) error {
	return e.events.Record(ctx, event.TransactionStatusChanged, event.AggregateTransaction, t.ID, t.Parties(),
		event.TransactionStatusPayload{
			TransactionID: t.ID,
			Kind:          string(t.Kind),
			From:          string(from),
			To:            string(t.Status),
			ActorID:       actorID,
			Progress:      e.progress(t),
		})
}

// transition проводит смену статуса: блокировка, проверка роли и заморозки,
// переход по графу, сохранение с проверкой версии и событие в одной транзакции.
func (e engine) transition(ctx context.Context, transactionID, actorID uuid.UUID, action access.Action,
	requested valueobject.TransactionStatus, apply func(t *entity.Transaction) error) (*entity.Transaction, error) {

	var result *entity.Transaction
	err := e.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, role, err := e.lockWithRole(ctx, transactionID, actorID)
		if err != nil {
			return err
		}
		if err := access.AuthorizeTransaction(role, action); err != nil {
			return err
		}
		if err := e.ensureNotFrozen(ctx, t, requested); err != nil {
			return err
		}

		from := t.Status
		if err := apply(t); err != nil {
			return err
		}
		if err := e.deps.Transactions.Update(ctx, t); err != nil {
			return err
		}
		if err := e.recordStatus(ctx, t, from, actorID); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"transaction_id": result.ID,
		"actor_id":       actorID,
		"action":         action,
		"to":             result.Status,
	}).Info("статус сделки изменён")
	return result, nil
}
