// Package dispute реализует движок споров (открытие, назначение медиатора, статусы,
// решение, доказательства, переписка). Статус сделки движок не меняет.
package dispute

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/event"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/logger"
	"github.com/ignatzorin/marketplace-backend/internal/usecase/eventlog"
)

type Dependencies struct {
	Tx           repository.TxManager
	Transactions repository.TransactionRepository
	Disputes     repository.DisputeRepository
	Evidence     repository.EvidenceRepository
	Messages     repository.MessageRepository
	Outbox       repository.OutboxRepository
	Identity     repository.IdentityProvider
	Blobs        repository.BlobStore
}

type engine struct {
	deps   Dependencies
	events *eventlog.Recorder
	log    *logrus.Entry
}

func newEngine(deps Dependencies) engine {
	return engine{
		deps:   deps,
		events: eventlog.NewRecorder(deps.Outbox),
		log:    logger.WithComponent("dispute"),
	}
}

// scope: спор, его сделка и участник, загруженные в одной транзакции.
type scope struct {
	dispute *entity.Dispute
	tx      *entity.Transaction
	actor   entity.Actor
}

// lock читает спор под блокировкой вместе со сделкой и участником.
func (e engine) lock(ctx context.Context, disputeID, actorID uuid.UUID) (*scope, error) {
	d, err := e.deps.Disputes.FindByIDForUpdate(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	return e.load(ctx, d, actorID)
}

func (e engine) load(ctx context.Context, d *entity.Dispute, actorID uuid.UUID) (*scope, error) {
	t, err := e.deps.Transactions.FindByID(ctx, d.TransactionID)
	if err != nil {
		return nil, err
	}
	actor, err := e.deps.Identity.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return &scope{dispute: d, tx: t, actor: actor}, nil
}

// recipients: обе стороны сделки и назначенный медиатор.
func recipients(d *entity.Dispute, t *entity.Transaction) []uuid.UUID {
	ids := t.Parties()
	if d.MediatorID != nil {
		ids = append(ids, *d.MediatorID)
	}
	return ids
}

func (e engine) recordDispute(ctx context.Context, name event.Name, s *scope, extra ...uuid.UUID) error {
	d := s.dispute
	return e.events.Record(ctx, name, event.AggregateDispute, d.ID, append(recipients(d, s.tx), extra...),
		event.DisputePayload{
			DisputeID:     d.ID,
			TransactionID: d.TransactionID,
			Status:        string(d.Status),
			MediatorID:    d.MediatorID,
			Resolution:    d.Resolution,
			ActorID:       s.actor.ID,
		})
}

// save сохраняет спор с проверкой версии и пишет событие.
func (e engine) save(ctx context.Context, name event.Name, s *scope, extra ...uuid.UUID) error {
	if err := e.deps.Disputes.Update(ctx, s.dispute); err != nil {
		return err
	}
	return e.recordDispute(ctx, name, s, extra...)
}

func (e engine) logAction(s *scope, msg string) {
	e.log.WithFields(logrus.Fields{
		"dispute_id":     s.dispute.ID,
		"transaction_id": s.dispute.TransactionID,
		"actor_id":       s.actor.ID,
		"status":         s.dispute.Status,
	}).Info(msg)
}
