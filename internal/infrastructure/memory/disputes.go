package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/event"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

type DisputeRepository struct {
	s *Store
}

func (r *DisputeRepository) Create(ctx context.Context, d *entity.Dispute) error {
	return r.s.write(ctx, func(st *state) error {
		for _, existing := range st.disputes {
			if existing.TransactionID == d.TransactionID && !existing.IsClosed() {
				return apperror.ErrAlreadyDisputed
			}
		}
		stored := *d
		stored.Evidence, stored.Messages = nil, nil
		st.disputes[d.ID] = stored
		return nil
	})
}

func (r *DisputeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	var out *entity.Dispute
	err := r.s.read(ctx, func(st *state) error {
		d, ok := st.disputes[id]
		if !ok {
			return apperror.ErrDisputeNotFound
		}
		out = &d
		return nil
	})
	return out, err
}

func (r *DisputeRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	return r.FindByID(ctx, id)
}

func (r *DisputeRepository) FindOpenByTransaction(ctx context.Context, transactionID uuid.UUID) (*entity.Dispute, error) {
	var out *entity.Dispute
	err := r.s.read(ctx, func(st *state) error {
		for _, d := range st.disputes {
			if d.TransactionID == transactionID && !d.IsClosed() {
				out = &d
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *DisputeRepository) Update(ctx context.Context, d *entity.Dispute) error {
	return r.s.write(ctx, func(st *state) error {
		current, ok := st.disputes[d.ID]
		if !ok {
			return apperror.ErrDisputeNotFound
		}
		if current.Version != d.Version {
			return apperror.ErrConflictRace.WithDetail("dispute_id", d.ID.String())
		}
		d.Version++
		stored := *d
		stored.Evidence, stored.Messages = nil, nil
		st.disputes[d.ID] = stored
		return nil
	})
}

func (r *DisputeRepository) ListForActor(ctx context.Context, actorID uuid.UUID, filter repository.DisputeFilter) ([]*entity.Dispute, error) {
	var out []*entity.Dispute
	err := r.s.read(ctx, func(st *state) error {
		for _, d := range st.disputes {
			t, ok := st.transactions[d.TransactionID]
			if !ok || !matchesDispute(d, t, actorID, filter) {
				continue
			}
			out = append(out, &d)
		}
		return nil
	})
	sortDisputes(out)
	return paginate(out, filter.Limit, filter.Offset), err
}

func (r *DisputeRepository) ListUnassigned(ctx context.Context, limit, offset int) ([]*entity.Dispute, error) {
	var out []*entity.Dispute
	err := r.s.read(ctx, func(st *state) error {
		for _, d := range st.disputes {
			if !d.HasMediator() && !d.IsClosed() {
				out = append(out, &d)
			}
		}
		return nil
	})
	sortDisputes(out)
	return paginate(out, limit, offset), err
}

func matchesDispute(d entity.Dispute, t entity.Transaction, actorID uuid.UUID, f repository.DisputeFilter) bool {
	var ok bool
	switch f.Role {
	case valueobject.RoleClientOrBuyer:
		ok = t.IsPayer(actorID)
	case valueobject.RoleFreelancerOrSeller:
		ok = t.IsPerformer(actorID)
	case valueobject.RoleMediator:
		ok = d.IsMediator(actorID)
	default:
		ok = t.IsPayer(actorID) || t.IsPerformer(actorID) || d.IsMediator(actorID)
	}
	return ok && (f.Status == "" || d.Status == f.Status)
}

func sortDisputes(items []*entity.Dispute) {
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
}

type EvidenceRepository struct {
	s *Store
}

func (r *EvidenceRepository) Append(ctx context.Context, e *entity.Evidence) error {
	return r.s.write(ctx, func(st *state) error {
		stored := *e
		stored.Files = append([]entity.FileRef(nil), e.Files...)
		st.evidence[e.DisputeID] = append(st.evidence[e.DisputeID], stored)
		return nil
	})
}

func (r *EvidenceRepository) ListByDispute(ctx context.Context, disputeID uuid.UUID) ([]entity.Evidence, error) {
	var out []entity.Evidence
	err := r.s.read(ctx, func(st *state) error {
		out = append(out, st.evidence[disputeID]...)
		return nil
	})
	return out, err
}

type MessageRepository struct {
	s *Store
}

func (r *MessageRepository) Append(ctx context.Context, m *entity.MediationMessage) error {
	return r.s.write(ctx, func(st *state) error {
		thread := st.messages[m.DisputeID]
		m.Seq = int64(len(thread)) + 1
		st.messages[m.DisputeID] = append(thread, *m)
		return nil
	})
}

func (r *MessageRepository) ListByDispute(ctx context.Context, disputeID uuid.UUID) ([]entity.MediationMessage, error) {
	var out []entity.MediationMessage
	err := r.s.read(ctx, func(st *state) error {
		out = append(out, st.messages[disputeID]...)
		return nil
	})
	return out, err
}

type OutboxRepository struct {
	s *Store
}

func (r *OutboxRepository) Add(ctx context.Context, e *event.Event) error {
	return r.s.write(ctx, func(st *state) error {
		st.outbox = append(st.outbox, *e)
		return nil
	})
}

func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]*event.Event, error) {
	var out []*event.Event
	err := r.s.read(ctx, func(st *state) error {
		for _, e := range st.outbox {
			if e.PublishedAt != nil {
				continue
			}
			out = append(out, &e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// MarkPublished удаляет опубликованные события: в памяти история outbox не нужна.
func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	published := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		published[id] = struct{}{}
	}
	return r.s.write(ctx, func(st *state) error {
		kept := st.outbox[:0]
		for _, e := range st.outbox {
			if _, ok := published[e.ID]; ok {
				continue
			}
			kept = append(kept, e)
		}
		st.outbox = kept
		return nil
	})
}

// Pending возвращает все неопубликованные события. Используется в тестах.
func (s *Store) Pending() []event.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]event.Event(nil), s.committed.outbox...)
}
