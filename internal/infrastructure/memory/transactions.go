package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

type TransactionRepository struct {
	s *Store
}

func (r *TransactionRepository) Create(ctx context.Context, t *entity.Transaction) error {
	return r.s.write(ctx, func(st *state) error {
		stored := *t
		stored.Milestones = nil
		st.transactions[t.ID] = stored
		return nil
	})
}

func (r *TransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Transaction, error) {
	var out *entity.Transaction
	err := r.s.read(ctx, func(st *state) error {
		t, ok := st.transactions[id]
		if !ok {
			return apperror.ErrTransactionNotFound
		}
		t.Milestones = milestonesOf(st, id)
		out = &t
		return nil
	})
	return out, err
}

// FindByIDForUpdate не отличается от FindByID: транзакции хранилища уже сериализованы.
func (r *TransactionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Transaction, error) {
	return r.FindByID(ctx, id)
}

func (r *TransactionRepository) Update(ctx context.Context, t *entity.Transaction) error {
	return r.s.write(ctx, func(st *state) error {
		current, ok := st.transactions[t.ID]
		if !ok {
			return apperror.ErrTransactionNotFound
		}
		if current.Version != t.Version {
			return apperror.ErrConflictRace.WithDetail("transaction_id", t.ID.String())
		}
		t.Version++
		stored := *t
		stored.Milestones = nil
		st.transactions[t.ID] = stored
		return nil
	})
}

func (r *TransactionRepository) ListForActor(ctx context.Context, actorID uuid.UUID, filter repository.TransactionFilter) ([]*entity.Transaction, error) {
	var out []*entity.Transaction
	err := r.s.read(ctx, func(st *state) error {
		for id, t := range st.transactions {
			if !matchesTransaction(t, actorID, filter) {
				continue
			}
			t.Milestones = milestonesOf(st, id)
			out = append(out, &t)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.Limit, filter.Offset), err
}

func matchesTransaction(t entity.Transaction, actorID uuid.UUID, f repository.TransactionFilter) bool {
	switch f.Role {
	case valueobject.RoleClientOrBuyer:
		if !t.IsPayer(actorID) {
			return false
		}
	case valueobject.RoleFreelancerOrSeller:
		if !t.IsPerformer(actorID) {
			return false
		}
	default:
		if !t.IsPayer(actorID) && !t.IsPerformer(actorID) {
			return false
		}
	}
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	return f.Status == "" || t.Status == f.Status
}

func milestonesOf(st *state, transactionID uuid.UUID) []entity.Milestone {
	var out []entity.Milestone
	for _, m := range st.milestones {
		if m.TransactionID == transactionID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type MilestoneRepository struct {
	s *Store
}

func (r *MilestoneRepository) Create(ctx context.Context, m *entity.Milestone) error {
	return r.s.write(ctx, func(st *state) error {
		st.milestones[m.ID] = *m
		return nil
	})
}

func (r *MilestoneRepository) Update(ctx context.Context, m *entity.Milestone) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.milestones[m.ID]; !ok {
			return apperror.ErrMilestoneNotFound
		}
		st.milestones[m.ID] = *m
		return nil
	})
}

func (r *MilestoneRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Milestone, error) {
	var out *entity.Milestone
	err := r.s.read(ctx, func(st *state) error {
		m, ok := st.milestones[id]
		if !ok {
			return apperror.ErrMilestoneNotFound
		}
		out = &m
		return nil
	})
	return out, err
}

func (r *MilestoneRepository) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]entity.Milestone, error) {
	var out []entity.Milestone
	err := r.s.read(ctx, func(st *state) error {
		out = milestonesOf(st, transactionID)
		return nil
	})
	return out, err
}

type ApplicationRepository struct {
	s *Store
}

func (r *ApplicationRepository) Create(ctx context.Context, a *entity.Application) error {
	return r.s.write(ctx, func(st *state) error {
		st.applications[a.ID] = *a
		return nil
	})
}

func (r *ApplicationRepository) Update(ctx context.Context, a *entity.Application) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.applications[a.ID]; !ok {
			return apperror.ErrApplicationNotFound
		}
		st.applications[a.ID] = *a
		return nil
	})
}

func (r *ApplicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Application, error) {
	var out *entity.Application
	err := r.s.read(ctx, func(st *state) error {
		a, ok := st.applications[id]
		if !ok {
			return apperror.ErrApplicationNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

func (r *ApplicationRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.Application, error) {
	var out []*entity.Application
	err := r.s.read(ctx, func(st *state) error {
		for _, a := range st.applications {
			if a.JobID == jobID {
				out = append(out, &a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r *ApplicationRepository) ExistsForFreelancer(ctx context.Context, jobID, freelancerID uuid.UUID) (bool, error) {
	var exists bool
	err := r.s.read(ctx, func(st *state) error {
		for _, a := range st.applications {
			if a.JobID == jobID && a.FreelancerID == freelancerID {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}
