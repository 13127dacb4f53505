// Package memory: хранилище в памяти процесса. Все транзакции сериализуются
// одним мьютексом и работают над копией состояния, которая подменяет
// зафиксированное состояние только при успешном завершении.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/event"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
)

var (
	_ repository.TxManager             = (*Store)(nil)
	_ repository.IdentityProvider      = (*Store)(nil)
	_ repository.TransactionRepository = (*TransactionRepository)(nil)
	_ repository.MilestoneRepository   = (*MilestoneRepository)(nil)
	_ repository.ApplicationRepository = (*ApplicationRepository)(nil)
	_ repository.DisputeRepository     = (*DisputeRepository)(nil)
	_ repository.EvidenceRepository    = (*EvidenceRepository)(nil)
	_ repository.MessageRepository     = (*MessageRepository)(nil)
	_ repository.OutboxRepository      = (*OutboxRepository)(nil)
)

type state struct {
	transactions map[uuid.UUID]entity.Transaction
	milestones   map[uuid.UUID]entity.Milestone
	applications map[uuid.UUID]entity.Application
	disputes     map[uuid.UUID]entity.Dispute
	evidence     map[uuid.UUID][]entity.Evidence
	messages     map[uuid.UUID][]entity.MediationMessage
	outbox       []event.Event
	mediators    map[uuid.UUID]bool
}

func newState() *state {
	return &state{
		transactions: make(map[uuid.UUID]entity.Transaction),
		milestones:   make(map[uuid.UUID]entity.Milestone),
		applications: make(map[uuid.UUID]entity.Application),
		disputes:     make(map[uuid.UUID]entity.Dispute),
		evidence:     make(map[uuid.UUID][]entity.Evidence),
		messages:     make(map[uuid.UUID][]entity.MediationMessage),
		mediators:    make(map[uuid.UUID]bool),
	}
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func cloneSlices[V any](src map[uuid.UUID][]V) map[uuid.UUID][]V {
	dst := make(map[uuid.UUID][]V, len(src))
	for k, v := range src {
		dst[k] = append([]V(nil), v...)
	}
	return dst
}

func (s *state) clone() *state {
	return &state{
		transactions: cloneMap(s.transactions),
		milestones:   cloneMap(s.milestones),
		applications: cloneMap(s.applications),
		disputes:     cloneMap(s.disputes),
		evidence:     cloneSlices(s.evidence),
		messages:     cloneSlices(s.messages),
		outbox:       append([]event.Event(nil), s.outbox...),
		mediators:    cloneMap(s.mediators),
	}
}

type txKey struct{}

type Store struct {
	mu        sync.RWMutex
	committed *state
}

func NewStore() *Store {
	return &Store{committed: newState()}
}

// WithinTransaction реализует repository.TxManager. Вложенный вызов работает в уже открытой транзакции.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*state); ok {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.committed.clone()
	if err := fn(context.WithValue(ctx, txKey{}, work)); err != nil {
		return err
	}
	s.committed = work
	return nil
}

func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if st, ok := ctx.Value(txKey{}).(*state); ok {
		return fn(st)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.committed)
}

func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	return s.WithinTransaction(ctx, func(ctx context.Context) error {
		return fn(ctx.Value(txKey{}).(*state))
	})
}

// GrantMediator выставляет пользователю глобальный флаг медиатора.
func (s *Store) GrantMediator(ids ...uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.committed.mediators[id] = true
	}
}

// Actor реализует repository.IdentityProvider.
func (s *Store) Actor(ctx context.Context, id uuid.UUID) (entity.Actor, error) {
	actor := entity.Actor{ID: id}
	err := s.read(ctx, func(st *state) error {
		actor.IsMediator = st.mediators[id]
		return nil
	})
	return actor, err
}

func (s *Store) Transactions() *TransactionRepository { return &TransactionRepository{s: s} }
func (s *Store) Milestones() *MilestoneRepository     { return &MilestoneRepository{s: s} }
func (s *Store) Applications() *ApplicationRepository { return &ApplicationRepository{s: s} }
func (s *Store) Disputes() *DisputeRepository         { return &DisputeRepository{s: s} }
func (s *Store) Evidence() *EvidenceRepository        { return &EvidenceRepository{s: s} }
func (s *Store) Messages() *MessageRepository         { return &MessageRepository{s: s} }
func (s *Store) Outbox() *OutboxRepository            { return &OutboxRepository{s: s} }

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
