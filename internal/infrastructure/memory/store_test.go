package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/infrastructure/memory"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

func newJob(t *testing.T, store *memory.Store) *entity.Transaction {
	t.Helper()
	job, err := entity.NewJob(uuid.New(), "Лендинг", 300)
	require.NoError(t, err)
	require.NoError(t, store.Transactions().Create(context.Background(), job))
	return job
}

func TestStore_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	job := newJob(t, store)

	boom := errors.New("boom")
	err := store.WithinTransaction(ctx, func(ctx context.Context) error {
		fresh, err := store.Transactions().FindByIDForUpdate(ctx, job.ID)
		require.NoError(t, err)
		require.NoError(t, fresh.Cancel())
		require.NoError(t, store.Transactions().Update(ctx, fresh))
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := store.Transactions().FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusOpen, stored.Status)
	assert.Equal(t, int64(0), stored.Version)
}

func TestTransactionRepository_VersionCheck(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	job := newJob(t, store)

	first, err := store.Transactions().FindByID(ctx, job.ID)
	require.NoError(t, err)
	second, err := store.Transactions().FindByID(ctx, job.ID)
	require.NoError(t, err)

	require.NoError(t, first.Cancel())
	require.NoError(t, store.Transactions().Update(ctx, first))
	assert.Equal(t, int64(1), first.Version)

	require.NoError(t, second.Cancel())
	err = store.Transactions().Update(ctx, second)
	assert.True(t, apperror.IsConflictRace(err))
}

func TestTransactionRepository_NotFound(t *testing.T) {
	_, err := memory.NewStore().Transactions().FindByID(context.Background(), uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestTransactionRepository_ListForActor(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	buyer, seller := uuid.New(), uuid.New()

	order, err := entity.NewGigOrder(buyer, seller, uuid.New(), "Иконки", 80)
	require.NoError(t, err)
	require.NoError(t, store.Transactions().Create(ctx, order))
	newJob(t, store)

	asBuyer, err := store.Transactions().ListForActor(ctx, buyer, repository.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, asBuyer, 1)

	asSellerOnlyPayer, err := store.Transactions().ListForActor(ctx, seller,
		repository.TransactionFilter{Role: valueobject.RoleClientOrBuyer})
	require.NoError(t, err)
	assert.Empty(t, asSellerOnlyPayer)
}

func TestMessageRepository_SequenceIsMonotonic(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	disputeID := uuid.New()

	for i := 0; i < 3; i++ {
		msg, err := entity.NewMediationMessage(disputeID, uuid.New(), "сообщение")
		require.NoError(t, err)
		require.NoError(t, store.Messages().Append(ctx, msg))
		assert.Equal(t, int64(i+1), msg.Seq)
	}

	thread, err := store.Messages().ListByDispute(ctx, disputeID)
	require.NoError(t, err)
	require.Len(t, thread, 3)
	assert.Equal(t, int64(3), thread[2].Seq)
}

func TestDisputeRepository_OneOpenPerTransaction(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	job := newJob(t, store)

	first, err := entity.NewDispute(job.ID, job.ClientID, "Срыв сроков", "")
	require.NoError(t, err)
	require.NoError(t, store.Disputes().Create(ctx, first))

	second, err := entity.NewDispute(job.ID, job.ClientID, "Повтор", "")
	require.NoError(t, err)
	assert.ErrorIs(t, store.Disputes().Create(ctx, second), apperror.ErrAlreadyDisputed)

	open, err := store.Disputes().FindOpenByTransaction(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, first.ID, open.ID)
}

func TestIdentity_MediatorFlag(t *testing.T) {
	store := memory.NewStore()
	mediator := uuid.New()
	store.GrantMediator(mediator)

	actor, err := store.Actor(context.Background(), mediator)
	require.NoError(t, err)
	assert.True(t, actor.IsMediator)

	plain, err := store.Actor(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, plain.IsMediator)
}
