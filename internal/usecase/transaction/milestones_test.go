package transaction_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/event"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/usecase/transaction"
)

func addMilestone(t *testing.T, h *harness, tx *entity.Transaction, performer uuid.UUID) entity.Milestone {
	t.Helper()
	updated, err := transaction.NewAddMilestoneUseCase(h.deps, h.settings).Execute(context.Background(),
		transaction.AddMilestoneInput{TransactionID: tx.ID, ActorID: performer, Title: "Макет"})
	require.NoError(t, err)
	require.NotEmpty(t, updated.Milestones)
	return updated.Milestones[len(updated.Milestones)-1]
}

func moveMilestone(h *harness, tx *entity.Transaction, m entity.Milestone, actor uuid.UUID, to valueobject.MilestoneStatus) (*entity.Transaction, error) {
	return transaction.NewUpdateMilestoneStatusUseCase(h.deps, h.settings).Execute(context.Background(),
		transaction.UpdateMilestoneStatusInput{TransactionID: tx.ID, MilestoneID: m.ID, ActorID: actor, Status: to})
}

func TestAddMilestone_OnlyPerformer(t *testing.T) {
	h := newHarness(t)
	job, client, _ := h.startedJob(t)

	_, err := transaction.NewAddMilestoneUseCase(h.deps, h.settings).Execute(context.Background(),
		transaction.AddMilestoneInput{TransactionID: job.ID, ActorID: client, Title: "Макет"})
	assert.True(t, apperror.IsUnauthorized(err))
}

func TestMilestones_JobPolicyAllowsSelfCompletion(t *testing.T) {
	h := newHarness(t)
	job, client, freelancer := h.startedJob(t)
	m := addMilestone(t, h, job, freelancer)

	_, err := moveMilestone(h, job, m, freelancer, valueobject.MilestoneStatusInProgress)
	require.NoError(t, err)

	updated, err := moveMilestone(h, job, m, freelancer, valueobject.MilestoneStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, valueobject.MilestoneStatusCompleted, updated.Milestones[0].Status)
	assert.Equal(t, valueobject.Percent(100), updated.Milestones[0].Progress)

	// Этап не меняет статус сделки.
	assert.Equal(t, valueobject.TransactionStatusInProgress, updated.Status)

	view, err := transaction.NewGetTransactionUseCase(h.deps, h.settings).Execute(context.Background(), job.ID, client)
	require.NoError(t, err)
	assert.Equal(t, 100, view.Progress)
}

func TestMilestones_GigPolicyRequiresBuyerApproval(t *testing.T) {
	h := newHarness(t)
	order, buyer, seller := h.paidOrder(t)
	m := addMilestone(t, h, order, seller)

	_, err := moveMilestone(h, order, m, seller, valueobject.MilestoneStatusInProgress)
	require.NoError(t, err)

	_, err = moveMilestone(h, order, m, seller, valueobject.MilestoneStatusCompleted)
	assert.True(t, apperror.IsInvalidTransition(err))

	_, err = moveMilestone(h, order, m, seller, valueobject.MilestoneStatusPendingCompletion)
	require.NoError(t, err)

	_, err = moveMilestone(h, order, m, seller, valueobject.MilestoneStatusCompleted)
	assert.True(t, apperror.IsUnauthorized(err))

	updated, err := moveMilestone(h, order, m, buyer, valueobject.MilestoneStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, valueobject.MilestoneStatusCompleted, updated.Milestones[0].Status)
}

func TestMilestones_PolicyIsConfigurable(t *testing.T) {
	h := newHarness(t, func(s *transaction.Settings) {
		s.Policies = valueobject.Policies{
			valueobject.KindJob:      {MilestoneApproval: valueobject.MilestoneApprovalPayer},
			valueobject.KindGigOrder: {MilestoneApproval: valueobject.MilestoneApprovalSelf},
		}
	})
	job, _, freelancer := h.startedJob(t)
	m := addMilestone(t, h, job, freelancer)

	_, err := moveMilestone(h, job, m, freelancer, valueobject.MilestoneStatusInProgress)
	require.NoError(t, err)
	_, err = moveMilestone(h, job, m, freelancer, valueobject.MilestoneStatusCompleted)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestMilestoneProgress_FeedsDerivedProgress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, client, freelancer := h.startedJob(t)
	first := addMilestone(t, h, job, freelancer)
	second := addMilestone(t, h, job, freelancer)
	uc := transaction.NewUpdateMilestoneProgressUseCase(h.deps, h.settings)

	_, err := uc.Execute(ctx, transaction.UpdateMilestoneProgressInput{
		TransactionID: job.ID, MilestoneID: first.ID, ActorID: freelancer, Progress: 50,
	})
	require.NoError(t, err)
	_, err = uc.Execute(ctx, transaction.UpdateMilestoneProgressInput{
		TransactionID: job.ID, MilestoneID: second.ID, ActorID: freelancer, Progress: 25,
	})
	require.NoError(t, err)

	view, err := transaction.NewGetTransactionUseCase(h.deps, h.settings).Execute(ctx, job.ID, client)
	require.NoError(t, err)
	assert.Equal(t, 38, view.Progress)

	_, err = uc.Execute(ctx, transaction.UpdateMilestoneProgressInput{
		TransactionID: job.ID, MilestoneID: uuid.New(), ActorID: freelancer, Progress: 10,
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestMilestones_ForeignTransactionIsNotFound(t *testing.T) {
	h := newHarness(t)
	job, _, freelancer := h.startedJob(t)
	other, _, otherFreelancer := h.startedJob(t)
	m := addMilestone(t, h, other, otherFreelancer)

	_, err := moveMilestone(h, job, m, freelancer, valueobject.MilestoneStatusInProgress)
	assert.True(t, apperror.IsNotFound(err))
}

// failingOutbox отказывает в записи события, уже после того как этап сохранён.
type failingOutbox struct {
	repository.OutboxRepository
}

func (failingOutbox) Add(context.Context, *event.Event) error {
	return errors.New("outbox недоступен")
}

func TestAddMilestone_ReturnsOnLockedTransaction(t *testing.T) {
	h := newHarness(t)
	job, _, freelancer := h.startedJob(t)

	done := make(chan error, 1)
	go func() {
		_, err := transaction.NewAddMilestoneUseCase(h.deps, h.settings).Execute(context.Background(),
			transaction.AddMilestoneInput{TransactionID: job.ID, ActorID: freelancer, Title: "Макет"})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("добавление этапа не завершилось")
	}
}

func TestMilestones_FailedEventRollsBackMilestone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, client, freelancer := h.startedJob(t)
	m := addMilestone(t, h, job, freelancer)
	_, err := transaction.NewUpdateMilestoneProgressUseCase(h.deps, h.settings).Execute(ctx,
		transaction.UpdateMilestoneProgressInput{TransactionID: job.ID, MilestoneID: m.ID, ActorID: freelancer, Progress: 20})
	require.NoError(t, err)

	broken := h.deps
	broken.Outbox = failingOutbox{OutboxRepository: h.deps.Outbox}

	_, err = transaction.NewUpdateMilestoneProgressUseCase(broken, h.settings).Execute(ctx,
		transaction.UpdateMilestoneProgressInput{TransactionID: job.ID, MilestoneID: m.ID, ActorID: freelancer, Progress: 70})
	require.Error(t, err)

	_, err = transaction.NewUpdateMilestoneStatusUseCase(broken, h.settings).Execute(ctx,
		transaction.UpdateMilestoneStatusInput{TransactionID: job.ID, MilestoneID: m.ID, ActorID: freelancer,
			Status: valueobject.MilestoneStatusInProgress})
	require.Error(t, err)

	_, err = transaction.NewAddMilestoneUseCase(broken, h.settings).Execute(ctx,
		transaction.AddMilestoneInput{TransactionID: job.ID, ActorID: freelancer, Title: "Вёрстка"})
	require.Error(t, err)

	view, err := transaction.NewGetTransactionUseCase(h.deps, h.settings).Execute(ctx, job.ID, client)
	require.NoError(t, err)
	require.Len(t, view.Transaction.Milestones, 1)
	assert.Equal(t, valueobject.MilestoneStatusPending, view.Transaction.Milestones[0].Status)
	assert.Equal(t, valueobject.Percent(20), view.Transaction.Milestones[0].Progress)
	assert.Equal(t, job.Version+2, view.Transaction.Version)
	assert.Equal(t, 20, view.Progress)
}
