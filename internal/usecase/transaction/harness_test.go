package transaction_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/event"
	"github.com/ignatzorin/marketplace-backend/internal/infrastructure/memory"
	"github.com/ignatzorin/marketplace-backend/internal/usecase/transaction"
)

type harness struct {
	store    *memory.Store
	deps     transaction.Dependencies
	settings transaction.Settings
}

func newHarness(t *testing.T, tweak ...func(*transaction.Settings)) *harness {
	t.Helper()
	store := memory.NewStore()
	settings := transaction.DefaultSettings()
	for _, fn := range tweak {
		fn(&settings)
	}
	return &harness{
		store: store,
		deps: transaction.Dependencies{
			Tx:           store,
			Transactions: store.Transactions(),
			Milestones:   store.Milestones(),
			Applications: store.Applications(),
			Disputes:     store.Disputes(),
			Outbox:       store.Outbox(),
			Identity:     store,
		},
		settings: settings,
	}
}

func (h *harness) createJob(t *testing.T, clientID uuid.UUID) *entity.Transaction {
	t.Helper()
	job, err := transaction.NewCreateJobUseCase(h.deps, h.settings).Execute(context.Background(),
		transaction.CreateJobInput{ClientID: clientID, Title: "Интернет-магазин", Budget: 1200})
	require.NoError(t, err)
	return job
}

func (h *harness) apply(t *testing.T, jobID, freelancerID uuid.UUID) *entity.Application {
	t.Helper()
	app, err := transaction.NewApplyUseCase(h.deps, h.settings).Execute(context.Background(), transaction.ApplyInput{
		JobID:        jobID,
		FreelancerID: freelancerID,
		Proposal:     "Сделаю за две недели",
		Bid:          1000,
		Timeline:     "2 недели",
	})
	require.NoError(t, err)
	return app
}

// startedJob возвращает вакансию в IN_PROGRESS с назначенным исполнителем.
func (h *harness) startedJob(t *testing.T) (job *entity.Transaction, client, freelancer uuid.UUID) {
	t.Helper()
	client, freelancer = uuid.New(), uuid.New()
	job = h.createJob(t, client)
	app := h.apply(t, job.ID, freelancer)
	res, err := transaction.NewAcceptApplicationUseCase(h.deps, h.settings).Execute(context.Background(),
		transaction.ReviewApplicationInput{ApplicationID: app.ID, ClientID: client})
	require.NoError(t, err)
	return res.Transaction, client, freelancer
}

// paidOrder возвращает оплаченный заказ услуги в IN_PROGRESS.
func (h *harness) paidOrder(t *testing.T) (order *entity.Transaction, buyer, seller uuid.UUID) {
	t.Helper()
	buyer, seller = uuid.New(), uuid.New()
	ctx := context.Background()
	order, err := transaction.NewPlaceGigOrderUseCase(h.deps, h.settings).Execute(ctx, transaction.PlaceGigOrderInput{
		BuyerID: buyer, SellerID: seller, GigID: uuid.New(), Title: "Дизайн логотипа", Price: 200,
	})
	require.NoError(t, err)
	order, err = transaction.NewConfirmPaymentUseCase(h.deps, h.settings).Execute(ctx, order.ID)
	require.NoError(t, err)
	return order, buyer, seller
}

func (h *harness) eventNames() []event.Name {
	var names []event.Name
	for _, e := range h.store.Pending() {
		names = append(names, e.Name)
	}
	return names
}

func (h *harness) countEvents(name event.Name) int {
	n := 0
	for _, got := range h.eventNames() {
		if got == name {
			n++
		}
	}
	return n
}
