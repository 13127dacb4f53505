package dispute_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/marketplace-backend/internal/domain/access"
	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/event"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/infrastructure/memory"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/usecase/dispute"
)

type mockBlobStore struct {
	mu      sync.Mutex
	files   map[string]string
	saveErr error
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{files: make(map[string]string)}
}

func (m *mockBlobStore) Save(ctx context.Context, disputeID uuid.UUID, name string, r io.Reader) (entity.FileRef, error) {
	if m.saveErr != nil {
		return entity.FileRef{}, m.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return entity.FileRef{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s/%s", disputeID, uuid.NewString())
	m.files[key] = string(data)
	return entity.FileRef{Key: key, Name: name, ContentType: "text/plain", Size: int64(len(data))}, nil
}

func (m *mockBlobStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

func (m *mockBlobStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

type harness struct {
	store    *memory.Store
	blobs    *mockBlobStore
	deps     dispute.Dependencies
	order    *entity.Transaction
	buyer    uuid.UUID
	seller   uuid.UUID
	mediator uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	blobs := newMockBlobStore()
	buyer, seller, mediator := uuid.New(), uuid.New(), uuid.New()
	store.GrantMediator(mediator)

	order, err := entity.NewGigOrder(buyer, seller, uuid.New(), "Видеомонтаж", 300)
	require.NoError(t, err)
	require.NoError(t, order.Start())
	require.NoError(t, store.Transactions().Create(context.Background(), order))

	return &harness{
		store: store,
		blobs: blobs,
		deps: dispute.Dependencies{
			Tx:           store,
			Transactions: store.Transactions(),
			Disputes:     store.Disputes(),
			Evidence:     store.Evidence(),
			Messages:     store.Messages(),
			Outbox:       store.Outbox(),
			Identity:     store,
			Blobs:        blobs,
		},
		order:    order,
		buyer:    buyer,
		seller:   seller,
		mediator: mediator,
	}
}

func (h *harness) open(t *testing.T) *entity.Dispute {
	t.Helper()
	d, err := dispute.NewOpenDisputeUseCase(h.deps).Execute(context.Background(), dispute.OpenInput{
		TransactionID: h.order.ID, ActorID: h.buyer, Reason: "Сроки сорваны", Description: "Нет результата",
	})
	require.NoError(t, err)
	return d
}

func (h *harness) setStatus(actor uuid.UUID, d *entity.Dispute, status valueobject.DisputeStatus) (*entity.Dispute, error) {
	return dispute.NewUpdateStatusUseCase(h.deps).Execute(context.Background(),
		dispute.UpdateStatusInput{DisputeID: d.ID, ActorID: actor, Status: status})
}

func (h *harness) post(actor uuid.UUID, d *entity.Dispute, text string) (*entity.MediationMessage, error) {
	return dispute.NewPostMessageUseCase(h.deps).Execute(context.Background(),
		dispute.PostMessageInput{DisputeID: d.ID, ActorID: actor, Text: text})
}

func (h *harness) assign(t *testing.T, d *entity.Dispute) {
	t.Helper()
	_, err := dispute.NewAssignMediatorUseCase(h.deps).Execute(context.Background(),
		dispute.AssignMediatorInput{DisputeID: d.ID, ActorID: h.mediator})
	require.NoError(t, err)
}

func TestDisputeScenario_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	d := h.open(t)
	assert.Equal(t, valueobject.DisputeStatusOpened, d.Status)
	assert.Equal(t, h.buyer, d.InitiatorID)

	assigned, err := dispute.NewAssignMediatorUseCase(h.deps).Execute(ctx,
		dispute.AssignMediatorInput{DisputeID: d.ID, ActorID: h.mediator})
	require.NoError(t, err)
	require.NotNil(t, assigned.MediatorID)
	assert.Equal(t, h.mediator, *assigned.MediatorID)
	assert.Equal(t, valueobject.DisputeStatusOpened, assigned.Status)

	_, err = h.setStatus(h.mediator, d, valueobject.DisputeStatusMediation)
	require.NoError(t, err)

	texts := []struct {
		sender uuid.UUID
		text   string
	}{
		{h.buyer, "buyer-1"}, {h.seller, "seller-1"}, {h.buyer, "buyer-2"}, {h.seller, "seller-2"},
	}
	for _, m := range texts {
		_, err := h.post(m.sender, d, m.text)
		require.NoError(t, err)
	}

	resolved, err := dispute.NewResolveUseCase(h.deps).Execute(ctx,
		dispute.ResolveInput{DisputeID: d.ID, ActorID: h.mediator, Resolution: "refund 50%"})
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusResolved, resolved.Status)
	require.NotNil(t, resolved.Resolution)
	assert.Equal(t, "refund 50%", *resolved.Resolution)

	closed, err := h.setStatus(h.mediator, d, valueobject.DisputeStatusClosed)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusClosed, closed.Status)

	_, err = h.post(h.buyer, d, "ещё одно")
	assert.ErrorIs(t, err, apperror.ErrDisputeClosed)

	view, err := dispute.NewGetDisputeUseCase(h.deps).Execute(ctx, d.ID, h.mediator)
	require.NoError(t, err)
	require.Len(t, view.Dispute.Messages, 4)
	for i, m := range texts {
		assert.Equal(t, m.text, view.Dispute.Messages[i].Text)
		assert.Equal(t, m.sender, view.Dispute.Messages[i].SenderID)
		assert.Equal(t, int64(i+1), view.Dispute.Messages[i].Seq)
	}
	assert.Equal(t, []string{access.DisplayMediator}, view.DisplayRoles)

	// Решение не меняет сделку.
	stored, err := h.deps.Transactions.FindByID(ctx, h.order.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusInProgress, stored.Status)
}

func TestOpenDispute_AlreadyDisputedUntilClosed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.open(t)

	_, err := dispute.NewOpenDisputeUseCase(h.deps).Execute(ctx, dispute.OpenInput{
		TransactionID: h.order.ID, ActorID: h.seller, Reason: "Встречная претензия",
	})
	assert.ErrorIs(t, err, apperror.ErrAlreadyDisputed)

	h.assign(t, d)
	_, err = h.setStatus(h.mediator, d, valueobject.DisputeStatusClosed)
	require.NoError(t, err)

	second, err := dispute.NewOpenDisputeUseCase(h.deps).Execute(ctx, dispute.OpenInput{
		TransactionID: h.order.ID, ActorID: h.seller, Reason: "Новая претензия",
	})
	require.NoError(t, err)
	assert.NotEqual(t, d.ID, second.ID)
}

func TestOpenDispute_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := dispute.NewOpenDisputeUseCase(h.deps).Execute(ctx, dispute.OpenInput{
		TransactionID: h.order.ID, ActorID: uuid.New(), Reason: "Чужая сделка",
	})
	assert.True(t, apperror.IsUnauthorized(err))

	_, err = dispute.NewOpenDisputeUseCase(h.deps).Execute(ctx, dispute.OpenInput{
		TransactionID: h.order.ID, ActorID: h.buyer, Reason: "  ",
	})
	assert.True(t, apperror.IsValidation(err))

	_, err = dispute.NewOpenDisputeUseCase(h.deps).Execute(ctx, dispute.OpenInput{
		TransactionID: uuid.New(), ActorID: h.buyer, Reason: "Нет сделки",
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestOpenDispute_ConcurrentOpensYieldOne(t *testing.T) {
	h := newHarness(t)
	open := dispute.NewOpenDisputeUseCase(h.deps)

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := h.buyer
			if i%2 == 1 {
				actor = h.seller
			}
			_, errs[i] = open.Execute(context.Background(), dispute.OpenInput{
				TransactionID: h.order.ID, ActorID: actor, Reason: "Претензия",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperror.ErrAlreadyDisputed)
	}
	assert.Equal(t, 1, succeeded)
}

func TestClosedDispute_RejectsMutationsWithoutSideEffects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.open(t)
	h.assign(t, d)
	_, err := h.setStatus(h.mediator, d, valueobject.DisputeStatusClosed)
	require.NoError(t, err)

	eventsBefore := len(h.store.Pending())

	_, err = h.setStatus(h.mediator, d, valueobject.DisputeStatusMediation)
	assert.ErrorIs(t, err, apperror.ErrDisputeClosed)

	_, err = dispute.NewResolveUseCase(h.deps).Execute(ctx,
		dispute.ResolveInput{DisputeID: d.ID, ActorID: h.mediator, Resolution: "возврат"})
	assert.ErrorIs(t, err, apperror.ErrDisputeClosed)

	_, err = dispute.NewUploadEvidenceUseCase(h.deps).Execute(ctx, dispute.UploadEvidenceInput{
		DisputeID: d.ID, ActorID: h.buyer,
		Files: []dispute.FileUpload{{Name: "chat.txt", Reader: strings.NewReader("переписка")}},
	})
	assert.ErrorIs(t, err, apperror.ErrDisputeClosed)

	_, err = h.post(h.seller, d, "поздно")
	assert.ErrorIs(t, err, apperror.ErrDisputeClosed)

	_, err = dispute.NewAssignMediatorUseCase(h.deps).Execute(ctx,
		dispute.AssignMediatorInput{DisputeID: d.ID, ActorID: h.mediator})
	assert.ErrorIs(t, err, apperror.ErrDisputeClosed)

	stored, err := h.deps.Disputes.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusClosed, stored.Status)
	assert.Nil(t, stored.Resolution)

	evidence, err := h.deps.Evidence.ListByDispute(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, evidence)
	messages, err := h.deps.Messages.ListByDispute(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Zero(t, h.blobs.count())
	assert.Len(t, h.store.Pending(), eventsBefore)
}

func TestResolve_WhitespaceIsValidationError(t *testing.T) {
	h := newHarness(t)
	d := h.open(t)
	h.assign(t, d)
	_, err := h.setStatus(h.mediator, d, valueobject.DisputeStatusMediation)
	require.NoError(t, err)

	for _, text := range []string{"", "   ", "\n\t "} {
		_, err := dispute.NewResolveUseCase(h.deps).Execute(context.Background(),
			dispute.ResolveInput{DisputeID: d.ID, ActorID: h.mediator, Resolution: text})
		assert.True(t, apperror.IsValidation(err), "resolution %q", text)
	}

	stored, err := h.deps.Disputes.FindByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusMediation, stored.Status)
	assert.Nil(t, stored.Resolution)
}

func TestResolve_OnlyAssignedMediator(t *testing.T) {
	h := newHarness(t)
	d := h.open(t)
	resolve := dispute.NewResolveUseCase(h.deps)

	_, err := resolve.Execute(context.Background(), dispute.ResolveInput{DisputeID: d.ID, ActorID: h.mediator, Resolution: "ok"})
	assert.True(t, apperror.IsUnauthorized(err))

	h.assign(t, d)
	_, err = resolve.Execute(context.Background(), dispute.ResolveInput{DisputeID: d.ID, ActorID: h.buyer, Resolution: "ok"})
	assert.True(t, apperror.IsUnauthorized(err))
}

func TestUpdateStatus_PartiesBeforeMediation(t *testing.T) {
	h := newHarness(t)
	d := h.open(t)

	updated, err := h.setStatus(h.seller, d, valueobject.DisputeStatusUnderReview)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusUnderReview, updated.Status)

	_, err = h.setStatus(h.buyer, d, valueobject.DisputeStatusOpened)
	require.NoError(t, err)

	_, err = h.setStatus(h.buyer, d, valueobject.DisputeStatusClosed)
	assert.True(t, apperror.IsUnauthorized(err))

	h.assign(t, d)
	_, err = h.setStatus(h.buyer, d, valueobject.DisputeStatusUnderReview)
	assert.True(t, apperror.IsUnauthorized(err))

	// Медиатор может вернуть статус назад для исправления.
	_, err = h.setStatus(h.mediator, d, valueobject.DisputeStatusResolved)
	require.NoError(t, err)
	back, err := h.setStatus(h.mediator, d, valueobject.DisputeStatusUnderReview)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusUnderReview, back.Status)

	_, err = h.setStatus(h.mediator, d, valueobject.DisputeStatus("ARCHIVED"))
	assert.True(t, apperror.IsValidation(err))
}

func TestAssignMediator_Rules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.open(t)
	assign := dispute.NewAssignMediatorUseCase(h.deps)

	_, err := assign.Execute(ctx, dispute.AssignMediatorInput{DisputeID: d.ID, ActorID: h.buyer, MediatorID: h.mediator})
	assert.True(t, apperror.IsUnauthorized(err))

	_, err = assign.Execute(ctx, dispute.AssignMediatorInput{DisputeID: d.ID, ActorID: h.mediator, MediatorID: uuid.New()})
	assert.True(t, apperror.IsValidation(err))

	other := uuid.New()
	h.store.GrantMediator(other)
	h.assign(t, d)
	reassigned, err := assign.Execute(ctx, dispute.AssignMediatorInput{DisputeID: d.ID, ActorID: h.mediator, MediatorID: other})
	require.NoError(t, err)
	assert.Equal(t, other, *reassigned.MediatorID)

	// Событие о переназначении получает и прежний медиатор.
	pending := h.store.Pending()
	last := pending[len(pending)-1]
	assert.Equal(t, event.DisputeMediatorAssigned, last.Name)
	assert.Contains(t, last.Recipients, h.mediator)
	assert.Contains(t, last.Recipients, other)
}

func TestUploadEvidence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.open(t)
	h.assign(t, d)
	upload := dispute.NewUploadEvidenceUseCase(h.deps)

	ev, err := upload.Execute(ctx, dispute.UploadEvidenceInput{
		DisputeID: d.ID, ActorID: h.seller,
		Files: []dispute.FileUpload{
			{Name: "a.txt", Reader: strings.NewReader("первый")},
			{Name: "b.txt", Reader: strings.NewReader("второй")},
		},
	})
	require.NoError(t, err)
	assert.Len(t, ev.Files, 2)
	assert.Equal(t, 2, h.blobs.count())

	_, err = upload.Execute(ctx, dispute.UploadEvidenceInput{
		DisputeID: d.ID, ActorID: h.mediator,
		Files:     []dispute.FileUpload{{Name: "c.txt", Reader: strings.NewReader("медиатор")}},
	})
	assert.True(t, apperror.IsUnauthorized(err))

	_, err = upload.Execute(ctx, dispute.UploadEvidenceInput{DisputeID: d.ID, ActorID: h.buyer})
	assert.True(t, apperror.IsValidation(err))

	h.blobs.saveErr = apperror.Validation("тип файла не поддерживается")
	_, err = upload.Execute(ctx, dispute.UploadEvidenceInput{
		DisputeID: d.ID, ActorID: h.buyer,
		Files:     []dispute.FileUpload{{Name: "x.exe", Reader: strings.NewReader("MZ")}},
	})
	assert.True(t, apperror.IsValidation(err))

	list, err := h.deps.Evidence.ListByDispute(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPostMessage_Permissions(t *testing.T) {
	h := newHarness(t)
	d := h.open(t)

	_, err := h.post(h.mediator, d, "до назначения")
	assert.True(t, apperror.IsUnauthorized(err))

	_, err = h.post(uuid.New(), d, "посторонний")
	assert.True(t, apperror.IsUnauthorized(err))

	_, err = h.post(h.buyer, d, "   ")
	assert.True(t, apperror.IsValidation(err))

	h.assign(t, d)
	msg, err := h.post(h.mediator, d, "Здравствуйте")
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.Seq)
}

func TestGetDispute_Visibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.open(t)
	_, err := h.post(h.buyer, d, "Привет")
	require.NoError(t, err)

	view, err := dispute.NewGetDisputeUseCase(h.deps).Execute(ctx, d.ID, h.buyer)
	require.NoError(t, err)
	assert.Equal(t, []string{access.DisplayBuyer, access.DisplayInitiator}, view.DisplayRoles)
	assert.Len(t, view.Dispute.Messages, 1)

	// Неназначенный медиатор видит спор, но не переписку.
	view, err = dispute.NewGetDisputeUseCase(h.deps).Execute(ctx, d.ID, h.mediator)
	require.NoError(t, err)
	assert.Empty(t, view.Dispute.Messages)

	_, err = dispute.NewGetDisputeUseCase(h.deps).Execute(ctx, d.ID, uuid.New())
	assert.True(t, apperror.IsUnauthorized(err))
}

func TestListDisputes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.open(t)

	unassigned, err := dispute.NewListUnassignedUseCase(h.deps).Execute(ctx, h.mediator, 10, 0)
	require.NoError(t, err)
	require.Len(t, unassigned, 1)
	assert.Equal(t, d.ID, unassigned[0].ID)

	_, err = dispute.NewListUnassignedUseCase(h.deps).Execute(ctx, h.buyer, 10, 0)
	assert.True(t, apperror.IsUnauthorized(err))

	h.assign(t, d)
	list := dispute.NewListDisputesUseCase(h.deps)

	asMediator, err := list.Execute(ctx, h.mediator, repository.DisputeFilter{Role: valueobject.RoleMediator})
	require.NoError(t, err)
	assert.Len(t, asMediator, 1)

	asSeller, err := list.Execute(ctx, h.seller, repository.DisputeFilter{Role: valueobject.RoleFreelancerOrSeller})
	require.NoError(t, err)
	assert.Len(t, asSeller, 1)

	asBuyerFiltered, err := list.Execute(ctx, h.buyer, repository.DisputeFilter{Role: valueobject.RoleFreelancerOrSeller})
	require.NoError(t, err)
	assert.Empty(t, asBuyerFiltered)

	unassigned, err = dispute.NewListUnassignedUseCase(h.deps).Execute(ctx, h.mediator, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, unassigned)
}
