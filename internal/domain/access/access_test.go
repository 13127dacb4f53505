package access_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/marketplace-backend/internal/domain/access"
	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

type fixture struct {
	buyer, seller, mediator, other entity.Actor
	tx                             *entity.Transaction
	dispute                        *entity.Dispute
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		buyer:    entity.Actor{ID: uuid.New()},
		seller:   entity.Actor{ID: uuid.New()},
		mediator: entity.Actor{ID: uuid.New(), IsMediator: true},
		other:    entity.Actor{ID: uuid.New()},
	}
	tx, err := entity.NewGigOrder(f.buyer.ID, f.seller.ID, uuid.New(), "Логотип", 150)
	require.NoError(t, err)
	d, err := entity.NewDispute(tx.ID, f.buyer.ID, "Работа не сдана", "")
	require.NoError(t, err)
	f.tx, f.dispute = tx, d
	return f
}

func TestTransactionRole(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		actor entity.Actor
		want  valueobject.Role
	}{
		{"buyer", f.buyer, valueobject.RoleClientOrBuyer},
		{"seller", f.seller, valueobject.RoleFreelancerOrSeller},
		{"mediator", f.mediator, valueobject.RoleMediator},
		{"stranger", f.other, valueobject.RoleUnrelated},
		{"buyer with mediator flag stays buyer", entity.Actor{ID: f.buyer.ID, IsMediator: true}, valueobject.RoleClientOrBuyer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, access.TransactionRole(tt.actor, f.tx))
		})
	}
}

func TestTransactionRole_JobWithoutCounterparty(t *testing.T) {
	client := uuid.New()
	job, err := entity.NewJob(client, "Сайт", 500)
	require.NoError(t, err)

	assert.Equal(t, valueobject.RoleClientOrBuyer, access.TransactionRole(entity.Actor{ID: client}, job))
	assert.Equal(t, valueobject.RoleUnrelated, access.TransactionRole(entity.Actor{ID: uuid.New()}, job))
}

func TestAuthorizeTransaction(t *testing.T) {
	assert.NoError(t, access.AuthorizeTransaction(valueobject.RoleClientOrBuyer, access.ActionApproveCompletion))

	err := access.AuthorizeTransaction(valueobject.RoleFreelancerOrSeller, access.ActionApproveCompletion)
	require.Error(t, err)
	assert.True(t, apperror.IsUnauthorized(err))

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, string(valueobject.RoleClientOrBuyer), appErr.Details["required_role"])

	assert.Error(t, access.AuthorizeTransaction(valueobject.RoleMediator, access.ActionCancel))
	assert.NoError(t, access.AuthorizeTransaction(valueobject.RoleFreelancerOrSeller, access.ActionRequestCompletion))
}

func TestAuthorizeMilestoneMove(t *testing.T) {
	const (
		payer     = valueobject.RoleClientOrBuyer
		performer = valueobject.RoleFreelancerOrSeller
		self      = valueobject.MilestoneApprovalSelf
		gate      = valueobject.MilestoneApprovalPayer
	)
	var (
		pending  = valueobject.MilestoneStatusPending
		working  = valueobject.MilestoneStatusInProgress
		awaiting = valueobject.MilestoneStatusPendingCompletion
		done     = valueobject.MilestoneStatusCompleted
	)

	tests := []struct {
		name     string
		role     valueobject.Role
		from, to valueobject.MilestoneStatus
		policy   valueobject.MilestoneApproval
		check    func(error) bool
	}{
		{"performer starts", performer, pending, working, gate, nil},
		{"payer cannot start", payer, pending, working, gate, apperror.IsUnauthorized},
		{"performer requests approval", performer, working, awaiting, gate, nil},
		{"self policy: performer completes directly", performer, working, done, self, nil},
		{"payer policy: direct completion is not an edge", performer, working, done, gate, apperror.IsInvalidTransition},
		{"payer policy: payer approves", payer, awaiting, done, gate, nil},
		{"payer policy: performer cannot approve", performer, awaiting, done, gate, apperror.IsUnauthorized},
		{"self policy: performer approves own", performer, awaiting, done, self, nil},
		{"payer bounces back", payer, awaiting, working, gate, nil},
		{"skipping start is rejected", performer, pending, done, self, apperror.IsInvalidTransition},
		{"stranger", valueobject.RoleUnrelated, pending, working, self, apperror.IsUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := access.AuthorizeMilestoneMove(tt.role, tt.from, tt.to, tt.policy)
			if tt.check == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
}

func TestDisputeRole(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, valueobject.RoleClientOrBuyer, access.DisputeRole(f.buyer, f.dispute, f.tx))
	assert.Equal(t, valueobject.RoleMediator, access.DisputeRole(f.mediator, f.dispute, f.tx))
	assert.Equal(t, valueobject.RoleUnrelated, access.DisputeRole(f.other, f.dispute, f.tx))

	require.NoError(t, f.dispute.AssignMediator(f.mediator.ID))
	assert.True(t, access.IsAssignedMediator(f.mediator, f.dispute, f.tx))
	assert.False(t, access.IsAssignedMediator(entity.Actor{ID: uuid.New(), IsMediator: true}, f.dispute, f.tx))
}

func TestAuthorizeDisputeStatus_BeforeMediator(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, access.AuthorizeDisputeStatus(f.seller, f.dispute, f.tx, valueobject.DisputeStatusUnderReview))
	assert.NoError(t, access.AuthorizeDisputeStatus(f.buyer, f.dispute, f.tx, valueobject.DisputeStatusOpened))

	for _, target := range []valueobject.DisputeStatus{
		valueobject.DisputeStatusMediation,
		valueobject.DisputeStatusResolved,
		valueobject.DisputeStatusClosed,
	} {
		err := access.AuthorizeDisputeStatus(f.buyer, f.dispute, f.tx, target)
		assert.True(t, apperror.IsUnauthorized(err), "target %s", target)
	}

	// Медиатор без назначения статус не меняет.
	assert.True(t, apperror.IsUnauthorized(
		access.AuthorizeDisputeStatus(f.mediator, f.dispute, f.tx, valueobject.DisputeStatusUnderReview)))
	assert.True(t, apperror.IsUnauthorized(
		access.AuthorizeDisputeStatus(f.other, f.dispute, f.tx, valueobject.DisputeStatusUnderReview)))
}

func TestAuthorizeDisputeStatus_AfterMediator(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dispute.AssignMediator(f.mediator.ID))

	for _, target := range valueobject.DisputeStatuses {
		assert.NoError(t, access.AuthorizeDisputeStatus(f.mediator, f.dispute, f.tx, target))
	}
	assert.True(t, apperror.IsUnauthorized(
		access.AuthorizeDisputeStatus(f.buyer, f.dispute, f.tx, valueobject.DisputeStatusUnderReview)))

	// После эскалации в MEDIATION стороны не могут вернуть статус назад.
	require.NoError(t, f.dispute.SetStatus(valueobject.DisputeStatusMediation))
	assert.True(t, apperror.IsUnauthorized(
		access.AuthorizeDisputeStatus(f.seller, f.dispute, f.tx, valueobject.DisputeStatusOpened)))
}

func TestAuthorizeAssignMediator(t *testing.T) {
	f := newFixture(t)
	other := entity.Actor{ID: uuid.New(), IsMediator: true}

	assert.NoError(t, access.AuthorizeAssignMediator(f.mediator, f.tx, f.mediator))
	assert.NoError(t, access.AuthorizeAssignMediator(f.mediator, f.tx, other))
	assert.True(t, apperror.IsUnauthorized(access.AuthorizeAssignMediator(f.buyer, f.tx, f.mediator)))
	assert.True(t, apperror.IsValidation(access.AuthorizeAssignMediator(f.mediator, f.tx, f.other)))

	flaggedBuyer := entity.Actor{ID: f.buyer.ID, IsMediator: true}
	assert.True(t, apperror.IsUnauthorized(access.AuthorizeAssignMediator(flaggedBuyer, f.tx, f.mediator)))
	assert.True(t, apperror.IsValidation(access.AuthorizeAssignMediator(f.mediator, f.tx, flaggedBuyer)))
}

func TestEvidenceAndMessages(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dispute.AssignMediator(f.mediator.ID))

	assert.NoError(t, access.AuthorizeEvidence(f.buyer, f.tx))
	assert.NoError(t, access.AuthorizeEvidence(f.seller, f.tx))
	assert.True(t, apperror.IsUnauthorized(access.AuthorizeEvidence(f.mediator, f.tx)))

	assert.NoError(t, access.AuthorizeMessage(f.mediator, f.dispute, f.tx))
	assert.NoError(t, access.AuthorizeMessage(f.seller, f.dispute, f.tx))
	assert.True(t, apperror.IsUnauthorized(access.AuthorizeMessage(entity.Actor{ID: uuid.New(), IsMediator: true}, f.dispute, f.tx)))
	assert.True(t, apperror.IsUnauthorized(access.AuthorizeMessage(f.other, f.dispute, f.tx)))
}

func TestDisplayRoles(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dispute.AssignMediator(f.mediator.ID))

	assert.Equal(t, []string{access.DisplayBuyer, access.DisplayInitiator}, access.DisplayRoles(f.buyer, f.dispute, f.tx))
	assert.Equal(t, []string{access.DisplaySeller}, access.DisplayRoles(f.seller, f.dispute, f.tx))
	assert.Equal(t, []string{access.DisplayMediator}, access.DisplayRoles(f.mediator, f.dispute, f.tx))
	assert.Empty(t, access.DisplayRoles(f.other, f.dispute, f.tx))
}
