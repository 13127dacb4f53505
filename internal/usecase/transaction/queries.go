package transaction

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/domain/access"
	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

// View: сделка с вычисленным прогрессом и ролью запрашивающего.
type View struct {
	Transaction *entity.Transaction
	Progress    int
	Role        valueobject.Role
}

type GetTransactionUseCase struct {
	engine
}

func NewGetTransactionUseCase(deps Dependencies, settings Settings) *GetTransactionUseCase {
	return &GetTransactionUseCase{engine: newEngine(deps, settings)}
}

// Execute: сделку видят её стороны и медиаторы.
func (uc *GetTransactionUseCase) Execute(ctx context.Context, transactionID, actorID uuid.UUID) (*View, error) {
	t, err := uc.deps.Transactions.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	actor, err := uc.deps.Identity.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	role := access.TransactionRole(actor, t)
	if role == valueobject.RoleUnrelated {
		return nil, apperror.Unauthorized("TRANSACTION_PARTY", "нет доступа к сделке")
	}
	return uc.view(t, role), nil
}

func (e engine) view(t *entity.Transaction, role valueobject.Role) *View {
	return &View{Transaction: t, Progress: e.progress(t), Role: role}
}

type ListTransactionsUseCase struct {
	engine
}

func NewListTransactionsUseCase(deps Dependencies, settings Settings) *ListTransactionsUseCase {
	return &ListTransactionsUseCase{engine: newEngine(deps, settings)}
}

func (uc *ListTransactionsUseCase) Execute(ctx context.Context, actorID uuid.UUID, filter repository.TransactionFilter) ([]*View, error) {
	if filter.Role != "" && !filter.Role.IsParty() {
		return nil, apperror.Validation("фильтр роли: CLIENT_OR_BUYER или FREELANCER_OR_SELLER")
	}
	items, err := uc.deps.Transactions.ListForActor(ctx, actorID, filter)
	if err != nil {
		return nil, err
	}
	views := make([]*View, 0, len(items))
	for _, t := range items {
		role := valueobject.RoleClientOrBuyer
		if t.IsPerformer(actorID) {
			role = valueobject.RoleFreelancerOrSeller
		}
		views = append(views, uc.view(t, role))
	}
	return views, nil
}
