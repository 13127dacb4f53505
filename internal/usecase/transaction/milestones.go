package transaction

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/marketplace-backend/internal/domain/access"
	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/event"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

type AddMilestoneInput struct {
	TransactionID uuid.UUID
	ActorID       uuid.UUID
	Title         string
	Description   string
}

type AddMilestoneUseCase struct {
	engine
}

func NewAddMilestoneUseCase(deps Dependencies, settings Settings) *AddMilestoneUseCase {
	return &AddMilestoneUseCase{engine: newEngine(deps, settings)}
}

// Execute добавляет этап; этапы создаёт исполнитель, пока сделка в работе.
func (uc *AddMilestoneUseCase) Execute(ctx context.Context, input AddMilestoneInput) (*entity.Transaction, error) {
	return uc.mutateMilestones(ctx, input.TransactionID, input.ActorID, access.ActionAddMilestone,
		func(ctx context.Context, t *entity.Transaction, _ valueobject.Role) (*entity.Milestone, error) {
			if t.Status != valueobject.TransactionStatusInProgress {
				return nil, apperror.InvalidTransition(string(t.Status), string(t.Status),
					"этапы добавляются только в сделку в работе")
			}
			m, err := entity.NewMilestone(t.ID, input.Title, input.Description)
			if err != nil {
				return nil, err
			}
			if err := uc.deps.Milestones.Create(ctx, m); err != nil {
				return nil, err
			}
			t.Milestones = append(t.Milestones, *m)
			return m, nil
		})
}

type UpdateMilestoneStatusInput struct {
	TransactionID uuid.UUID
	MilestoneID   uuid.UUID
	ActorID       uuid.UUID
	Status        valueobject.MilestoneStatus
}

type UpdateMilestoneStatusUseCase struct {
	engine
}

func NewUpdateMilestoneStatusUseCase(deps Dependencies, settings Settings) *UpdateMilestoneStatusUseCase {
	return &UpdateMilestoneStatusUseCase{engine: newEngine(deps, settings)}
}

// Execute двигает этап по подавтомату. Кто может закрыть этап, определяет политика вида сделки.
func (uc *UpdateMilestoneStatusUseCase) Execute(ctx context.Context, input UpdateMilestoneStatusInput) (*entity.Transaction, error) {
	return uc.mutateMilestones(ctx, input.TransactionID, input.ActorID, "",
		func(ctx context.Context, t *entity.Transaction, role valueobject.Role) (*entity.Milestone, error) {
			if !isActive(t.Status) {
				return nil, apperror.InvalidTransition(string(t.Status), string(t.Status),
					"этапы меняются только у активной сделки")
			}
			m, err := findMilestone(t, input.MilestoneID)
			if err != nil {
				return nil, err
			}
			policy := uc.settings.Policies.For(t.Kind)
			if err := access.AuthorizeMilestoneMove(role, m.Status, input.Status, policy.MilestoneApproval); err != nil {
				return nil, err
			}
			if err := m.MoveTo(input.Status); err != nil {
				return nil, err
			}
			if err := uc.deps.Milestones.Update(ctx, m); err != nil {
				return nil, err
			}
			return m, nil
		})
}

type UpdateMilestoneProgressInput struct {
	TransactionID uuid.UUID
	MilestoneID   uuid.UUID
	ActorID       uuid.UUID
	Progress      int
}

type UpdateMilestoneProgressUseCase struct {
	engine
}

func NewUpdateMilestoneProgressUseCase(deps Dependencies, settings Settings) *UpdateMilestoneProgressUseCase {
	return &UpdateMilestoneProgressUseCase{engine: newEngine(deps, settings)}
}

func (uc *UpdateMilestoneProgressUseCase) Execute(ctx context.Context, input UpdateMilestoneProgressInput) (*entity.Transaction, error) {
	return uc.mutateMilestones(ctx, input.TransactionID, input.ActorID, access.ActionMilestoneProgress,
		func(ctx context.Context, t *entity.Transaction, _ valueobject.Role) (*entity.Milestone, error) {
			if t.Status != valueobject.TransactionStatusInProgress {
				return nil, apperror.InvalidTransition(string(t.Status), string(t.Status),
					"прогресс этапа меняется только у сделки в работе")
			}
			m, err := findMilestone(t, input.MilestoneID)
			if err != nil {
				return nil, err
			}
			if err := m.SetProgress(input.Progress); err != nil {
				return nil, err
			}
			if err := uc.deps.Milestones.Update(ctx, m); err != nil {
				return nil, err
			}
			return m, nil
		})
}

func isActive(s valueobject.TransactionStatus) bool {
	return s == valueobject.TransactionStatusInProgress || s == valueobject.TransactionStatusPendingCompletion
}

// findMilestone возвращает указатель на этап внутри t.Milestones, чтобы производный прогресс
// сразу учитывал изменение.
func findMilestone(t *entity.Transaction, milestoneID uuid.UUID) (*entity.Milestone, error) {
	for i := range t.Milestones {
		if t.Milestones[i].ID == milestoneID {
			return &t.Milestones[i], nil
		}
	}
	return nil, apperror.ErrMilestoneNotFound
}

// mutateMilestones блокирует сделку, проверяет роль и после изменения этапа сохраняет
// сделку с проверкой версии: этапы линеаризуются вместе с родительской сделкой.
// Пустое action означает, что права проверяет сам mutate. mutate получает ctx транзакции.
func (e engine) mutateMilestones(ctx context.Context, transactionID, actorID uuid.UUID, action access.Action,
	mutate func(ctx context.Context, t *entity.Transaction, role valueobject.Role) (*entity.Milestone, error)) (*entity.Transaction, error) {

	var result *entity.Transaction
	var changed *entity.Milestone
	err := e.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, role, err := e.lockWithRole(ctx, transactionID, actorID)
		if err != nil {
			return err
		}
		if action != "" {
			if err := access.AuthorizeTransaction(role, action); err != nil {
				return err
			}
		} else if !role.IsParty() {
			return apperror.Unauthorized("TRANSACTION_PARTY", "этапы меняют только стороны сделки")
		}

		m, err := mutate(ctx, t, role)
		if err != nil {
			return err
		}
		if err := e.deps.Transactions.Update(ctx, t); err != nil {
			return err
		}
		result, changed = t, m
		return e.events.Record(ctx, event.MilestoneUpdated, event.AggregateTransaction, t.ID, t.Parties(),
			event.MilestonePayload{
				TransactionID: t.ID,
				MilestoneID:   m.ID,
				Status:        string(m.Status),
				Progress:      int(m.Progress),
				Overall:       e.progress(t),
			})
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"transaction_id": result.ID,
		"milestone_id":   changed.ID,
		"status":         changed.Status,
	}).Info("этап обновлён")
	return result, nil
}
