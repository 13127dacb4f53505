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

type ApplyInput struct {
	JobID        uuid.UUID
	FreelancerID uuid.UUID
	Proposal     string
	Bid          float64
	Timeline     string
}

type ApplyUseCase struct {
	engine
}

func NewApplyUseCase(deps Dependencies, settings Settings) *ApplyUseCase {
	return &ApplyUseCase{engine: newEngine(deps, settings)}
}

func (uc *ApplyUseCase) Execute(ctx context.Context, input ApplyInput) (*entity.Application, error) {
	var result *entity.Application
	err := uc.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		job, err := uc.deps.Transactions.FindByIDForUpdate(ctx, input.JobID)
		if err != nil {
			return err
		}
		if job.Kind != valueobject.KindJob {
			return apperror.Validation("откликаться можно только на вакансии")
		}
		if job.Status != valueobject.TransactionStatusOpen || job.HasCounterparty() {
			return apperror.InvalidTransition(string(job.Status), string(job.Status), "вакансия больше не принимает отклики")
		}
		if job.IsPayer(input.FreelancerID) {
			return apperror.Validation("нельзя откликнуться на собственную вакансию")
		}

		exists, err := uc.deps.Applications.ExistsForFreelancer(ctx, job.ID, input.FreelancerID)
		if err != nil {
			return err
		}
		if exists {
			return apperror.Validation("вы уже откликнулись на эту вакансию")
		}

		app, err := entity.NewApplication(job.ID, input.FreelancerID, input.Proposal, input.Bid, input.Timeline)
		if err != nil {
			return err
		}
		if err := uc.deps.Applications.Create(ctx, app); err != nil {
			return err
		}
		result = app
		return uc.recordApplication(ctx, job, app)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e engine) recordApplication(ctx context.Context, job *entity.Transaction, app *entity.Application) error {
	return e.events.Record(ctx, event.ApplicationStatusChanged, event.AggregateTransaction, job.ID,
		[]uuid.UUID{job.ClientID, app.FreelancerID},
		event.ApplicationPayload{
			ApplicationID: app.ID,
			JobID:         job.ID,
			FreelancerID:  app.FreelancerID,
			Status:        string(app.Status),
		})
}

type ReviewApplicationInput struct {
	ApplicationID uuid.UUID
	ClientID      uuid.UUID
}

// AcceptResult: принятая заявка, сделка после привязки исполнителя и отклонённые каскадом заявки.
type AcceptResult struct {
	Application *entity.Application
	Transaction *entity.Transaction
	Rejected    []*entity.Application
}

type AcceptApplicationUseCase struct {
	engine
}

func NewAcceptApplicationUseCase(deps Dependencies, settings Settings) *AcceptApplicationUseCase {
	return &AcceptApplicationUseCase{engine: newEngine(deps, settings)}
}

// Execute принимает заявку, отклоняет остальные ожидающие заявки по вакансии
// и закрепляет исполнителя. Всё выполняется атомарно.
func (uc *AcceptApplicationUseCase) Execute(ctx context.Context, input ReviewApplicationInput) (*AcceptResult, error) {
	result := &AcceptResult{}
	err := uc.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		app, err := uc.deps.Applications.FindByID(ctx, input.ApplicationID)
		if err != nil {
			return err
		}
		job, role, err := uc.lockWithRole(ctx, app.JobID, input.ClientID)
		if err != nil {
			return err
		}
		if err := access.AuthorizeTransaction(role, access.ActionReviewApplication); err != nil {
			return err
		}

		// Перечитываем заявку после блокировки вакансии.
		app, err = uc.deps.Applications.FindByID(ctx, input.ApplicationID)
		if err != nil {
			return err
		}
		if err := app.Accept(); err != nil {
			return err
		}
		if err := job.BindCounterparty(app.FreelancerID); err != nil {
			return err
		}
		if err := uc.deps.Applications.Update(ctx, app); err != nil {
			return err
		}
		if err := uc.recordApplication(ctx, job, app); err != nil {
			return err
		}

		siblings, err := uc.deps.Applications.ListByJob(ctx, job.ID)
		if err != nil {
			return err
		}
		for _, sibling := range siblings {
			if sibling.ID == app.ID || !sibling.IsPending() {
				continue
			}
			if err := sibling.Reject(); err != nil {
				return err
			}
			if err := uc.deps.Applications.Update(ctx, sibling); err != nil {
				return err
			}
			if err := uc.recordApplication(ctx, job, sibling); err != nil {
				return err
			}
			result.Rejected = append(result.Rejected, sibling)
		}

		from := job.Status
		if uc.settings.AutoStartOnAccept {
			if err := uc.ensureNotFrozen(ctx, job, valueobject.TransactionStatusInProgress); err != nil {
				return err
			}
			if err := job.Start(); err != nil {
				return err
			}
		}
		if err := uc.deps.Transactions.Update(ctx, job); err != nil {
			return err
		}
		if job.Status != from {
			if err := uc.recordStatus(ctx, job, from, input.ClientID); err != nil {
				return err
			}
		}

		result.Application = app
		result.Transaction = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.WithFields(logrus.Fields{
		"transaction_id": result.Transaction.ID,
		"application_id": result.Application.ID,
		"rejected":       len(result.Rejected),
	}).Info("заявка принята")
	return result, nil
}

type RejectApplicationUseCase struct {
	engine
}

func NewRejectApplicationUseCase(deps Dependencies, settings Settings) *RejectApplicationUseCase {
	return &RejectApplicationUseCase{engine: newEngine(deps, settings)}
}

func (uc *RejectApplicationUseCase) Execute(ctx context.Context, input ReviewApplicationInput) (*entity.Application, error) {
	var result *entity.Application
	err := uc.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		app, err := uc.deps.Applications.FindByID(ctx, input.ApplicationID)
		if err != nil {
			return err
		}
		job, role, err := uc.lockWithRole(ctx, app.JobID, input.ClientID)
		if err != nil {
			return err
		}
		if err := access.AuthorizeTransaction(role, access.ActionReviewApplication); err != nil {
			return err
		}
		if err := app.Reject(); err != nil {
			return err
		}
		if err := uc.deps.Applications.Update(ctx, app); err != nil {
			return err
		}
		result = app
		return uc.recordApplication(ctx, job, app)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type ListApplicationsUseCase struct {
	engine
}

func NewListApplicationsUseCase(deps Dependencies, settings Settings) *ListApplicationsUseCase {
	return &ListApplicationsUseCase{engine: newEngine(deps, settings)}
}

// Execute: автор вакансии видит все отклики, фрилансер — только свой.
func (uc *ListApplicationsUseCase) Execute(ctx context.Context, jobID, actorID uuid.UUID) ([]*entity.Application, error) {
	job, err := uc.deps.Transactions.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	apps, err := uc.deps.Applications.ListByJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if job.IsPayer(actorID) {
		return apps, nil
	}

	own := make([]*entity.Application, 0, 1)
	for _, a := range apps {
		if a.FreelancerID == actorID {
			own = append(own, a)
		}
	}
	if len(own) == 0 {
		return nil, apperror.Unauthorized(string(valueobject.RoleClientOrBuyer), "отклики доступны автору вакансии")
	}
	return own, nil
}
