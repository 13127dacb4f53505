package dispute

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/marketplace-backend/internal/domain/access"
	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/event"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

// FileUpload: файл доказательства, ещё не сохранённый в хранилище.
type FileUpload struct {
	Name   string
	Reader io.Reader
}

type UploadEvidenceInput struct {
	DisputeID uuid.UUID
	ActorID   uuid.UUID
	Files     []FileUpload
}

type UploadEvidenceUseCase struct {
	engine
}

func NewUploadEvidenceUseCase(deps Dependencies) *UploadEvidenceUseCase {
	return &UploadEvidenceUseCase{engine: newEngine(deps)}
}

// Execute сохраняет файлы и добавляет одну запись доказательств. Проверки повторяются
// внутри транзакции; при ошибке сохранённые файлы удаляются.
func (uc *UploadEvidenceUseCase) Execute(ctx context.Context, input UploadEvidenceInput) (*entity.Evidence, error) {
	if len(input.Files) == 0 {
		return nil, apperror.Validation("нужно приложить хотя бы один файл")
	}
	if err := uc.check(ctx, input.DisputeID, input.ActorID); err != nil {
		return nil, err
	}

	refs := make([]entity.FileRef, 0, len(input.Files))
	for _, f := range input.Files {
		ref, err := uc.deps.Blobs.Save(ctx, input.DisputeID, f.Name, f.Reader)
		if err != nil {
			uc.cleanup(ctx, refs)
			return nil, err
		}
		refs = append(refs, ref)
	}

	var result *entity.Evidence
	err := uc.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		s, err := uc.lock(ctx, input.DisputeID, input.ActorID)
		if err != nil {
			return err
		}
		if err := uc.guard(s); err != nil {
			return err
		}
		ev, err := entity.NewEvidence(s.dispute.ID, s.actor.ID, refs)
		if err != nil {
			return err
		}
		if err := uc.deps.Evidence.Append(ctx, ev); err != nil {
			return err
		}
		result = ev
		return uc.events.Record(ctx, event.DisputeEvidenceAdded, event.AggregateDispute, s.dispute.ID,
			recipients(s.dispute, s.tx), event.EvidencePayload{
				DisputeID:  s.dispute.ID,
				EvidenceID: ev.ID,
				UploaderID: ev.UploaderID,
				Files:      len(ev.Files),
			})
	})
	if err != nil {
		uc.cleanup(ctx, refs)
		return nil, err
	}

	uc.log.WithFields(logrus.Fields{
		"dispute_id": input.DisputeID,
		"actor_id":   input.ActorID,
		"files":      len(refs),
	}).Info("доказательства загружены")
	return result, nil
}

func (uc *UploadEvidenceUseCase) check(ctx context.Context, disputeID, actorID uuid.UUID) error {
	d, err := uc.deps.Disputes.FindByID(ctx, disputeID)
	if err != nil {
		return err
	}
	s, err := uc.load(ctx, d, actorID)
	if err != nil {
		return err
	}
	return uc.guard(s)
}

func (uc *UploadEvidenceUseCase) guard(s *scope) error {
	if err := s.dispute.EnsureMutable(); err != nil {
		return err
	}
	return access.AuthorizeEvidence(s.actor, s.tx)
}

func (uc *UploadEvidenceUseCase) cleanup(ctx context.Context, refs []entity.FileRef) {
	for _, ref := range refs {
		if err := uc.deps.Blobs.Delete(ctx, ref.Key); err != nil {
			uc.log.WithError(err).WithField("key", ref.Key).Warn("не удалось удалить файл доказательства")
		}
	}
}

type PostMessageInput struct {
	DisputeID uuid.UUID
	ActorID   uuid.UUID
	Text      string
}

type PostMessageUseCase struct {
	engine
}

func NewPostMessageUseCase(deps Dependencies) *PostMessageUseCase {
	return &PostMessageUseCase{engine: newEngine(deps)}
}

// Execute добавляет сообщение в переписку. Порядок задаёт Seq, назначенный хранилищем.
func (uc *PostMessageUseCase) Execute(ctx context.Context, input PostMessageInput) (*entity.MediationMessage, error) {
	var result *entity.MediationMessage
	err := uc.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		s, err := uc.lock(ctx, input.DisputeID, input.ActorID)
		if err != nil {
			return err
		}
		if err := s.dispute.EnsureMutable(); err != nil {
			return err
		}
		if err := access.AuthorizeMessage(s.actor, s.dispute, s.tx); err != nil {
			return err
		}
		msg, err := entity.NewMediationMessage(s.dispute.ID, s.actor.ID, input.Text)
		if err != nil {
			return err
		}
		if err := uc.deps.Messages.Append(ctx, msg); err != nil {
			return err
		}
		result = msg
		return uc.events.Record(ctx, event.DisputeMessagePosted, event.AggregateDispute, s.dispute.ID,
			recipients(s.dispute, s.tx), event.MessagePayload{
				DisputeID: s.dispute.ID,
				MessageID: msg.ID,
				SenderID:  msg.SenderID,
				Text:      msg.Text,
				Seq:       msg.Seq,
				CreatedAt: msg.CreatedAt,
			})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
