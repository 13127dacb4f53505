package handler

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/interface/http/dto"
	"github.com/ignatzorin/marketplace-backend/internal/interface/http/response"
	"github.com/ignatzorin/marketplace-backend/internal/usecase/dispute"
)

// evidenceField: имя поля multipart-формы с файлами доказательств.
const evidenceField = "evidence"

// FileOpener открывает сохранённый файл доказательства по ключу.
type FileOpener interface {
	Open(ctx context.Context, key string) (*os.File, error)
}

type DisputeHandler struct {
	files          FileOpener
	maxUploadBytes int64

	open           *dispute.OpenDisputeUseCase
	assignMediator *dispute.AssignMediatorUseCase
	updateStatus   *dispute.UpdateStatusUseCase
	resolve        *dispute.ResolveUseCase
	uploadEvidence *dispute.UploadEvidenceUseCase
	postMessage    *dispute.PostMessageUseCase
	get            *dispute.GetDisputeUseCase
	list           *dispute.ListDisputesUseCase
	listUnassigned *dispute.ListUnassignedUseCase
}

func NewDisputeHandler(deps dispute.Dependencies, files FileOpener, maxUploadMB int64) *DisputeHandler {
	return &DisputeHandler{
		files:          files,
		maxUploadBytes: maxUploadMB << 20,

		open:           dispute.NewOpenDisputeUseCase(deps),
		assignMediator: dispute.NewAssignMediatorUseCase(deps),
		updateStatus:   dispute.NewUpdateStatusUseCase(deps),
		resolve:        dispute.NewResolveUseCase(deps),
		uploadEvidence: dispute.NewUploadEvidenceUseCase(deps),
		postMessage:    dispute.NewPostMessageUseCase(deps),
		get:            dispute.NewGetDisputeUseCase(deps),
		list:           dispute.NewListDisputesUseCase(deps),
		listUnassigned: dispute.NewListUnassignedUseCase(deps),
	}
}

// Open обрабатывает POST /api/transactions/:id/disputes.
func (h *DisputeHandler) Open(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	txID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.OpenDisputeRequest
	if !bindJSON(c, &req) {
		return
	}

	d, err := h.open.Execute(c.Request.Context(), dispute.OpenInput{
		TransactionID: txID,
		ActorID:       userID,
		Reason:        req.Reason,
		Description:   req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToDisputeResponse(d))
}

func (h *DisputeHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	view, err := h.get.Execute(c.Request.Context(), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDisputeView(view))
}

// List обрабатывает GET /api/disputes?role=&status=&limit=&offset=.
func (h *DisputeHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	var role valueobject.Role
	if raw := c.Query("role"); raw != "" {
		r, err := valueobject.NewRole(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		role = r
	}

	items, err := h.list.Execute(c.Request.Context(), userID, repository.DisputeFilter{
		Role:   role,
		Status: valueobject.DisputeStatus(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, dto.ToDisputeResponses(items), limit, offset)
}

// ListUnassigned: очередь споров без медиатора.
func (h *DisputeHandler) ListUnassigned(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	items, err := h.listUnassigned.Execute(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, dto.ToDisputeResponses(items), limit, offset)
}

func (h *DisputeHandler) AssignMediator(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.AssignMediatorRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}

	mediatorID := userID
	if req.MediatorID != "" {
		parsed, err := uuid.Parse(req.MediatorID)
		if err != nil {
			response.BadRequest(c, "некорректный mediator_id")
			return
		}
		mediatorID = parsed
	}

	d, err := h.assignMediator.Execute(c.Request.Context(), dispute.AssignMediatorInput{
		DisputeID:  id,
		ActorID:    userID,
		MediatorID: mediatorID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDisputeResponse(d))
}

func (h *DisputeHandler) UpdateStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.StatusRequest
	if !bindJSON(c, &req) {
		return
	}
	status, err := valueobject.NewDisputeStatus(req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	d, err := h.updateStatus.Execute(c.Request.Context(), dispute.UpdateStatusInput{
		DisputeID: id,
		ActorID:   userID,
		Status:    status,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDisputeResponse(d))
}

func (h *DisputeHandler) Resolve(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ResolveRequest
	if !bindJSON(c, &req) {
		return
	}

	d, err := h.resolve.Execute(c.Request.Context(), dispute.ResolveInput{
		DisputeID:  id,
		ActorID:    userID,
		Resolution: req.Resolution,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDisputeResponse(d))
}

// UploadEvidence принимает multipart-форму с одним или несколькими файлами в поле evidence.
func (h *DisputeHandler) UploadEvidence(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes*4)
	form, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, "ожидается multipart/form-data")
		return
	}
	headers := form.File[evidenceField]
	if len(headers) == 0 {
		response.Validation(c, "нужно приложить хотя бы один файл")
		return
	}

	uploads := make([]dispute.FileUpload, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		if fh.Size > h.maxUploadBytes {
			response.Validation(c, fmt.Sprintf("файл %s превышает лимит %d байт", fh.Filename, h.maxUploadBytes))
			return
		}
		f, err := fh.Open()
		if err != nil {
			response.BadRequest(c, "не удалось прочитать файл")
			return
		}
		opened = append(opened, f)
		uploads = append(uploads, dispute.FileUpload{Name: fh.Filename, Reader: f})
	}

	ev, err := h.uploadEvidence.Execute(c.Request.Context(), dispute.UploadEvidenceInput{
		DisputeID: id,
		ActorID:   userID,
		Files:     uploads,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToEvidenceResponse(ev))
}

func (h *DisputeHandler) PostMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.MessageRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.postMessage.Execute(c.Request.Context(), dispute.PostMessageInput{
		DisputeID: id,
		ActorID:   userID,
		Text:      req.Text,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToMessageResponse(msg))
}

// DownloadFile отдаёт файл доказательства тем, кому виден спор.
func (h *DisputeHandler) DownloadFile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	key := strings.TrimPrefix(c.Param("key"), "/")

	view, err := h.get.Execute(c.Request.Context(), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	ref, found := findFile(view.Dispute, key)
	if !found {
		response.NotFound(c, "файл не найден")
		return
	}

	f, err := h.files.Open(c.Request.Context(), ref.Key)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer f.Close()

	c.DataFromReader(http.StatusOK, ref.Size, ref.ContentType, f, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename=%q`, ref.Name),
	})
}

func findFile(d *entity.Dispute, key string) (entity.FileRef, bool) {
	for _, ev := range d.Evidence {
		for _, f := range ev.Files {
			if f.Key == key {
				return f, true
			}
		}
	}
	return entity.FileRef{}, false
}
