package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/interface/http/dto"
	"github.com/ignatzorin/marketplace-backend/internal/interface/http/response"
	"github.com/ignatzorin/marketplace-backend/internal/usecase/transaction"
)

// TransactionHandler: действия над сделками, заявками и этапами.
type TransactionHandler struct {
	baseline int

	createJob         *transaction.CreateJobUseCase
	placeGigOrder     *transaction.PlaceGigOrderUseCase
	confirmPayment    *transaction.ConfirmPaymentUseCase
	startWork         *transaction.StartWorkUseCase
	requestCompletion *transaction.RequestCompletionUseCase
	approveCompletion *transaction.ApproveCompletionUseCase
	rejectCompletion  *transaction.RejectCompletionUseCase
	cancel            *transaction.CancelUseCase
	setProgress       *transaction.SetProgressUseCase
	get               *transaction.GetTransactionUseCase
	list              *transaction.ListTransactionsUseCase

	apply             *transaction.ApplyUseCase
	acceptApplication *transaction.AcceptApplicationUseCase
	rejectApplication *transaction.RejectApplicationUseCase
	listApplications  *transaction.ListApplicationsUseCase

	addMilestone            *transaction.AddMilestoneUseCase
	updateMilestoneStatus   *transaction.UpdateMilestoneStatusUseCase
	updateMilestoneProgress *transaction.UpdateMilestoneProgressUseCase
}

func NewTransactionHandler(deps transaction.Dependencies, settings transaction.Settings) *TransactionHandler {
	return &TransactionHandler{
		baseline: settings.ProgressBaseline,

		createJob:         transaction.NewCreateJobUseCase(deps, settings),
		placeGigOrder:     transaction.NewPlaceGigOrderUseCase(deps, settings),
		confirmPayment:    transaction.NewConfirmPaymentUseCase(deps, settings),
		startWork:         transaction.NewStartWorkUseCase(deps, settings),
		requestCompletion: transaction.NewRequestCompletionUseCase(deps, settings),
		approveCompletion: transaction.NewApproveCompletionUseCase(deps, settings),
		rejectCompletion:  transaction.NewRejectCompletionUseCase(deps, settings),
		cancel:            transaction.NewCancelUseCase(deps, settings),
		setProgress:       transaction.NewSetProgressUseCase(deps, settings),
		get:               transaction.NewGetTransactionUseCase(deps, settings),
		list:              transaction.NewListTransactionsUseCase(deps, settings),

		apply:             transaction.NewApplyUseCase(deps, settings),
		acceptApplication: transaction.NewAcceptApplicationUseCase(deps, settings),
		rejectApplication: transaction.NewRejectApplicationUseCase(deps, settings),
		listApplications:  transaction.NewListApplicationsUseCase(deps, settings),

		addMilestone:            transaction.NewAddMilestoneUseCase(deps, settings),
		updateMilestoneStatus:   transaction.NewUpdateMilestoneStatusUseCase(deps, settings),
		updateMilestoneProgress: transaction.NewUpdateMilestoneProgressUseCase(deps, settings),
	}
}

func (h *TransactionHandler) respond(c *gin.Context, t *entity.Transaction) {
	response.Success(c, dto.ToTransactionResponse(t, t.OverallProgress(h.baseline), ""))
}

// CreateJob обрабатывает POST /api/jobs.
func (h *TransactionHandler) CreateJob(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req dto.CreateJobRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.createJob.Execute(c.Request.Context(), transaction.CreateJobInput{
		ClientID: userID,
		Title:    req.Title,
		Budget:   req.Budget,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToTransactionResponse(t, t.OverallProgress(h.baseline), string(valueobject.RoleClientOrBuyer)))
}

// PlaceGigOrder обрабатывает POST /api/gig-orders.
func (h *TransactionHandler) PlaceGigOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req dto.PlaceGigOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	sellerID, err := uuid.Parse(req.SellerID)
	if err != nil {
		response.BadRequest(c, "некорректный seller_id")
		return
	}
	gigID, err := uuid.Parse(req.GigID)
	if err != nil {
		response.BadRequest(c, "некорректный gig_id")
		return
	}

	t, err := h.placeGigOrder.Execute(c.Request.Context(), transaction.PlaceGigOrderInput{
		BuyerID:  userID,
		SellerID: sellerID,
		GigID:    gigID,
		Title:    req.Title,
		Price:    req.Price,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToTransactionResponse(t, t.OverallProgress(h.baseline), string(valueobject.RoleClientOrBuyer)))
}

// ConfirmPayment: внутренний вызов платёжного сервиса, переводит заказ услуги в работу.
func (h *TransactionHandler) ConfirmPayment(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	t, err := h.confirmPayment.Execute(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, t)
}

func (h *TransactionHandler) Get(c *gin.Context) {
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
	response.Success(c, dto.ToTransactionView(view))
}

// List обрабатывает GET /api/transactions?role=&kind=&status=&limit=&offset=.
func (h *TransactionHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)
	filter := repository.TransactionFilter{
		Role:   valueobject.Role(c.Query("role")),
		Kind:   valueobject.TransactionKind(c.Query("kind")),
		Status: valueobject.TransactionStatus(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	}
	if filter.Kind != "" && !filter.Kind.IsValid() {
		response.Validation(c, "некорректный тип сделки")
		return
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		response.Validation(c, "некорректный статус сделки")
		return
	}

	views, err := h.list.Execute(c.Request.Context(), userID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]dto.TransactionResponse, 0, len(views))
	for _, v := range views {
		out = append(out, dto.ToTransactionView(v))
	}
	response.List(c, out, limit, offset)
}

type actionFunc func(ctx context.Context, input transaction.ActionInput) (*entity.Transaction, error)

func (h *TransactionHandler) action(fn actionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		t, err := fn(c.Request.Context(), transaction.ActionInput{TransactionID: id, ActorID: userID})
		if err != nil {
			response.Error(c, err)
			return
		}
		h.respond(c, t)
	}
}

func (h *TransactionHandler) StartWork() gin.HandlerFunc {
	return h.action(h.startWork.Execute)
}

func (h *TransactionHandler) RequestCompletion() gin.HandlerFunc {
	return h.action(h.requestCompletion.Execute)
}

func (h *TransactionHandler) ApproveCompletion() gin.HandlerFunc {
	return h.action(h.approveCompletion.Execute)
}

func (h *TransactionHandler) RejectCompletion() gin.HandlerFunc {
	return h.action(h.rejectCompletion.Execute)
}

func (h *TransactionHandler) Cancel() gin.HandlerFunc {
	return h.action(h.cancel.Execute)
}

func (h *TransactionHandler) SetProgress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ProgressRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.setProgress.Execute(c.Request.Context(), transaction.SetProgressInput{
		TransactionID: id,
		ActorID:       userID,
		Progress:      *req.Progress,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, t)
}

// Apply обрабатывает POST /api/jobs/:id/applications.
func (h *TransactionHandler) Apply(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	jobID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ApplyRequest
	if !bindJSON(c, &req) {
		return
	}

	app, err := h.apply.Execute(c.Request.Context(), transaction.ApplyInput{
		JobID:        jobID,
		FreelancerID: userID,
		Proposal:     req.Proposal,
		Bid:          req.Bid,
		Timeline:     req.Timeline,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToApplicationResponse(app))
}

func (h *TransactionHandler) ListApplications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	jobID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	apps, err := h.listApplications.Execute(c.Request.Context(), jobID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToApplicationResponses(apps))
}

func (h *TransactionHandler) AcceptApplication(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	res, err := h.acceptApplication.Execute(c.Request.Context(), transaction.ReviewApplicationInput{
		ApplicationID: id,
		ClientID:      userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.AcceptApplicationResponse{
		Application: dto.ToApplicationResponse(res.Application),
		Transaction: dto.ToTransactionResponse(res.Transaction, res.Transaction.OverallProgress(h.baseline), string(valueobject.RoleClientOrBuyer)),
		Rejected:    dto.ToApplicationResponses(res.Rejected),
	})
}

func (h *TransactionHandler) RejectApplication(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	app, err := h.rejectApplication.Execute(c.Request.Context(), transaction.ReviewApplicationInput{
		ApplicationID: id,
		ClientID:      userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToApplicationResponse(app))
}

func (h *TransactionHandler) AddMilestone(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.AddMilestoneRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.addMilestone.Execute(c.Request.Context(), transaction.AddMilestoneInput{
		TransactionID: id,
		ActorID:       userID,
		Title:         req.Title,
		Description:   req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToTransactionResponse(t, t.OverallProgress(h.baseline), ""))
}

func (h *TransactionHandler) UpdateMilestoneStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	milestoneID, ok := uuidParam(c, "milestoneId")
	if !ok {
		return
	}
	var req dto.StatusRequest
	if !bindJSON(c, &req) {
		return
	}
	status, err := valueobject.NewMilestoneStatus(req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	t, err := h.updateMilestoneStatus.Execute(c.Request.Context(), transaction.UpdateMilestoneStatusInput{
		TransactionID: id,
		MilestoneID:   milestoneID,
		ActorID:       userID,
		Status:        status,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, t)
}

func (h *TransactionHandler) UpdateMilestoneProgress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	milestoneID, ok := uuidParam(c, "milestoneId")
	if !ok {
		return
	}
	var req dto.ProgressRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.updateMilestoneProgress.Execute(c.Request.Context(), transaction.UpdateMilestoneProgressInput{
		TransactionID: id,
		MilestoneID:   milestoneID,
		ActorID:       userID,
		Progress:      *req.Progress,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, t)
}
