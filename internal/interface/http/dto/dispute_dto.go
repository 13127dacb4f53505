package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/usecase/dispute"
	"github.com/ignatzorin/marketplace-backend/internal/validation"
)

type OpenDisputeRequest struct {
	Reason      string `json:"reason" binding:"required"`
	Description string `json:"description"`
}

func (r OpenDisputeRequest) Validate() error {
	return firstError(
		validation.ValidateReason(r.Reason),
		validation.ValidateDescription(r.Description),
	)
}

// AssignMediatorRequest: пустой mediator_id означает самоназначение.
type AssignMediatorRequest struct {
	MediatorID string `json:"mediator_id"`
}

type ResolveRequest struct {
	Resolution string `json:"resolution" binding:"required"`
}

func (r ResolveRequest) Validate() error {
	return validationError(validation.ValidateResolution(r.Resolution))
}

type MessageRequest struct {
	Text string `json:"text" binding:"required"`
}

func (r MessageRequest) Validate() error {
	return validationError(validation.ValidateMessageContent(r.Text))
}

type FileResponse struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Digest      string `json:"digest,omitempty"`
}

type EvidenceResponse struct {
	ID         uuid.UUID      `json:"id"`
	UploaderID uuid.UUID      `json:"uploader_id"`
	Files      []FileResponse `json:"files"`
	CreatedAt  time.Time      `json:"created_at"`
}

func ToEvidenceResponse(e *entity.Evidence) EvidenceResponse {
	files := make([]FileResponse, 0, len(e.Files))
	for _, f := range e.Files {
		files = append(files, FileResponse(f))
	}
	return EvidenceResponse{
		ID:         e.ID,
		UploaderID: e.UploaderID,
		Files:      files,
		CreatedAt:  e.CreatedAt,
	}
}

type MessageResponse struct {
	ID        uuid.UUID `json:"id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Text      string    `json:"text"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

func ToMessageResponse(m *entity.MediationMessage) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		Seq:       m.Seq,
		CreatedAt: m.CreatedAt,
	}
}

type DisputeResponse struct {
	ID            uuid.UUID          `json:"id"`
	TransactionID uuid.UUID          `json:"transaction_id"`
	InitiatorID   uuid.UUID          `json:"initiator_id"`
	Reason        string             `json:"reason"`
	Description   string             `json:"description,omitempty"`
	Status        string             `json:"status"`
	MediatorID    *uuid.UUID         `json:"mediator_id,omitempty"`
	Resolution    *string            `json:"resolution,omitempty"`
	Version       int64              `json:"version"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	ResolvedAt    *time.Time         `json:"resolved_at,omitempty"`
	ClosedAt      *time.Time         `json:"closed_at,omitempty"`
	Role          string             `json:"role,omitempty"`
	DisplayRoles  []string           `json:"display_roles,omitempty"`
	Evidence      []EvidenceResponse `json:"evidence,omitempty"`
	Messages      []MessageResponse  `json:"messages,omitempty"`
}

func ToDisputeResponse(d *entity.Dispute) DisputeResponse {
	resp := DisputeResponse{
		ID:            d.ID,
		TransactionID: d.TransactionID,
		InitiatorID:   d.InitiatorID,
		Reason:        d.Reason,
		Description:   d.Description,
		Status:        string(d.Status),
		MediatorID:    d.MediatorID,
		Resolution:    d.Resolution,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		ResolvedAt:    d.ResolvedAt,
		ClosedAt:      d.ClosedAt,
	}
	for i := range d.Evidence {
		resp.Evidence = append(resp.Evidence, ToEvidenceResponse(&d.Evidence[i]))
	}
	for i := range d.Messages {
		resp.Messages = append(resp.Messages, ToMessageResponse(&d.Messages[i]))
	}
	return resp
}

func ToDisputeView(v *dispute.View) DisputeResponse {
	resp := ToDisputeResponse(v.Dispute)
	resp.Role = string(v.Role)
	resp.DisplayRoles = v.DisplayRoles
	return resp
}

func ToDisputeResponses(items []*entity.Dispute) []DisputeResponse {
	out := make([]DisputeResponse, 0, len(items))
	for _, d := range items {
		out = append(out, ToDisputeResponse(d))
	}
	return out
}
