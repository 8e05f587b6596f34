package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/factlineai/factline/internal/api"
	"github.com/factlineai/factline/internal/domain"
	"github.com/go-chi/chi/v5"
)

type FactService interface {
	GetByID(ctx context.Context, id string) (*domain.Fact, error)
	ListByBank(ctx context.Context, bankID string, limit int) ([]*domain.Fact, error)
}

type FactHandler struct {
	svc FactService
}

func NewFactHandler(svc FactService) *FactHandler {
	return &FactHandler{svc: svc}
}

type FactLinkResponse struct {
	TargetFactID string  `json:"target_fact_id"`
	RelationType string  `json:"relation_type"`
	Strength     float64 `json:"strength"`
}

type FactResponse struct {
	ID            string             `json:"id"`
	BankID        string             `json:"bank_id"`
	FactText      string             `json:"fact_text"`
	FactType      string             `json:"fact_type"`
	OccurredStart *string            `json:"occurred_start,omitempty"`
	OccurredEnd   *string            `json:"occurred_end,omitempty"`
	MentionedAt   string             `json:"mentioned_at"`
	Entities      []string           `json:"entities"`
	Links         []FactLinkResponse `json:"links,omitempty"`
	Context       string             `json:"context,omitempty"`
	Metadata      map[string]string  `json:"metadata,omitempty"`
	CreatedAt     string             `json:"created_at"`
}

func factToResponse(f *domain.Fact) *FactResponse {
	resp := &FactResponse{
		ID:          f.ID,
		BankID:      f.BankID,
		FactText:    f.FactText,
		FactType:    string(f.FactType),
		MentionedAt: f.MentionedAt.Format(time.RFC3339),
		Entities:    f.Entities,
		Context:     f.Context,
		Metadata:    f.Metadata,
		CreatedAt:   f.CreatedAt.Format(time.RFC3339),
	}
	if f.OccurredStart != nil {
		s := f.OccurredStart.Format(time.RFC3339)
		resp.OccurredStart = &s
	}
	if f.OccurredEnd != nil {
		s := f.OccurredEnd.Format(time.RFC3339)
		resp.OccurredEnd = &s
	}
	for _, link := range f.Links {
		resp.Links = append(resp.Links, FactLinkResponse{
			TargetFactID: link.TargetFactID,
			RelationType: string(link.RelationType),
			Strength:     link.Strength,
		})
	}
	return resp
}

func (h *FactHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	fact, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, factToResponse(fact))
}

type FactListResponse struct {
	Items []*FactResponse `json:"items"`
}

func (h *FactHandler) List(w http.ResponseWriter, r *http.Request) {
	bankID := chi.URLParam(r, "bankID")
	if bankID == "" {
		api.Error(w, http.StatusBadRequest, "bank id is required")
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	facts, err := h.svc.ListByBank(r.Context(), bankID, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*FactResponse, len(facts))
	for i, f := range facts {
		responses[i] = factToResponse(f)
	}

	api.Success(w, http.StatusOK, FactListResponse{Items: responses})
}
