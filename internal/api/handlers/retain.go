package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/factlineai/factline/internal/api"
	"github.com/factlineai/factline/internal/service"
	"github.com/go-chi/chi/v5"
)

type RetainService interface {
	Retain(ctx context.Context, input service.RetainInput) (*service.RetainResult, error)
}

type RetainHandler struct {
	svc RetainService
}

func NewRetainHandler(svc RetainService) *RetainHandler {
	return &RetainHandler{svc: svc}
}

type RetainItemRequest struct {
	Text      string            `json:"text"`
	EventDate *time.Time        `json:"event_date,omitempty"`
	Context   string            `json:"context,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type RetainRequest struct {
	Items []RetainItemRequest `json:"items"`
}

type RetainResponse struct {
	FactIDs    []string `json:"fact_ids"`
	FactCount  int      `json:"fact_count"`
	ChunkCount int      `json:"chunk_count"`
}

func (h *RetainHandler) Retain(w http.ResponseWriter, r *http.Request) {
	bankID := chi.URLParam(r, "bankID")
	if bankID == "" {
		api.Error(w, http.StatusBadRequest, "bank id is required")
		return
	}

	var req RetainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Items) == 0 {
		api.Error(w, http.StatusBadRequest, "items is required")
		return
	}

	items := make([]service.RetainItem, len(req.Items))
	for i, item := range req.Items {
		if item.Text == "" {
			api.Error(w, http.StatusBadRequest, "item text is required")
			return
		}
		var eventDate time.Time
		if item.EventDate != nil {
			eventDate = *item.EventDate
		}
		items[i] = service.RetainItem{
			Text:      item.Text,
			EventDate: eventDate,
			Context:   item.Context,
			Metadata:  item.Metadata,
		}
	}

	result, err := h.svc.Retain(r.Context(), service.RetainInput{
		BankID: bankID,
		Items:  items,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, RetainResponse{
		FactIDs:    result.FactIDs,
		FactCount:  result.FactCount,
		ChunkCount: result.ChunkCount,
	})
}
