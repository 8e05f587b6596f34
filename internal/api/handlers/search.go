package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/factlineai/factline/internal/api"
	"github.com/factlineai/factline/internal/service"
	"github.com/go-chi/chi/v5"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query    string `json:"query"`
	FactType string `json:"fact_type,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type SearchResultResponse struct {
	Fact  *FactResponse `json:"fact"`
	Score float64       `json:"score"`
}

type SearchResponse struct {
	Results []*SearchResultResponse `json:"results"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	bankID := chi.URLParam(r, "bankID")
	if bankID == "" {
		api.Error(w, http.StatusBadRequest, "bank id is required")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	output, err := h.svc.Search(r.Context(), service.SearchInput{
		BankID:   bankID,
		Query:    req.Query,
		FactType: req.FactType,
		Limit:    req.Limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	results := make([]*SearchResultResponse, len(output.Results))
	for i, match := range output.Results {
		results[i] = &SearchResultResponse{
			Fact:  factToResponse(match.Fact),
			Score: match.Score,
		}
	}

	api.Success(w, http.StatusOK, SearchResponse{Results: results})
}
