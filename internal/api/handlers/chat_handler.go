package handlers

import (
	"log/slog"
	"net/http"

	"github.com/markdave123-py/contexta/internal/core/retrieval"
	"github.com/markdave123-py/contexta/internal/models"
	"github.com/markdave123-py/contexta/internal/services"
)

type ChatHandler struct {
	answers *services.AnswerService
	logger  *slog.Logger
}

func NewChatHandler(answers *services.AnswerService, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{answers: answers, logger: logger.With("component", "chat-handler")}
}

type RetrieveRequest struct {
	Question string         `json:"question"`
	TopK     *int           `json:"top_k,omitempty"`
	Filters  models.Filters `json:"filters,omitempty"`
}

type RetrieveResponse struct {
	Candidates []models.Candidate `json:"candidates"`
}

// Retrieve returns the nearest chunks without reranking or generation. An
// explicit top_k of 0 is honored and yields no candidates.
func (h *ChatHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	topK := retrieval.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	cands, err := h.answers.Retrieve(r.Context(), req.Question, topK, req.Filters)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RetrieveResponse{Candidates: cands})
}

type ChatRequest struct {
	Question string         `json:"question"`
	TopK     int            `json:"top_k,omitempty"`
	FetchK   int            `json:"fetch_k,omitempty"`
	Lambda   *float64       `json:"lambda,omitempty"`
	Filters  models.Filters `json:"filters,omitempty"`
}

func (h *ChatHandler) QueryDocument(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	answer, err := h.answers.Answer(r.Context(), req.Question, services.AskOptions{
		TopK:    req.TopK,
		FetchK:  req.FetchK,
		Lambda:  req.Lambda,
		Filters: req.Filters,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}
