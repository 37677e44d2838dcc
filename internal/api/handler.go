// Package api exposes the bet dispatcher over HTTP: a chat command endpoint,
// a JSON resource API for bets and a WebSocket stream of lifecycle events.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/bet-consensus/internal/dispatch"
	"github.com/atmx/bet-consensus/internal/model"
)

// Handler serves the bet endpoints.
type Handler struct {
	bets *dispatch.Dispatcher
}

// NewHandler creates a handler over d.
func NewHandler(d *dispatch.Dispatcher) *Handler {
	return &Handler{bets: d}
}

// Routes mounts the bet endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/commands", h.HandleCommand)

	r.Get("/bets", h.ListPending)
	r.Post("/bets", h.ProposeBet)
	r.Get("/bets/{betID}", h.GetBet)
	r.Post("/bets/{betID}/votes", h.CastVote)
	r.Post("/bets/{betID}/finalize", h.FinalizeBet)
}

// --- Request/Response types ---

// CommandRequest is the JSON body for POST /commands.
type CommandRequest struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// CommandResponse carries the chat reply.
type CommandResponse struct {
	Reply string `json:"reply"`
}

// ProposeRequest is the JSON body for POST /bets.
type ProposeRequest struct {
	Prompt string          `json:"prompt"`
	Amount decimal.Decimal `json:"amount"`
}

// VoteRequest is the JSON body for POST /bets/{betID}/votes.
type VoteRequest struct {
	Participant string `json:"participant"`
	Choice      string `json:"choice"` // "agree" or "disagree"
}

// VoteResponse is the tally after a vote.
type VoteResponse struct {
	BetID model.BetID `json:"bet_id"`
	model.Tally
}

// FinalizeResponse is the finalization result plus the chat rendering.
type FinalizeResponse struct {
	model.FinalizeResult
	Message string `json:"message"`
}

// --- HTTP Handlers ---

// HandleCommand handles POST /api/v1/commands
func (h *Handler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Sender == "" {
		writeError(w, "sender is required", http.StatusBadRequest)
		return
	}

	reply := h.bets.Handle(r.Context(), req.Sender, req.Text)
	writeJSON(w, http.StatusOK, CommandResponse{Reply: reply})
}

// ProposeBet handles POST /api/v1/bets
func (h *Handler) ProposeBet(w http.ResponseWriter, r *http.Request) {
	var req ProposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	bet, err := h.bets.Propose(r.Context(), req.Prompt, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if sender := r.Header.Get("X-Sender"); sender != "" {
		slog.Info("bet proposed via api", "bet_id", bet.ID, "sender", sender)
	}
	writeJSON(w, http.StatusCreated, bet)
}

// ListPending handles GET /api/v1/bets
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	bets := h.bets.Pending()
	if bets == nil {
		bets = []model.PendingBet{}
	}
	writeJSON(w, http.StatusOK, bets)
}

// GetBet handles GET /api/v1/bets/{betID}
func (h *Handler) GetBet(w http.ResponseWriter, r *http.Request) {
	id, ok := betIDParam(w, r)
	if !ok {
		return
	}
	bet, err := h.bets.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// CastVote handles POST /api/v1/bets/{betID}/votes
func (h *Handler) CastVote(w http.ResponseWriter, r *http.Request) {
	id, ok := betIDParam(w, r)
	if !ok {
		return
	}

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Participant == "" {
		writeError(w, "participant is required", http.StatusBadRequest)
		return
	}
	choice, err := model.ParseChoice(req.Choice)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tally, err := h.bets.Vote(r.Context(), id, req.Participant, choice)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VoteResponse{BetID: id, Tally: tally})
}

// FinalizeBet handles POST /api/v1/bets/{betID}/finalize
func (h *Handler) FinalizeBet(w http.ResponseWriter, r *http.Request) {
	id, ok := betIDParam(w, r)
	if !ok {
		return
	}
	res, err := h.bets.Finalize(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FinalizeResponse{FinalizeResult: res, Message: dispatch.FormatResult(res)})
}

func betIDParam(w http.ResponseWriter, r *http.Request) (model.BetID, bool) {
	n, err := strconv.ParseInt(chi.URLParam(r, "betID"), 10, 64)
	if err != nil {
		writeError(w, "invalid bet id", http.StatusBadRequest)
		return 0, false
	}
	return model.BetID(n), true
}

// writeDomainError maps the error taxonomy to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidBetFormat):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrBetNotFound):
		writeError(w, "bet not found", http.StatusNotFound)
	case errors.Is(err, model.ErrBetResolved):
		writeError(w, "bet already finalized", http.StatusConflict)
	case errors.Is(err, model.ErrImplausibleEvent):
		writeError(w, "no matching event found for this bet", http.StatusUnprocessableEntity)
	case dispatch.IsValidationFailure(err):
		writeError(w, "cannot validate this bet right now", http.StatusServiceUnavailable)
	default:
		slog.Error("unexpected error", "err", err)
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
