package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atmx/bet-consensus/internal/api"
	"github.com/atmx/bet-consensus/internal/dispatch"
	"github.com/atmx/bet-consensus/internal/intent"
	"github.com/atmx/bet-consensus/internal/model"
	"github.com/atmx/bet-consensus/internal/registry"
)

// newTestEnv creates a handler over a fresh registry mounted on a chi router.
func newTestEnv(t *testing.T, opts ...dispatch.Option) (*registry.Registry, chi.Router) {
	t.Helper()
	bets := registry.New()
	h := api.NewHandler(dispatch.New(bets, opts...))

	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)
	return bets, r
}

func do(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, w.Body.String())
	}
	return v
}

func propose(t *testing.T, router chi.Router, prompt, amount string) model.Bet {
	t.Helper()
	w := do(t, router, "POST", "/api/v1/bets", fmt.Sprintf(`{"prompt":%q,"amount":%s}`, prompt, amount))
	if w.Code != http.StatusCreated {
		t.Fatalf("propose: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return decode[model.Bet](t, w)
}

func vote(t *testing.T, router chi.Router, id model.BetID, participant, choice string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, router, "POST", fmt.Sprintf("/api/v1/bets/%d/votes", id), api.VoteRequest{Participant: participant, Choice: choice})
}

// --- Bet lifecycle tests ---

func TestLifecycle_MajorityAgreed(t *testing.T) {
	_, router := newTestEnv(t)

	bet := propose(t, router, "Lakers win", "10")
	if bet.ID != 1 || bet.Status != model.StatusPending {
		t.Fatalf("unexpected bet: %+v", bet)
	}

	vote(t, router, bet.ID, "alice", "agree")
	vote(t, router, bet.ID, "bob", "disagree")
	w := vote(t, router, bet.ID, "carol", "AGREE")
	if w.Code != http.StatusOK {
		t.Fatalf("vote: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	vr := decode[api.VoteResponse](t, w)
	if vr.Agree != 2 || vr.Disagree != 1 {
		t.Errorf("expected 2/1, got %d/%d", vr.Agree, vr.Disagree)
	}

	w = do(t, router, "POST", "/api/v1/bets/1/finalize", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("finalize: expected 200, got %d", w.Code)
	}
	fr := decode[api.FinalizeResponse](t, w)
	if fr.Outcome != model.OutcomeAgreed {
		t.Errorf("expected agreed, got %s", fr.Outcome)
	}
	if fr.Message != `Bet #1 finalized: Majority agreed to "Lakers win" for 10.` {
		t.Errorf("unexpected message: %s", fr.Message)
	}

	w = do(t, router, "GET", "/api/v1/bets/1", nil)
	got := decode[model.Bet](t, w)
	if got.Status != model.StatusResolved || len(got.Votes) != 3 {
		t.Errorf("unexpected snapshot: %+v", got)
	}
}

func TestFinalize_NoVotesDisagreed(t *testing.T) {
	_, router := newTestEnv(t)
	propose(t, router, "Lakers win", "10")
	bet := propose(t, router, "Celtics win", "5")

	w := do(t, router, "POST", fmt.Sprintf("/api/v1/bets/%d/finalize", bet.ID), nil)
	fr := decode[api.FinalizeResponse](t, w)
	if fr.ID != 2 || fr.Outcome != model.OutcomeDisagreed {
		t.Errorf("expected bet 2 disagreed, got %+v", fr.FinalizeResult)
	}
}

func TestListPending(t *testing.T) {
	_, router := newTestEnv(t)

	w := do(t, router, "GET", "/api/v1/bets", nil)
	if body := w.Body.String(); body != "[]\n" {
		t.Errorf("expected empty JSON array, got %q", body)
	}

	propose(t, router, "Lakers win", "10")
	propose(t, router, "Celtics win", "2.5")
	do(t, router, "POST", "/api/v1/bets/1/finalize", nil)

	list := decode[[]model.PendingBet](t, do(t, router, "GET", "/api/v1/bets", nil))
	if len(list) != 1 || list[0].ID != 2 || list[0].Amount.String() != "2.5" {
		t.Errorf("unexpected pending list: %+v", list)
	}
}

// --- Error mapping tests ---

func TestProposeBet_Invalid(t *testing.T) {
	bets, router := newTestEnv(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty prompt", `{"prompt":"  ","amount":10}`, http.StatusBadRequest},
		{"zero amount", `{"prompt":"Lakers win","amount":0}`, http.StatusBadRequest},
		{"negative amount", `{"prompt":"Lakers win","amount":"-3"}`, http.StatusBadRequest},
		{"non-numeric amount", `{"prompt":"Lakers win","amount":"ten"}`, http.StatusBadRequest},
		{"bad json", `{"prompt":`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		w := do(t, router, "POST", "/api/v1/bets", tc.body)
		if w.Code != tc.want {
			t.Errorf("%s: expected %d, got %d: %s", tc.name, tc.want, w.Code, w.Body.String())
		}
	}
	if n := bets.PendingCount(); n != 0 {
		t.Errorf("invalid proposals must not register bets, got %d", n)
	}
}

func TestVote_Errors(t *testing.T) {
	_, router := newTestEnv(t)
	propose(t, router, "Lakers win", "10")

	tests := []struct {
		name string
		path string
		req  api.VoteRequest
		want int
	}{
		{"unknown bet", "/api/v1/bets/999/votes", api.VoteRequest{Participant: "dan", Choice: "agree"}, http.StatusNotFound},
		{"bad id", "/api/v1/bets/abc/votes", api.VoteRequest{Participant: "dan", Choice: "agree"}, http.StatusBadRequest},
		{"no participant", "/api/v1/bets/1/votes", api.VoteRequest{Choice: "agree"}, http.StatusBadRequest},
		{"bad choice", "/api/v1/bets/1/votes", api.VoteRequest{Participant: "dan", Choice: "maybe"}, http.StatusBadRequest},
	}
	for _, tc := range tests {
		w := do(t, router, "POST", tc.path, tc.req)
		if w.Code != tc.want {
			t.Errorf("%s: expected %d, got %d: %s", tc.name, tc.want, w.Code, w.Body.String())
		}
	}
}

func TestVote_AfterFinalizeRejected(t *testing.T) {
	bets := registry.New(registry.WithLateVotes(false))
	r := chi.NewRouter()
	r.Route("/api/v1", api.NewHandler(dispatch.New(bets)).Routes)

	propose(t, r, "Lakers win", "10")
	do(t, r, "POST", "/api/v1/bets/1/finalize", nil)

	if w := vote(t, r, 1, "alice", "agree"); w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestGetBet_NotFound(t *testing.T) {
	_, router := newTestEnv(t)
	if w := do(t, router, "GET", "/api/v1/bets/42", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w := do(t, router, "POST", "/api/v1/bets/42/finalize", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

type stubValidator struct {
	res intent.Result
	err error
}

func (s stubValidator) Validate(context.Context, string, time.Time) (intent.Result, error) {
	return s.res, s.err
}

func TestProposeBet_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		v    stubValidator
		want int
	}{
		{"implausible", stubValidator{res: intent.Result{Valid: false}}, http.StatusUnprocessableEntity},
		{"unavailable", stubValidator{err: fmt.Errorf("%w: timeout", model.ErrValidationUnavailable)}, http.StatusServiceUnavailable},
		{"malformed date", stubValidator{err: model.ErrMalformedDate}, http.StatusServiceUnavailable},
		{"valid", stubValidator{res: intent.Result{Valid: true}}, http.StatusCreated},
	}
	for _, tc := range tests {
		_, router := newTestEnv(t, dispatch.WithValidator(tc.v))
		w := do(t, router, "POST", "/api/v1/bets", `{"prompt":"Lakers win","amount":10}`)
		if w.Code != tc.want {
			t.Errorf("%s: expected %d, got %d: %s", tc.name, tc.want, w.Code, w.Body.String())
		}
	}
}

// --- Chat command endpoint ---

func TestHandleCommand(t *testing.T) {
	_, router := newTestEnv(t)

	send := func(sender, text string) string {
		w := do(t, router, "POST", "/api/v1/commands", api.CommandRequest{Sender: sender, Text: text})
		if w.Code != http.StatusOK {
			t.Fatalf("command %q: expected 200, got %d", text, w.Code)
		}
		return decode[api.CommandResponse](t, w).Reply
	}

	if got := send("alice", "/bet Lakers win 10"); got != `New bet #1 proposed: "Lakers win" with an amount of 10. Please respond with /agree 1 or /disagree 1.` {
		t.Errorf("unexpected reply: %s", got)
	}
	if got := send("bob", "/agree 1"); got != "Someone has responded. There are now 1 agrees and 0 disagrees for Bet #1." {
		t.Errorf("unexpected reply: %s", got)
	}
	if got := send("bob", "/agree"); got != dispatch.ReplyMissingBetID {
		t.Errorf("unexpected reply: %s", got)
	}

	w := do(t, router, "POST", "/api/v1/commands", api.CommandRequest{Text: "/show"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing sender: expected 400, got %d", w.Code)
	}
}
