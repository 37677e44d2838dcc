// Package registry is the bet consensus engine. It owns every bet record and
// the id counter, applies votes and computes finalization outcomes.
//
// Locking is two-level: the registry lock guards the id counter and the index
// of records, and each record carries its own lock for votes and status. A
// vote or finalization holds only the record lock, so operations on
// different bets never wait on each other.
package registry

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/bet-consensus/internal/model"
)

// record is the mutable state behind one bet. prompt, amount and createdAt
// are written once before the record is published and never again.
type record struct {
	id        model.BetID
	prompt    string
	amount    decimal.Decimal
	createdAt time.Time

	mu     sync.Mutex
	status model.Status
	votes  map[string]model.Choice
}

// tally derives the counts from votes. Caller holds rec.mu.
func (rec *record) tally() model.Tally {
	var t model.Tally
	for _, c := range rec.votes {
		if c == model.ChoiceAgree {
			t.Agree++
		} else {
			t.Disagree++
		}
	}
	return t
}

// Registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	nextID model.BetID
	bets   map[model.BetID]*record
	order  []*record // ascending id

	pending   atomic.Int64
	lateVotes bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLateVotes controls whether votes are accepted on resolved bets.
// The default is to accept them.
func WithLateVotes(allow bool) Option {
	return func(r *Registry) { r.lateVotes = allow }
}

// New creates an empty registry. The first proposal receives id 1.
func New(opts ...Option) *Registry {
	r := &Registry{
		bets:      make(map[model.BetID]*record),
		lateVotes: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Propose validates the input and registers a new pending bet. No id is
// consumed when validation fails.
func (r *Registry) Propose(prompt string, amount decimal.Decimal, createdAt time.Time) (model.BetID, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return 0, fmt.Errorf("%w: prompt is empty", model.ErrInvalidBetFormat)
	}
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: amount must be positive, got %s", model.ErrInvalidBetFormat, amount)
	}

	rec := &record{
		prompt:    prompt,
		amount:    amount,
		createdAt: createdAt,
		status:    model.StatusPending,
		votes:     make(map[string]model.Choice),
	}

	r.mu.Lock()
	r.nextID++
	rec.id = r.nextID
	r.bets[rec.id] = rec
	r.order = append(r.order, rec)
	r.pending.Add(1)
	r.mu.Unlock()

	return rec.id, nil
}

// Vote records participant's choice, replacing any earlier vote by the same
// participant, and returns the resulting tally.
func (r *Registry) Vote(id model.BetID, participant string, choice model.Choice) (model.Tally, error) {
	if choice != model.ChoiceAgree && choice != model.ChoiceDisagree {
		return model.Tally{}, fmt.Errorf("unknown choice %q", choice)
	}
	rec, err := r.lookup(id)
	if err != nil {
		return model.Tally{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.status == model.StatusResolved && !r.lateVotes {
		return model.Tally{}, fmt.Errorf("%w: bet %d", model.ErrBetResolved, id)
	}
	rec.votes[participant] = choice
	return rec.tally(), nil
}

// Finalize evaluates the current tally and marks the bet resolved. Calling it
// again on a resolved bet re-evaluates the tally.
func (r *Registry) Finalize(id model.BetID) (model.FinalizeResult, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return model.FinalizeResult{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	t := rec.tally()
	if rec.status == model.StatusPending {
		rec.status = model.StatusResolved
		r.pending.Add(-1)
	}
	return model.FinalizeResult{
		ID:      id,
		Outcome: t.Outcome(),
		Prompt:  rec.prompt,
		Amount:  rec.amount,
		Tally:   t,
	}, nil
}

// Get returns a copy of the bet with its current tally.
func (r *Registry) Get(id model.BetID) (model.Bet, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return model.Bet{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	votes := make(map[string]model.Choice, len(rec.votes))
	for p, c := range rec.votes {
		votes[p] = c
	}
	return model.Bet{
		ID:        rec.id,
		Prompt:    rec.prompt,
		Amount:    rec.amount,
		Status:    rec.status,
		Votes:     votes,
		Tally:     rec.tally(),
		CreatedAt: rec.createdAt,
	}, nil
}

// Pending yields the pending bets in ascending id order. Each range over the
// sequence takes a fresh view of the registry.
func (r *Registry) Pending() iter.Seq[model.PendingBet] {
	return func(yield func(model.PendingBet) bool) {
		r.mu.RLock()
		recs := slices.Clone(r.order)
		r.mu.RUnlock()

		for _, rec := range recs {
			rec.mu.Lock()
			pending := rec.status == model.StatusPending
			rec.mu.Unlock()
			if !pending {
				continue
			}
			if !yield(model.PendingBet{ID: rec.id, Prompt: rec.prompt, Amount: rec.amount}) {
				return
			}
		}
	}
}

// ListPending collects Pending into a slice.
func (r *Registry) ListPending() []model.PendingBet {
	return slices.Collect(r.Pending())
}

// PendingCount is the number of bets not yet finalized.
func (r *Registry) PendingCount() int {
	return int(r.pending.Load())
}

func (r *Registry) lookup(id model.BetID) (*record, error) {
	r.mu.RLock()
	rec, ok := r.bets[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", model.ErrBetNotFound, id)
	}
	return rec, nil
}
