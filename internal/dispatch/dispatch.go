// Package dispatch routes bet commands to the registry and the optional
// intent validator, publishes lifecycle events and formats chat replies.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/bet-consensus/internal/intent"
	"github.com/atmx/bet-consensus/internal/metrics"
	"github.com/atmx/bet-consensus/internal/model"
	"github.com/atmx/bet-consensus/internal/notify"
	"github.com/atmx/bet-consensus/internal/proposal"
	"github.com/atmx/bet-consensus/internal/registry"
)

// Validator judges whether a prompt refers to a real event.
type Validator interface {
	Validate(ctx context.Context, prompt string, now time.Time) (intent.Result, error)
}

// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	bets      *registry.Registry
	validator Validator
	events    notify.Publisher
	now       func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithValidator runs v before every proposal. Without it proposals are
// registered unchecked.
func WithValidator(v Validator) Option {
	return func(d *Dispatcher) { d.validator = v }
}

// WithPublisher sends lifecycle events to p.
func WithPublisher(p notify.Publisher) Option {
	return func(d *Dispatcher) { d.events = p }
}

// WithClock overrides the time source used for proposals.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New creates a dispatcher over bets.
func New(bets *registry.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		bets: bets,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Propose checks the input, validates plausibility when a validator is
// configured, and registers the bet. Nothing is registered on any failure.
func (d *Dispatcher) Propose(ctx context.Context, prompt string, amount decimal.Decimal) (model.Bet, error) {
	p, err := proposal.Check(prompt, amount)
	if err != nil {
		return model.Bet{}, err
	}

	now := d.now()
	if d.validator != nil {
		res, err := d.validator.Validate(ctx, p.Prompt, now)
		if err != nil {
			slog.Warn("bet validation failed", "prompt", p.Prompt, "err", err)
			return model.Bet{}, err
		}
		if !res.Valid {
			slog.Info("bet rejected as implausible", "prompt", p.Prompt, "target_date", res.TargetDate)
			return model.Bet{}, fmt.Errorf("%w: %q on %s", model.ErrImplausibleEvent, p.Prompt, res.TargetDate)
		}
	}

	id, err := d.bets.Propose(p.Prompt, p.Amount, now.UTC())
	if err != nil {
		return model.Bet{}, err
	}
	bet, err := d.bets.Get(id)
	if err != nil {
		return model.Bet{}, err
	}

	metrics.BetsProposed.Inc()
	d.syncPending()
	slog.Info("bet proposed",
		"bet_id", id,
		"prompt", bet.Prompt,
		"amount", bet.Amount.String(),
	)

	e := notify.NewEvent(notify.EventBetProposed, id)
	e.Prompt = bet.Prompt
	e.Amount = bet.Amount.String()
	d.publish(ctx, e)

	return bet, nil
}

// Vote records participant's choice on bet id.
func (d *Dispatcher) Vote(ctx context.Context, id model.BetID, participant string, choice model.Choice) (model.Tally, error) {
	tally, err := d.bets.Vote(id, participant, choice)
	if err != nil {
		return model.Tally{}, err
	}

	metrics.VotesTotal.WithLabelValues(string(choice)).Inc()
	slog.Info("vote cast",
		"bet_id", id,
		"participant", participant,
		"choice", choice,
		"agree", tally.Agree,
		"disagree", tally.Disagree,
	)

	e := notify.NewEvent(notify.EventVoteCast, id)
	e.Participant = participant
	e.Choice = choice
	e.Tally = &tally
	d.publish(ctx, e)

	return tally, nil
}

// Finalize closes bet id and reports the majority outcome.
func (d *Dispatcher) Finalize(ctx context.Context, id model.BetID) (model.FinalizeResult, error) {
	res, err := d.bets.Finalize(id)
	if err != nil {
		return model.FinalizeResult{}, err
	}

	metrics.Finalizations.WithLabelValues(string(res.Outcome)).Inc()
	d.syncPending()
	slog.Info("bet finalized",
		"bet_id", id,
		"outcome", res.Outcome,
		"agree", res.Tally.Agree,
		"disagree", res.Tally.Disagree,
	)

	e := notify.NewEvent(notify.EventBetFinalized, id)
	e.Prompt = res.Prompt
	e.Amount = res.Amount.String()
	e.Tally = &res.Tally
	e.Outcome = res.Outcome
	d.publish(ctx, e)

	return res, nil
}

// Get returns a snapshot of bet id.
func (d *Dispatcher) Get(id model.BetID) (model.Bet, error) {
	return d.bets.Get(id)
}

// Pending lists pending bets in ascending id order.
func (d *Dispatcher) Pending() []model.PendingBet {
	return d.bets.ListPending()
}

func (d *Dispatcher) syncPending() {
	metrics.PendingBets.Set(float64(d.bets.PendingCount()))
}

// publish never fails the command; sinks log their own failures.
func (d *Dispatcher) publish(ctx context.Context, e notify.Event) {
	if d.events == nil {
		return
	}
	if err := d.events.Publish(ctx, e); err != nil {
		slog.Debug("lifecycle event not fully delivered", "bet_id", e.BetID, "type", e.Type)
	}
}

// IsValidationFailure reports whether err came from a collaborator rather
// than from the proposal or the registry.
func IsValidationFailure(err error) bool {
	return errors.Is(err, model.ErrValidationUnavailable) ||
		errors.Is(err, model.ErrMalformedDate) ||
		errors.Is(err, model.ErrLookupFailed)
}
