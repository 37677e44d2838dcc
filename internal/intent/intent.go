// Package intent checks that a proposed bet refers to a real game. It asks
// the text generator for the game date, looks up the games on that date and
// then asks the generator whether the prompt matches one of them.
//
// This is a plausibility filter only. The registry never depends on it.
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atmx/bet-consensus/internal/metrics"
	"github.com/atmx/bet-consensus/internal/model"
	"github.com/atmx/bet-consensus/internal/textgen"
)

const DateLayout = "2006-01-02"

// EventLookup returns the resolved events scheduled on date (YYYY-MM-DD).
type EventLookup interface {
	LookupEvents(ctx context.Context, date string) ([]model.EventSummary, error)
}

// Result is the outcome of a validation.
type Result struct {
	Valid      bool
	TargetDate string
	Events     []model.EventSummary
}

// Validator runs the date inference, lookup and plausibility steps.
type Validator struct {
	gen     textgen.Generator
	events  EventLookup
	timeout time.Duration
}

// NewValidator creates a validator. timeout bounds each collaborator call;
// zero disables the per-call bound.
func NewValidator(gen textgen.Generator, events EventLookup, timeout time.Duration) *Validator {
	return &Validator{gen: gen, events: events, timeout: timeout}
}

// DateInstruction is the system instruction for inferring the game date.
func DateInstruction(now time.Time) string {
	today := now.UTC().Format(DateLayout)
	return fmt.Sprintf(`### Context
Given the current timestamp %d and a user prompt to bet on a winning outcome sometime in the future, figure out when they are trying to place the bet and output it in the format e.g. %s.
The current date is %s. All future dates are strictly after %s.
### Output:
Just the date in the format e.g. "%s"`,
		now.UnixMilli(), today, today, today, today)
}

// PlausibilityInstruction is the system instruction for the yes/no check.
const PlausibilityInstruction = `### Context
You are a helpful bot agent that lives inside a messaging group for making sports bets. Your job is to check whether the provided prompt can be cross referenced with an API response to see if the sports event exists and the bet can be scheduled. The data source is pasted after the prompt.
Respond "yes" or "no".`

// Validate runs the three steps for prompt relative to now. Collaborator
// failures wrap model.ErrValidationUnavailable; an unparseable date wraps
// model.ErrMalformedDate. A reply other than exactly "yes" is invalid.
func (v *Validator) Validate(ctx context.Context, prompt string, now time.Time) (Result, error) {
	reply, err := v.generate(ctx, prompt, DateInstruction(now), "")
	if err != nil {
		metrics.Validations.WithLabelValues("unavailable").Inc()
		return Result{}, fmt.Errorf("%w: infer date: %w", model.ErrValidationUnavailable, err)
	}

	date, err := parseDate(reply)
	if err != nil {
		metrics.Validations.WithLabelValues("malformed_date").Inc()
		return Result{}, err
	}

	events, err := v.lookup(ctx, date)
	if err != nil {
		metrics.Validations.WithLabelValues("unavailable").Inc()
		return Result{}, fmt.Errorf("%w: %w", model.ErrValidationUnavailable, err)
	}

	data, err := json.Marshal(events)
	if err != nil {
		return Result{}, fmt.Errorf("%w: encode events: %w", model.ErrValidationUnavailable, err)
	}

	answer, err := v.generate(ctx, prompt, PlausibilityInstruction, string(data))
	if err != nil {
		metrics.Validations.WithLabelValues("unavailable").Inc()
		return Result{}, fmt.Errorf("%w: plausibility check: %w", model.ErrValidationUnavailable, err)
	}

	res := Result{Valid: answer == "yes", TargetDate: date, Events: events}
	if res.Valid {
		metrics.Validations.WithLabelValues("valid").Inc()
	} else {
		metrics.Validations.WithLabelValues("rejected").Inc()
	}
	slog.Debug("bet validated",
		"target_date", date,
		"candidates", len(events),
		"valid", res.Valid,
	)
	return res, nil
}

func (v *Validator) generate(ctx context.Context, prompt, system, data string) (string, error) {
	ctx, cancel := v.bound(ctx)
	defer cancel()
	defer metrics.ObserveCollaborator("textgen", time.Now())
	return v.gen.Generate(ctx, prompt, system, data)
}

func (v *Validator) lookup(ctx context.Context, date string) ([]model.EventSummary, error) {
	ctx, cancel := v.bound(ctx)
	defer cancel()
	defer metrics.ObserveCollaborator("events", time.Now())

	events, err := v.events.LookupEvents(ctx, date)
	if err != nil && !errors.Is(err, model.ErrLookupFailed) {
		err = fmt.Errorf("%w: %w", model.ErrLookupFailed, err)
	}
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (v *Validator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if v.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, v.timeout)
}

// parseDate accepts a YYYY-MM-DD literal, optionally wrapped in quotes.
func parseDate(reply string) (string, error) {
	s := strings.Trim(strings.TrimSpace(reply), `"'.`)
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q", model.ErrMalformedDate, reply)
	}
	return s, nil
}
