// Package model defines the core domain types shared across the bet service.
// Stake amounts use shopspring/decimal, never float64.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BetID identifies a bet for the lifetime of the process. IDs are issued in
// strictly increasing order and never reused.
type BetID int64

func (id BetID) String() string { return fmt.Sprintf("%d", int64(id)) }

// Status is the lifecycle state of a bet.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
)

// Choice is a participant's vote on a bet.
type Choice string

const (
	ChoiceAgree    Choice = "agree"
	ChoiceDisagree Choice = "disagree"
)

// ParseChoice accepts "agree" or "disagree" in any case.
func ParseChoice(s string) (Choice, error) {
	switch Choice(strings.ToLower(strings.TrimSpace(s))) {
	case ChoiceAgree:
		return ChoiceAgree, nil
	case ChoiceDisagree:
		return ChoiceDisagree, nil
	}
	return "", fmt.Errorf("choice must be agree or disagree, got %q", s)
}

// Outcome is the majority result computed at finalization.
type Outcome string

const (
	OutcomeAgreed    Outcome = "agreed"
	OutcomeDisagreed Outcome = "disagreed"
)

// Tally is the vote count derived from a bet's votes.
type Tally struct {
	Agree    int `json:"agree"`
	Disagree int `json:"disagree"`
}

// Voters is the number of distinct participants with a live vote.
func (t Tally) Voters() int { return t.Agree + t.Disagree }

// Outcome applies the majority rule. Ties, including 0/0, go to disagreed.
func (t Tally) Outcome() Outcome {
	if t.Agree > t.Disagree {
		return OutcomeAgreed
	}
	return OutcomeDisagreed
}

// Bet is a snapshot of a wager record. Prompt, Amount and CreatedAt are
// fixed at proposal time.
type Bet struct {
	ID        BetID             `json:"id"`
	Prompt    string            `json:"prompt"`
	Amount    decimal.Decimal   `json:"amount"`
	Status    Status            `json:"status"`
	Votes     map[string]Choice `json:"votes"`
	Tally     Tally             `json:"tally"`
	CreatedAt time.Time         `json:"created_at"`
}

// PendingBet is one row of the pending listing.
type PendingBet struct {
	ID     BetID           `json:"id"`
	Prompt string          `json:"prompt"`
	Amount decimal.Decimal `json:"amount"`
}

// FinalizeResult is returned by finalization.
type FinalizeResult struct {
	ID      BetID           `json:"id"`
	Outcome Outcome         `json:"outcome"`
	Prompt  string          `json:"prompt"`
	Amount  decimal.Decimal `json:"amount"`
	Tally   Tally           `json:"tally"`
}

// TBD marks an event whose winner is not known.
const TBD = "TBD"

// EventSummary is the normalized shape of a scheduled or finished event.
type EventSummary struct {
	ID           int64  `json:"id"`
	Date         string `json:"date"`
	ParticipantA string `json:"visitor_name"`
	ParticipantB string `json:"home_name"`
	Winner       string `json:"winner"`
}
