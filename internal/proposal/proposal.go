// Package proposal parses the raw text of a bet proposal. The last
// whitespace-separated token is the stake; everything before it is the
// prompt.
package proposal

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atmx/bet-consensus/internal/model"
)

// inputRegex splits "<prompt> <amount>".
// Example: "Lakers beat the Celtics on Friday 10"
var inputRegex = regexp.MustCompile(`^(.*\S)\s+(\S+)$`)

// Proposal is a parsed proposal input.
type Proposal struct {
	Prompt string
	Amount decimal.Decimal
}

// Parse splits raw into prompt and stake. It fails with
// model.ErrInvalidBetFormat when either part is missing, when the stake is
// not a finite number, or when it is not positive.
func Parse(raw string) (Proposal, error) {
	matches := inputRegex.FindStringSubmatch(strings.TrimSpace(raw))
	if matches == nil {
		return Proposal{}, fmt.Errorf("%w: expected <prompt> <amount>, got %q", model.ErrInvalidBetFormat, raw)
	}
	return Build(matches[1], matches[2])
}

// Build validates an already separated prompt and stake.
func Build(prompt, amountText string) (Proposal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(amountText))
	if err != nil {
		return Proposal{}, fmt.Errorf("%w: amount %q is not a number", model.ErrInvalidBetFormat, amountText)
	}
	return Check(prompt, amount)
}

// Check validates a prompt and an already parsed stake. The returned prompt
// is trimmed.
func Check(prompt string, amount decimal.Decimal) (Proposal, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Proposal{}, fmt.Errorf("%w: prompt is empty", model.ErrInvalidBetFormat)
	}
	if !amount.IsPositive() {
		return Proposal{}, fmt.Errorf("%w: amount must be positive, got %s", model.ErrInvalidBetFormat, amount)
	}
	return Proposal{Prompt: prompt, Amount: amount}, nil
}
