package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/atmx/bet-consensus/internal/model"
	"github.com/atmx/bet-consensus/internal/proposal"
)

// Chat command names.
const (
	CmdBet      = "/bet"
	CmdAgree    = "/agree"
	CmdDisagree = "/disagree"
	CmdFinalize = "/finalize"
	CmdShow     = "/show"
	CmdHelp     = "/help"
)

// Reply texts.
const (
	ReplyInvalidFormat  = "Invalid bet format. Please provide a prompt and a valid amount."
	ReplyImplausible    = "Check your calendar grandpa, this game ain't real"
	ReplyUnavailable    = "Cannot validate this bet right now. Please try again later."
	ReplyNotFound       = "Bet not found."
	ReplyMissingBetID   = "Missing required parameters. Please provide betId."
	ReplyUnknownCommand = "Unknown command. Use /help to see all available commands."
	ReplyNoActiveBets   = "No active bets."
	ReplyBetResolved    = "This bet has already been finalized."
	ReplyInternal       = "Something went wrong. Please try again later."

	ReplyHelp = `Available commands:
/bet <prompt> <amount> - Propose a new bet
/agree <betId> - Agree with a bet
/disagree <betId> - Disagree with a bet
/finalize <betId> - Finalize a bet by majority
/show - Show active bets
/help - Show this message`
)

// Command is a parsed chat message.
type Command struct {
	Name string
	Args string
}

// ParseCommand splits text into a lowercase command name and the remaining
// arguments. A bot mention suffix such as "/bet@betbot" is dropped.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(text)
	name, args, _ := strings.Cut(text, " ")
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}
	return Command{
		Name: strings.ToLower(name),
		Args: strings.TrimSpace(args),
	}
}

// Handle runs a chat message from sender and returns the reply text.
func (d *Dispatcher) Handle(ctx context.Context, sender, text string) string {
	cmd := ParseCommand(text)
	switch cmd.Name {
	case CmdBet:
		return d.handleBet(ctx, cmd.Args)
	case CmdAgree:
		return d.handleVote(ctx, sender, cmd.Args, model.ChoiceAgree)
	case CmdDisagree:
		return d.handleVote(ctx, sender, cmd.Args, model.ChoiceDisagree)
	case CmdFinalize:
		return d.handleFinalize(ctx, cmd.Args)
	case CmdShow:
		return FormatPending(d.Pending())
	case CmdHelp:
		return ReplyHelp
	default:
		return ReplyUnknownCommand
	}
}

func (d *Dispatcher) handleBet(ctx context.Context, args string) string {
	p, err := proposal.Parse(args)
	if err != nil {
		return ReplyInvalidFormat
	}
	bet, err := d.Propose(ctx, p.Prompt, p.Amount)
	if err != nil {
		return replyForError(err)
	}
	return fmt.Sprintf("New bet #%d proposed: \"%s\" with an amount of %s. Please respond with /agree %d or /disagree %d.",
		bet.ID, bet.Prompt, bet.Amount, bet.ID, bet.ID)
}

func (d *Dispatcher) handleVote(ctx context.Context, sender, args string, choice model.Choice) string {
	id, reply, ok := parseBetID(args)
	if !ok {
		return reply
	}
	tally, err := d.Vote(ctx, id, sender, choice)
	if err != nil {
		return replyForError(err)
	}
	return fmt.Sprintf("Someone has responded. There are now %d agrees and %d disagrees for Bet #%d.",
		tally.Agree, tally.Disagree, id)
}

func (d *Dispatcher) handleFinalize(ctx context.Context, args string) string {
	id, reply, ok := parseBetID(args)
	if !ok {
		return reply
	}
	res, err := d.Finalize(ctx, id)
	if err != nil {
		return replyForError(err)
	}
	return FormatResult(res)
}

// FormatResult renders a finalization for chat.
func FormatResult(res model.FinalizeResult) string {
	if res.Outcome == model.OutcomeAgreed {
		return fmt.Sprintf("Bet #%d finalized: Majority agreed to \"%s\" for %s.", res.ID, res.Prompt, res.Amount)
	}
	return fmt.Sprintf("Bet #%d finalized: Majority disagreed with \"%s\".", res.ID, res.Prompt)
}

// FormatPending renders the pending listing for chat.
func FormatPending(bets []model.PendingBet) string {
	if len(bets) == 0 {
		return ReplyNoActiveBets
	}
	var b strings.Builder
	b.WriteString("Active bets:")
	for _, bet := range bets {
		fmt.Fprintf(&b, "\nBet #%d: %s (%s)", bet.ID, bet.Prompt, bet.Amount)
	}
	return b.String()
}

// parseBetID reads the first argument as a bet id. A missing id and an id
// that is not a number get different replies.
func parseBetID(args string) (model.BetID, string, bool) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, ReplyMissingBetID, false
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(fields[0], "#"), 10, 64)
	if err != nil {
		return 0, ReplyNotFound, false
	}
	return model.BetID(n), "", true
}

func replyForError(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidBetFormat):
		return ReplyInvalidFormat
	case errors.Is(err, model.ErrImplausibleEvent):
		return ReplyImplausible
	case IsValidationFailure(err):
		return ReplyUnavailable
	case errors.Is(err, model.ErrBetNotFound):
		return ReplyNotFound
	case errors.Is(err, model.ErrBetResolved):
		return ReplyBetResolved
	default:
		return ReplyInternal
	}
}
