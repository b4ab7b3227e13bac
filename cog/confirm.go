package cog

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/eolso/threadsafe"
	"github.com/google/uuid"
	"github.com/olympus-go/eris/utils"
)

// Outcome is the terminal state of a confirmation prompt.
type Outcome int

const (
	Confirmed Outcome = iota + 1
	Declined
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case Declined:
		return "declined"
	case TimedOut:
		return "timed_out"
	default:
		return "pending"
	}
}

const confirmPrefix = "confirm_"

const (
	notAllowedMessage = "You are not allowed to interact with this."
	tookTooLong       = "You took too long to respond."
)

type pendingView struct {
	invokerID string
	result    chan Outcome
	once      sync.Once
}

func (v *pendingView) resolve(o Outcome) {
	v.once.Do(func() {
		v.result <- o
	})
}

// Views tracks pending Yes/No prompts. One instance serves the whole process; its Handler is registered once.
type Views struct {
	pending *threadsafe.Map[string, *pendingView]
	isOwner func(userID string) bool
	logger  *slog.Logger
}

func NewViews(h slog.Handler, isOwner func(userID string) bool) *Views {
	return &Views{
		pending: threadsafe.NewMap[string, *pendingView](),
		isOwner: isOwner,
		logger:  slog.New(h).With(slog.String("component", "views")),
	}
}

// Confirm asks the invoker to confirm prompt and blocks until they click, timeout elapses or ctx is done. The
// guarded action should only run for Confirmed.
func (v *Views) Confirm(ctx context.Context, inv Invocation, prompt string, timeout time.Duration) (Outcome, error) {
	id := uuid.NewString()
	view := &pendingView{
		invokerID: inv.Author().ID,
		result:    make(chan Outcome, 1),
	}

	v.pending.Set(id, view)
	defer v.pending.Delete(id)

	msg, err := inv.Reply(Response{Content: prompt, Components: confirmButtons(id, true)})
	if err != nil {
		return TimedOut, err
	}

	var outcome Outcome
	select {
	case outcome = <-view.result:
	case <-time.After(timeout):
		outcome = TimedOut
	case <-ctx.Done():
		outcome = TimedOut
	}
	v.pending.Delete(id)

	content := prompt
	if outcome == TimedOut {
		content += "\n\n" + tookTooLong
	}
	if msg != nil {
		if err := inv.Edit(msg, Response{Content: content, Components: confirmButtons(id, false)}); err != nil {
			v.logger.Warn("failed to disable confirmation buttons", slog.String("error", err.Error()))
		}
	}

	return outcome, nil
}

func (v *Views) Handler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent ||
		!strings.HasPrefix(i.MessageComponentData().CustomID, confirmPrefix) {
		return
	}

	if err := v.HandleClick(NewComponentInvocation(s, i.Interaction)); err != nil {
		v.logger.Error("failed to answer confirmation click", slog.String("error", err.Error()))
	}
}

// HandleClick resolves the prompt a Yes/No button belongs to. Clicks by anyone but the invoker or a bot owner are
// rejected without touching the prompt.
func (v *Views) HandleClick(c *ComponentInvocation) error {
	id, answer, ok := parseConfirmID(c.CustomID())
	if !ok {
		return nil
	}

	view, ok := v.pending.Get(id)
	if !ok {
		_, err := c.Reply(Response{Content: "This prompt has expired.", Ephemeral: true})
		return err
	}

	userID := c.Author().ID
	if userID != view.invokerID && (v.isOwner == nil || !v.isOwner(userID)) {
		_, err := c.Reply(Response{Content: notAllowedMessage, Ephemeral: true})
		return err
	}

	if err := c.Acknowledge(); err != nil {
		return err
	}

	if answer == "yes" {
		view.resolve(Confirmed)
	} else {
		view.resolve(Declined)
	}

	return nil
}

func parseConfirmID(customID string) (string, string, bool) {
	rest, ok := strings.CutPrefix(customID, confirmPrefix)
	if !ok {
		return "", "", false
	}
	id, answer, ok := strings.Cut(rest, "_")
	if !ok || (answer != "yes" && answer != "no") {
		return "", "", false
	}
	return id, answer, true
}

func confirmButtons(id string, enabled bool) []discordgo.MessageComponent {
	yes := utils.Button().Id(confirmPrefix + id + "_yes").Label("Yes").Style(discordgo.SuccessButton).Enabled(enabled).Build()
	no := utils.Button().Id(confirmPrefix + id + "_no").Label("No").Style(discordgo.DangerButton).Enabled(enabled).Build()

	return []discordgo.MessageComponent{utils.ActionsRow().Button(yes).Button(no).Build()}
}
