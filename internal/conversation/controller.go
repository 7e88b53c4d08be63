package conversation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ashureev/docchat/internal/domain"
)

// GenericErrorMessage is shown to users whenever a reply cannot be produced.
const GenericErrorMessage = "I encountered an error processing your message."

// ContextSource supplies guidance text for a topic.
type ContextSource interface {
	ContextFor(ctx context.Context, topic string) string
}

// Model produces a reply for a transcript.
type Model interface {
	Invoke(ctx context.Context, turns []domain.Turn) (string, error)
}

// State is the lifecycle phase of a conversation.
type State int

const (
	// Fresh means the model has not replied yet.
	Fresh State = iota
	// Active means the model has replied at least once.
	Active
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// Controller runs one conversation. It is not safe for concurrent use.
type Controller struct {
	id         string
	docs       ContextSource
	model      Model
	transcript Transcript
	prompt     PromptBuilder
	history    []domain.Turn
	replied    bool
	logger     *slog.Logger
}

// NewController creates a conversation in the Fresh state.
func NewController(docs ContextSource, model Model, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		id:     uuid.NewString(),
		docs:   docs,
		model:  model,
		logger: logger,
	}
}

// ID identifies the current conversation. It changes on Clear.
func (c *Controller) ID() string {
	return c.id
}

// State reports whether the conversation has started. A failed first call
// leaves it Fresh even though the user turn is already in the transcript.
func (c *Controller) State() State {
	if c.replied {
		return Active
	}
	return Fresh
}

// Respond appends userInput to the transcript, sends the transcript to the
// model and records the reply. The first message of a conversation carries
// the guidance context.
//
// On error the user turn stays in the transcript and is sent again with the
// next message.
func (c *Controller) Respond(ctx context.Context, userInput string) (string, error) {
	turnText := userInput
	if !c.prompt.Injected() {
		docContext := c.docs.ContextFor(ctx, userInput)
		turnText = c.prompt.Build(userInput, docContext)
		c.logger.Debug("context injected",
			"conversation_id", c.id,
			"context_length", len(docContext),
		)
	}

	c.transcript.Append(domain.RoleUser, turnText)
	c.history = append(c.history, domain.Turn{Role: domain.RoleUser, Text: userInput})

	reply, err := c.model.Invoke(ctx, c.transcript.Turns())
	if err != nil {
		c.logger.Warn("failed to get model response",
			"conversation_id", c.id,
			"turns", c.transcript.Len(),
			"error", err,
		)
		return "", err
	}

	c.transcript.Append(domain.RoleAssistant, reply)
	c.replied = true
	c.history = append(c.history, domain.Turn{Role: domain.RoleAssistant, Text: reply})
	return reply, nil
}

// Turns returns the transcript as sent to the model.
func (c *Controller) Turns() []domain.Turn {
	return c.transcript.Turns()
}

// History returns the conversation as the user typed it, without the
// injected guidance context.
func (c *Controller) History() []domain.Turn {
	out := make([]domain.Turn, len(c.history))
	copy(out, c.history)
	return out
}

// Clear starts a new conversation: the transcript is emptied and the next
// message carries the guidance context again.
func (c *Controller) Clear() {
	c.transcript.Reset()
	c.prompt.Reset()
	c.history = nil
	c.replied = false
	c.id = uuid.NewString()
}
