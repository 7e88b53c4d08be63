// Package repl runs the document chat assistant in a terminal.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Fixed terminal text.
const (
	Banner       = "Welcome to the Document Chat Assistant!"
	Hint         = "Type 'exit' to end the conversation."
	Prompt       = "You: "
	Farewell     = "Goodbye!"
	ErrorMessage = "Sorry, I encountered an error processing your message."

	clearCommand = "/clear"
	exitCommand  = "exit"
)

var rule = strings.Repeat("-", 50)

// Conversation is the chat state driven by the loop.
type Conversation interface {
	Respond(ctx context.Context, userInput string) (string, error)
	Clear()
}

// RenderFunc formats a reply for display.
type RenderFunc func(markdown string) (string, error)

// REPL reads user input, forwards it to a Conversation and prints replies.
type REPL struct {
	conv   Conversation
	in     LineReader
	out    io.Writer
	render RenderFunc
	styled bool

	promptStyle    lipgloss.Style
	assistantStyle lipgloss.Style
	dimStyle       lipgloss.Style
	errorStyle     lipgloss.Style
}

// Option configures a REPL.
type Option func(*REPL)

// WithRenderer formats replies, typically as terminal markdown.
func WithRenderer(fn RenderFunc) Option {
	return func(r *REPL) {
		r.render = fn
	}
}

// WithStyles colours the prompt and labels.
func WithStyles() Option {
	return func(r *REPL) {
		r.styled = true
	}
}

// New creates a REPL over conv.
func New(conv Conversation, in LineReader, out io.Writer, opts ...Option) *REPL {
	r := &REPL{
		conv:           conv,
		in:             in,
		out:            out,
		promptStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		assistantStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		dimStyle:       lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		errorStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewMarkdownRenderer renders replies with glamour, wrapped to width.
func NewMarkdownRenderer(width int) (RenderFunc, error) {
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	return func(markdown string) (string, error) {
		out, err := tr.Render(markdown)
		if err != nil {
			return "", err
		}
		return strings.Trim(out, "\n"), nil
	}, nil
}

// Run loops until the user types exit, input ends or ctx is cancelled.
// Model failures are reported and the loop continues.
func (r *REPL) Run(ctx context.Context) error {
	r.println(r.style(r.assistantStyle, Banner))
	r.println(r.style(r.dimStyle, Hint))
	r.println(r.style(r.dimStyle, rule))

	for {
		if err := ctx.Err(); err != nil {
			r.println("\n" + Farewell)
			return nil
		}

		r.println("")
		line, err := r.in.ReadLine(r.style(r.promptStyle, Prompt))
		if errors.Is(err, io.EOF) {
			r.println("\n" + Farewell)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		input := strings.TrimSpace(line)
		switch {
		case input == "":
			continue
		case strings.EqualFold(input, exitCommand):
			r.println("\n" + Farewell)
			return nil
		case strings.EqualFold(input, clearCommand):
			r.conv.Clear()
			r.println(r.style(r.dimStyle, "Conversation cleared."))
			continue
		}

		reply, err := r.conv.Respond(ctx, input)
		if err != nil {
			r.println("\n" + r.style(r.errorStyle, ErrorMessage))
			continue
		}
		r.printReply(reply)
	}
}

func (r *REPL) printReply(reply string) {
	label := r.style(r.assistantStyle, "Assistant:")
	if r.render == nil {
		r.println("\n" + label + " " + reply)
		return
	}
	rendered, err := r.render(reply)
	if err != nil {
		r.println("\n" + label + " " + reply)
		return
	}
	r.println("\n" + label + "\n" + rendered)
}

func (r *REPL) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

func (r *REPL) println(s string) {
	_, _ = fmt.Fprintln(r.out, s)
}
