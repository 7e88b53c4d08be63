package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ashureev/docchat/internal/conversation"
	"github.com/ashureev/docchat/internal/logging"
	"github.com/ashureev/docchat/internal/repl"
)

const defaultWrapWidth = 100

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in the terminal (default)",
	Long: `Starts an interactive conversation. Type 'exit' to leave and '/clear' to
start over with fresh guidance context.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger := logging.NewText(logging.ParseLevel(level, slog.LevelWarn))
	slog.SetDefault(logger)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	c, err := newCore(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer c.close()

	ctrl := conversation.NewController(c.assembler, c.model, logger)
	loop, closeReader := newREPL(ctrl, logger)
	defer closeReader()

	return loop.Run(ctx)
}

// newREPL uses line editing and markdown rendering on a terminal, and plain
// line reads otherwise.
func newREPL(conv repl.Conversation, logger *slog.Logger) (*repl.REPL, func()) {
	stdinTTY := term.IsTerminal(int(os.Stdin.Fd()))
	stdoutTTY := term.IsTerminal(int(os.Stdout.Fd()))

	if !stdinTTY {
		return repl.New(conv, repl.NewPlainReader(os.Stdin, os.Stdout), os.Stdout), func() {}
	}

	reader := repl.NewLinerReader(repl.DefaultHistoryFile())
	closeReader := func() {
		if err := reader.Close(); err != nil {
			logger.Debug("Failed to close line reader", "error", err)
		}
	}

	if !stdoutTTY {
		return repl.New(conv, reader, os.Stdout), closeReader
	}

	width := defaultWrapWidth
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && w < width {
		width = w
	}
	opts := []repl.Option{repl.WithStyles()}
	if render, err := repl.NewMarkdownRenderer(width); err == nil {
		opts = append(opts, repl.WithRenderer(render))
	} else {
		logger.Warn("Markdown rendering disabled", "error", err)
	}
	return repl.New(conv, reader, os.Stdout, opts...), closeReader
}

var _ repl.Conversation = (*conversation.Controller)(nil)

