package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Chat with an assistant grounded in your guidance documents",
	Long: `docchat answers questions with a hosted language model, adding guidance
documents read from an S3 bucket (or a local directory) to the first message
of every conversation.

Run without a subcommand to chat in the terminal.`,
	SilenceUsage: true,
	RunE:         runChat,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("model", "", "Model ID (overrides MODEL_ID)")
	rootCmd.PersistentFlags().String("bucket", "", "Bucket holding guidance documents (overrides DOCS_BUCKET)")
	rootCmd.PersistentFlags().String("docs-dir", "", "Read guidance documents from a local directory instead of S3")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}
