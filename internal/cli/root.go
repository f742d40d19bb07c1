// Package cli wires the chat client commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"support-chat/internal/chatclient"
	"support-chat/internal/tui"
	"support-chat/internal/widget"
)

const defaultServerURL = "http://localhost:8080"

// NewRootCommand returns the chat command. It opens the terminal UI when
// stdin is a terminal and otherwise answers a single question read from stdin.
func NewRootCommand() *cobra.Command {
	var (
		serverURL string
		title     string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the Headstarter support assistant",
		Long: `Opens an interactive support chat against a running relay server.
When stdin is not a terminal the whole of stdin is sent as one question and
the reply is streamed to stdout.`,
		Example: `  # Interactive chat against a local relay
  $ chat

  # One-shot question
  $ echo "How do I reset my password?" | chat --server https://support.example.com`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := chatclient.New(serverURL)
			if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
				return tui.Run(cmd.Context(), client, title)
			}
			return runPipe(cmd.Context(), client, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	flags := cmd.Flags()
	flags.StringVarP(&serverURL, "server", "s", envOrDefault("CHAT_SERVER_URL", defaultServerURL), "relay server base URL (env CHAT_SERVER_URL)")
	flags.StringVar(&title, "title", "Headstarter Support", "window title")

	return cmd
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// runPipe sends stdin as one user message and copies the reply to out.
func runPipe(ctx context.Context, client tui.Streamer, in io.Reader, out io.Writer) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read question: %w", err)
	}

	chat := widget.New()
	history, ok := chat.Submit(string(data))
	if !ok {
		return errors.New("no question on stdin")
	}

	var decoder widget.Decoder
	var writeErr error
	err = client.Stream(ctx, history, func(p []byte) {
		if writeErr != nil {
			return
		}
		_, writeErr = io.WriteString(out, decoder.Decode(p))
	})
	if err == nil {
		err = writeErr
	}
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}

	tail := decoder.Flush() + "\n"
	_, err = io.WriteString(out, tail)
	return err
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
