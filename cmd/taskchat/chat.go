package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"taskchat/chat"
)

func chatCmd() *cobra.Command {
	var (
		owner          string
		conversationID string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with your tasks from the terminal",
		Long: `Start an interactive chat against the configured task store.

Type a request such as "add a task to buy milk" and press enter.
Type "exit" or press Ctrl-D to leave.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			// logs go to stderr so they do not interleave with replies
			a, err := newApp(ctx, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			if owner == "" {
				owner = a.config.ChatOwner
			}
			return repl(ctx, a.engine, owner, conversationID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&owner, "owner", "o", "", "owner of new tasks (defaults to CHAT_OWNER)")
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "conversation id to continue")

	return cmd
}

func repl(ctx context.Context, engine *chat.Engine, owner, conversationID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "exit" || text == "quit" {
			return nil
		}
		if text != "" {
			reply, err := engine.HandleTurn(ctx, chat.Turn{ConversationID: conversationID, Owner: owner, Text: text})
			if err != nil {
				return err
			}
			conversationID = reply.ConversationID
			fmt.Fprintln(out, reply.Text)
		}
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}
