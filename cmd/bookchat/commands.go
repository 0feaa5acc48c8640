package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <message>",
		Short: "Send a single message without opening the stream",
		Long:  "Sends one message and prints the acknowledgment. The assistant's reply\narrives on the live stream; use the chat command to see it.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := opCtx()
			defer cancel()

			ack, err := app.API.Send(ctx, strings.Join(args, " "), app.SessionID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent as %s (session %s)\n", ack.MessageID, ack.SessionID)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the stored conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := opCtx()
			defer cancel()

			resp, err := app.API.History(ctx, app.SessionID, limit)
			if err != nil {
				return err
			}
			for _, msg := range resp.Messages {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", msg.Role, msg.Content)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d messages\n", len(resp.Messages), resp.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum messages to fetch")
	return cmd
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the conversation on the backend and locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := opCtx()
			defer cancel()

			if err := app.API.ClearHistory(ctx, app.SessionID); err != nil {
				return err
			}
			if err := app.Store.ClearMessages(ctx, app.SessionID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Conversation cleared.")
			return nil
		},
	}
}

func newSavedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "List the books saved by this session",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := opCtx()
			defer cancel()

			if err := app.Books.Sync(ctx); err != nil {
				return err
			}
			ids := app.Books.All()
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved books.")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <book-id>",
		Short: "Check whether a book is saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("book id must be a number: %q", args[0])
			}

			app, _, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := opCtx()
			defer cancel()

			saved, err := app.API.CheckSaved(ctx, id)
			if err != nil {
				return err
			}
			if saved {
				fmt.Fprintf(cmd.OutOrStdout(), "Book %d is saved.\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Book %d is not saved.\n", id)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "toggle <book-id>",
		Short: "Save or unsave a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("book id must be a number: %q", args[0])
			}

			app, _, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := opCtx()
			defer cancel()

			result, err := app.Books.Toggle(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	})
	return cmd
}

func newPruneCmd() *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove stale local session mirrors",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			age := maxAge
			if age == 0 {
				age = app.Config.Janitor.MaxAge
			}

			ctx, cancel := opCtx()
			defer cancel()

			removed, err := app.Store.Prune(ctx, age)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d session(s) older than %s.\n", removed, age)
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "prune sessions older than this (default: config janitor max_age)")
	return cmd
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
