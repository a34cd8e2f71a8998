package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/api"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/config"
)

// NewPendingCommand lists books waiting for approval
func NewPendingCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List books waiting for approval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			books, err := rt.comps.Service.ListPending(cmd.Context())
			if err != nil {
				return err
			}
			return printBooks(cmd.OutOrStdout(), opts, books)
		},
	}
}

// NewDeleteRequestsCommand lists books whose owners asked for deletion
func NewDeleteRequestsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-requests",
		Short: "List books with a pending deletion request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			books, err := rt.comps.Service.ListDeleteRequested(cmd.Context())
			if err != nil {
				return err
			}
			return printBooks(cmd.OutOrStdout(), opts, books)
		},
	}
}

// NewCountsCommand prints the outstanding moderation work
func NewCountsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show the number of books waiting for a decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			counts, err := rt.comps.Service.ModerationCounts(cmd.Context())
			if err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), counts)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pending:          %d\n", counts.Pending)
			fmt.Fprintf(cmd.OutOrStdout(), "Delete requested: %d\n", counts.DeleteRequested)
			fmt.Fprintf(cmd.OutOrStdout(), "Total:            %d\n", counts.Total)
			return nil
		},
	}
}

type transitionFunc func(ctx context.Context, svc bookshelf.Service, id uuid.UUID, actor bookshelf.Actor) (*bookshelf.Book, error)

func approve(ctx context.Context, svc bookshelf.Service, id uuid.UUID, actor bookshelf.Actor) (*bookshelf.Book, error) {
	return svc.Approve(ctx, id, actor)
}

func reject(ctx context.Context, svc bookshelf.Service, id uuid.UUID, actor bookshelf.Actor) (*bookshelf.Book, error) {
	return svc.Reject(ctx, id, actor)
}

func rejectDelete(ctx context.Context, svc bookshelf.Service, id uuid.UUID, actor bookshelf.Actor) (*bookshelf.Book, error) {
	return svc.RejectDelete(ctx, id, actor)
}

// NewTransitionCommand creates a command applying a status transition to one book
func NewTransitionCommand(opts *globalOptions, use, short string, fn transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <book-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid book id: %w", err)
			}

			rt, err := newRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			book, err := fn(cmd.Context(), rt.comps.Service, id, rt.admin)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), book)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Book %s is now %s\n", book.ID, book.Status)
			return nil
		},
	}
}

// NewApproveDeleteCommand removes a book and its files
func NewApproveDeleteCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "approve-delete <book-id>",
		Short: "Approve a deletion request and remove the book with its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid book id: %w", err)
			}

			rt, err := newRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := rt.comps.Service.ApproveDelete(cmd.Context(), id, rt.admin)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Book %s deleted (cover: %s, content: %s)\n", report.BookID, report.Cover, report.Content)
			return nil
		},
	}
}

// NewTokenCommand issues a bearer token signed with the server secret
func NewTokenCommand(opts *globalOptions) *cobra.Command {
	var userID string
	var role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := uuid.New()
			if userID != "" {
				parsed, err := uuid.Parse(userID)
				if err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
				id = parsed
			}

			actor := bookshelf.Actor{ID: id, Role: bookshelf.Role(role)}
			switch actor.Role {
			case bookshelf.RoleAdmin, bookshelf.RoleWriter, bookshelf.RoleReader:
			default:
				return fmt.Errorf("invalid --role %q (use admin, writer or reader)", role)
			}

			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}

			token, err := api.IssueToken(api.NewTokenAuth(cfg.JWTSecret), actor, ttl)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]string{"user_id": id.String(), "role": role, "token": token})
			}
			if opts.verbose {
				fmt.Fprintf(cmd.OutOrStdout(), "User: %s (%s)\n", id, role)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (random when empty)")
	cmd.Flags().StringVar(&role, "role", string(bookshelf.RoleWriter), "role claim: admin, writer or reader")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")

	return cmd
}
