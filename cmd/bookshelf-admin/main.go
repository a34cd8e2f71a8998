package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions are shared by every subcommand
type globalOptions struct {
	envFile string
	adminID string
	verbose bool
	asJSON  bool
}

func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "bookshelf-admin",
		Short: "Bookshelf moderation CLI",
		Long: `Bookshelf moderation command line interface

Runs moderation operations directly against the configured repository and
storage, reading the same environment as the server (DATABASE_URL,
REMOTE_STORAGE, UPLOAD_DIR, JWT_SECRET, ...).`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "env file loaded before the environment")
	rootCmd.PersistentFlags().StringVar(&opts.adminID, "admin-id", "", "admin user id recorded for moderation actions")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print results as JSON")

	rootCmd.AddCommand(NewPendingCommand(opts))
	rootCmd.AddCommand(NewDeleteRequestsCommand(opts))
	rootCmd.AddCommand(NewCountsCommand(opts))
	rootCmd.AddCommand(NewTransitionCommand(opts, "approve", "Approve a pending book", approve))
	rootCmd.AddCommand(NewTransitionCommand(opts, "reject", "Reject a pending book", reject))
	rootCmd.AddCommand(NewTransitionCommand(opts, "reject-delete", "Keep a book whose deletion was requested", rejectDelete))
	rootCmd.AddCommand(NewApproveDeleteCommand(opts))
	rootCmd.AddCommand(NewTokenCommand(opts))

	return rootCmd
}

// runtime holds the components built from the environment
type runtime struct {
	comps *config.Components
	admin bookshelf.Actor
}

func newRuntime(ctx context.Context, opts *globalOptions) (*runtime, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	comps, err := cfg.Build(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build service: %w", err)
	}

	admin := bookshelf.Actor{Role: bookshelf.RoleAdmin}
	if opts.adminID != "" {
		id, err := uuid.Parse(opts.adminID)
		if err != nil {
			comps.Close()
			return nil, fmt.Errorf("invalid --admin-id: %w", err)
		}
		admin.ID = id
	}

	return &runtime{comps: comps, admin: admin}, nil
}

func (r *runtime) Close() {
	r.comps.Close()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printBooks(w io.Writer, opts *globalOptions, books []*bookshelf.Book) error {
	if opts.asJSON {
		return printJSON(w, books)
	}
	if len(books) == 0 {
		fmt.Fprintln(w, "No books found")
		return nil
	}
	for _, b := range books {
		fmt.Fprintf(w, "%s  %-16s  %s by %s\n", b.ID, b.Status, b.Title, b.Author)
		if opts.verbose {
			fmt.Fprintf(w, "    owner:   %s\n", b.OwnerID)
			fmt.Fprintf(w, "    cover:   %s\n", b.Cover)
			fmt.Fprintf(w, "    content: %s\n", b.Content)
			fmt.Fprintf(w, "    created: %s\n", b.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}
