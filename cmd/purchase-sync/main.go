package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joseph-ayodele/purchase-sync/internal/app"
	"github.com/joseph-ayodele/purchase-sync/internal/common"
	"github.com/joseph-ayodele/purchase-sync/internal/mailbox"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		inmem    = flag.Bool("inmem", false, "use in-memory SQLite database")
		sqlite   = flag.String("sqlite", "", "use a SQLite database file instead of DB_URL")
		dir      = flag.String("dir", "", "mailbox root holding <user>/<id>.eml files (default MAILBOX_DIR)")
		users    = flag.String("users", "", "comma-separated user ids (default: every directory under --dir)")
		sinceStr = flag.String("since", "", "only messages received on or after YYYY-MM-DD (default: now - SYNC_LOOKBACK)")
		out      = flag.String("out", "", "write the review queue as XLSX to this path")
		all      = flag.Bool("all", false, "export every purchase instead of the review queue")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		return 1
	}
	if *dir != "" {
		cfg.Sync.MailboxDir = *dir
	}
	if err := cfg.Validate(!*inmem && *sqlite == ""); err != nil {
		printError("Error: %v\n", err)
		return 2
	}

	since := time.Now().Add(-cfg.Sync.Lookback)
	if cfg.Sync.Lookback <= 0 {
		since = time.Time{}
	}
	if *sinceStr != "" {
		parsed, err := time.Parse(time.DateOnly, *sinceStr)
		if err != nil {
			printError("Error: invalid --since date format, use YYYY-MM-DD: %v\n", err)
			return 1
		}
		since = parsed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mb := mailbox.NewDir(cfg.Sync.MailboxDir, logger)
	a, err := app.Build(ctx, cfg, app.Options{InMemory: *inmem, SQLitePath: *sqlite, Mailbox: mb}, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return 1
	}
	defer a.Close()

	userIDs := splitList(*users)
	if len(userIDs) == 0 {
		userIDs, err = mb.Users(ctx)
		if err != nil {
			logger.Error("failed to list users", "dir", cfg.Sync.MailboxDir, "error", err)
			return 1
		}
	}
	logger.Info("sync starting", "users", len(userIDs), "since", since.Format(time.DateOnly), "dir", cfg.Sync.MailboxDir)

	reports, err := a.Service.SyncUsers(ctx, userIDs, since)
	exitCode := 0
	if err != nil {
		logger.Error("sync finished with errors", "error", err)
		exitCode = 1
	}

	synced, failed := 0, 0
	for _, r := range reports {
		synced += r.Synced
		failed += r.Failed
		for _, e := range r.Errors {
			logger.Warn("message failed", "user_id", r.UserID, "email_id", e.EmailID, "error", e.Err)
		}
		logger.Info("user synced",
			"user_id", r.UserID,
			"synced", r.Synced,
			"ignored", r.Ignored,
			"not_order", r.NotOrder,
			"failed", r.Failed,
			"skipped", r.Skipped,
		)
	}

	if *out != "" {
		if err := writeExport(ctx, a, *out, *all, userIDs); err != nil {
			logger.Error("failed to export purchases", "error", err)
			return 1
		}
		logger.Info("export written", "output", *out)
	}

	logger.Info("sync complete", "users", len(reports), "purchases_synced", synced, "messages_failed", failed)
	return exitCode
}

func writeExport(ctx context.Context, a *app.App, out string, all bool, users []string) error {
	userID := ""
	if len(users) == 1 {
		userID = users[0]
	}
	var (
		data []byte
		err  error
	)
	if all {
		data, err = a.Export.ExportPurchasesXLSX(ctx, userID)
	} else {
		data, err = a.Export.ExportReviewQueueXLSX(ctx, userID)
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	return os.WriteFile(out, data, 0o644)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
