// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/olegiv/wordbook-go/internal/analysis"
	"github.com/olegiv/wordbook-go/internal/config"
	"github.com/olegiv/wordbook-go/internal/fetch"
	"github.com/olegiv/wordbook-go/internal/identity"
	"github.com/olegiv/wordbook-go/internal/logging"
	"github.com/olegiv/wordbook-go/internal/migrate"
	"github.com/olegiv/wordbook-go/internal/model"
	"github.com/olegiv/wordbook-go/internal/remote"
	"github.com/olegiv/wordbook-go/internal/repo"
	"github.com/olegiv/wordbook-go/internal/session"
	"github.com/olegiv/wordbook-go/internal/store"
	"github.com/olegiv/wordbook-go/internal/transfer"
	"github.com/olegiv/wordbook-go/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	addWord := flag.String("add", "", "Add a vocabulary entry and exit")
	analyze := flag.Bool("analyze", false, "Enrich the added entry via the analysis API (with -add)")
	saveURL := flag.String("save-url", "", "Fetch a web page, extract the article and save it, then exit")
	list := flag.String("list", "", "Print entries of a kind (vocabulary|articles) and exit")
	exportPath := flag.String("export", "", "Export all records to a JSON file and exit")
	importPath := flag.String("import", "", "Import records from a JSON file and exit")
	overwrite := flag.Bool("overwrite", false, "Overwrite existing records on -import")
	loginUID := flag.String("login", "", "Sign in as the given user id (requires WORDBOOK_REDIS_URL)")
	loginEmail := flag.String("email", "", "E-mail for -login")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "wordbook - language-learning record keeper\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  WORDBOOK_DB_PATH               SQLite database path (default: ./data/wordbook.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  WORDBOOK_REDIS_URL             Redis URL for the per-user remote store (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  WORDBOOK_REDIS_PREFIX          Redis key prefix (default: wordbook:)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  WORDBOOK_ENV                   Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  WORDBOOK_LOG_LEVEL             Log level: debug|info|warn|error (default: info)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  WORDBOOK_OPENAI_API_KEY        API key for the text-analysis client (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "\nFor more information, see: https://github.com/olegiv/wordbook-go\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Printf("wordbook %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	opts := cliOptions{
		addWord:    *addWord,
		analyze:    *analyze,
		saveURL:    *saveURL,
		list:       *list,
		exportPath: *exportPath,
		importPath: *importPath,
		overwrite:  *overwrite,
		loginUID:   *loginUID,
		loginEmail: *loginEmail,
	}

	if err := run(opts); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

type cliOptions struct {
	addWord    string
	analyze    bool
	saveURL    string
	list       string
	exportPath string
	importPath string
	overwrite  bool
	loginUID   string
	loginEmail string
}

// oneShot reports whether the invocation performs a single action and exits
// instead of staying up watching for changes.
func (o cliOptions) oneShot() bool {
	return o.addWord != "" || o.saveURL != "" || o.list != "" ||
		o.exportPath != "" || o.importPath != ""
}

func run(opts cliOptions) error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	versionInfo := &version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	// Setup logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Ensure data directory exists
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	local := store.NewLocal(db)

	// Upgrade logger to also write WARN and ERROR logs to the event log
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, local))
	slog.SetDefault(logger)

	ctx := context.Background()

	sessionID, err := local.SessionID(ctx)
	if err != nil {
		return fmt.Errorf("loading session id: %w", err)
	}
	slog.Info("wordbook starting",
		"version", versionInfo.Version,
		"env", cfg.Env,
		"session_id", sessionID)

	// Remote store is optional; without it the app runs anonymous-only.
	deps := repo.Deps{
		Local:            local,
		Logger:           logger,
		SnapshotDebounce: cfg.SnapshotDebounce(),
	}
	var migrator session.Migrator
	if cfg.UseRemote() {
		remoteStore, err := remote.NewStoreFromURL(cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return fmt.Errorf("connecting to remote store: %w", err)
		}
		defer func() { _ = remoteStore.Close() }()
		deps.Remote = remoteStore
		migrator = migrate.NewCoordinator(local, remoteStore, logger)
		slog.Info("remote store connected", "prefix", cfg.RedisPrefix)
	}

	words := repo.New(repo.Vocabulary(), deps)
	defer words.Close()
	articles := repo.New(repo.Articles(), deps)
	defer articles.Close()

	provider := identity.NewProvider()
	switcher := session.NewSwitcher(provider, migrator, logger, words, articles)
	switcher.Start(ctx)
	defer switcher.Stop()

	if opts.loginUID != "" {
		if !cfg.UseRemote() {
			return fmt.Errorf("-login requires WORDBOOK_REDIS_URL to be set")
		}
		if err := provider.SignIn(opts.loginUID, opts.loginEmail); err != nil {
			return fmt.Errorf("signing in: %w", err)
		}
	}

	if opts.oneShot() {
		return runAction(ctx, cfg, opts, words, articles)
	}

	// Watch mode: print snapshots as they change until interrupted.
	cancelWords, err := words.Subscribe(ctx, func(entries []model.VocabularyEntry) {
		slog.Info("vocabulary updated", "count", len(entries))
	})
	if err != nil {
		return fmt.Errorf("subscribing to vocabulary: %w", err)
	}
	defer cancelWords()

	cancelArticles, err := articles.Subscribe(ctx, func(items []model.Article) {
		slog.Info("articles updated", "count", len(items))
	})
	if err != nil {
		return fmt.Errorf("subscribing to articles: %w", err)
	}
	defer cancelArticles()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	return nil
}

// runAction executes a single CLI action against the repositories.
func runAction(ctx context.Context, cfg *config.Config, opts cliOptions,
	words *repo.Repository[model.VocabularyEntry], articles *repo.Repository[model.Article]) error {

	switch {
	case opts.addWord != "":
		entry := model.VocabularyEntry{Word: opts.addWord}

		if opts.analyze {
			if !cfg.AnalysisEnabled() {
				return fmt.Errorf("-analyze requires WORDBOOK_OPENAI_API_KEY to be set")
			}
			client := analysis.NewClient(analysis.Options{
				APIKey:            cfg.OpenAIKey,
				Model:             cfg.AnalysisModel,
				TargetLang:        cfg.AnalysisTarget,
				RequestsPerSecond: cfg.AnalysisRPS,
			})
			result, err := client.Analyze(ctx, opts.addWord)
			if err != nil {
				return fmt.Errorf("analyzing text: %w", err)
			}
			entry.Explanation = result.Explanation
			entry.Translation = result.Translation
			entry.Tags = result.SuggestedTags
		}

		id, err := words.Add(ctx, entry)
		if err != nil {
			return fmt.Errorf("adding entry: %w", err)
		}
		fmt.Printf("added %q\n", id)
		return nil

	case opts.saveURL != "":
		article, err := fetch.NewFetcher().Article(ctx, opts.saveURL)
		if err != nil {
			return fmt.Errorf("fetching article: %w", err)
		}
		id, err := articles.Add(ctx, *article)
		if err != nil {
			return fmt.Errorf("saving article: %w", err)
		}
		fmt.Printf("saved %q (%s)\n", article.Title, id)
		return nil

	case opts.exportPath != "":
		exporter := transfer.NewExporter(words, articles, slog.Default())
		if err := exporter.ExportToFile(ctx, opts.exportPath); err != nil {
			return fmt.Errorf("exporting records: %w", err)
		}
		fmt.Printf("exported to %s\n", opts.exportPath)
		return nil

	case opts.importPath != "":
		importer := transfer.NewImporter(words, articles, slog.Default())
		result, err := importer.ImportFromFile(ctx, opts.importPath, transfer.ImportOptions{Overwrite: opts.overwrite})
		if err != nil {
			return fmt.Errorf("importing records: %w", err)
		}
		fmt.Printf("imported %d vocabulary (%d skipped), %d articles (%d skipped), %d errors\n",
			result.VocabularyImported, result.VocabularySkipped,
			result.ArticlesImported, result.ArticlesSkipped, len(result.Errors))
		return nil

	case opts.list != "":
		switch model.Kind(strings.ToLower(opts.list)) {
		case model.KindVocabulary:
			entries, err := words.Snapshot(ctx)
			if err != nil {
				return fmt.Errorf("reading vocabulary: %w", err)
			}
			for _, e := range entries {
				line := e.Word
				if e.Translation != "" {
					line += "\t" + e.Translation
				}
				fmt.Println(line)
			}
		case model.KindArticles:
			items, err := articles.Snapshot(ctx)
			if err != nil {
				return fmt.Errorf("reading articles: %w", err)
			}
			for _, a := range items {
				fmt.Printf("%s\t%s\n", a.ID, a.Title)
			}
		default:
			return fmt.Errorf("unknown kind %q (want vocabulary or articles)", opts.list)
		}
		return nil
	}

	return nil
}
