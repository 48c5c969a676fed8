// Package main is the labnoted CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hyperjump/labnoted/internal/ai"
	"github.com/hyperjump/labnoted/internal/cli"
	"github.com/hyperjump/labnoted/internal/config"
	"github.com/hyperjump/labnoted/internal/embedding"
	"github.com/hyperjump/labnoted/internal/extract"
	"github.com/hyperjump/labnoted/internal/indexer"
	"github.com/hyperjump/labnoted/internal/keyword"
	"github.com/hyperjump/labnoted/internal/models"
	"github.com/hyperjump/labnoted/internal/oauth"
	"github.com/hyperjump/labnoted/internal/prompts"
	"github.com/hyperjump/labnoted/internal/quality"
	"github.com/hyperjump/labnoted/internal/reindex"
	"github.com/hyperjump/labnoted/internal/search"
	"github.com/hyperjump/labnoted/internal/server"
	"github.com/hyperjump/labnoted/internal/storage"
	"github.com/hyperjump/labnoted/internal/vector"
	"github.com/hyperjump/labnoted/internal/watcher"
	"github.com/hyperjump/labnoted/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/labnoted/config.yaml"

// loadConfig loads config from path. If path is the default and the file does not exist,
// it tries config.yaml in the current directory (for development).
func loadConfig(path string) (*config.Config, string, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if path == defaultConfigPath {
			if unwrap := errors.Unwrap(err); unwrap != nil && os.IsNotExist(unwrap) {
				if cwd, cwdErr := os.Getwd(); cwdErr == nil {
					fallback := filepath.Join(cwd, "config.yaml")
					if _, statErr := os.Stat(fallback); statErr == nil {
						cfg, loadErr := config.Load(fallback)
						if loadErr != nil {
							return nil, "", loadErr
						}
						return cfg, fallback, nil
					}
				}
			}
		}
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "index":
		runIndex()
	case "ai-chat":
		runAIChat()
	case "oauth-status":
		runOAuthStatus()
	case "version", "--version", "-v":
		fmt.Printf("labnoted version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, _ := utils.NewLogger(cfg.Debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	var watchSvc *watcher.Watcher
	var watchCancel context.CancelFunc
	if len(cfg.Watch.Directories) > 0 {
		trigger := func(string) {
			if _, err := components.Reindex.Start(context.Background()); err != nil {
				logger.Warn("watch-triggered reindex failed to start", zap.Error(err))
			}
		}
		watchSvc = watcher.NewWatcher(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			trigger,
			trigger,
			watcher.WithLogger(logger),
		)
		var watchCtx context.Context
		watchCtx, watchCancel = context.WithCancel(context.Background())
		defer watchCancel()
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Engine,
		components.Router,
		components.OAuth,
		components.Gate,
		components.Reindex,
		&cfg.Server,
		logger,
		version,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down...")
	if watchCancel != nil {
		watchCancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so `labnoted search "query" -limit 5`
// would otherwise leave -limit unparsed.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	limit := fs.Int("limit", 10, "number of results")
	searchType := fs.String("type", "", "search type (hybrid|fts|semantic|trigram)")
	format := fs.String("format", "text", "output format (text|compact|json)")
	searchArgs := searchArgsReorder(os.Args[2:])
	_ = fs.Parse(searchArgs)

	if fs.NArg() < 1 {
		fmt.Println("Usage: labnoted search [flags] <query>")
		os.Exit(1)
	}
	queryStr := fs.Arg(0)

	query := &models.SearchQuery{
		Query: queryStr,
		Type:  models.SearchType(*searchType),
		Limit: *limit,
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		resp, err := searchViaHTTP(*serverURL, query)
		if err != nil {
			fmt.Printf("Search failed: %v\n", err)
			os.Exit(1)
		}
		response = resp
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Printf("Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, _ := utils.NewLogger(cfg.Debug)
		defer logger.Sync()

		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("failed to initialize", zap.Error(err))
		}
		defer components.Close()

		resp, err := components.Engine.Search(context.Background(), query)
		if err != nil {
			fmt.Printf("Search failed: %v\n", err)
			os.Exit(1)
		}
		response = resp
	}

	_ = cli.WriteSearchResults(os.Stdout, response, cli.SearchOutputFormat(*format))
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	u := fmt.Sprintf("%s/search?q=%s", serverURL, url.QueryEscape(query.Query))
	if query.Type != "" {
		u += "&type=" + url.QueryEscape(string(query.Type))
	}
	if query.Limit > 0 {
		u += fmt.Sprintf("&limit=%d", query.Limit)
	}
	resp, err := http.Get(u)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

// runIndex extracts a local attachment file's text and attaches it to a note, then
// reindexes that note. This is the "local-capture" ingestion path referenced by the
// watcher: a way to get text into the core without depending on note-repository sync.
func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	noteID := fs.String("note", "", "external note id to attach this file's text to (required)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 || *noteID == "" {
		fmt.Println("Usage: labnoted index --note <external-id> [flags] <file>")
		os.Exit(1)
	}
	filePath := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, _ := utils.NewLogger(cfg.Debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	note, err := components.Storage.GetNote(ctx, *noteID)
	if err != nil {
		fmt.Printf("Note %q not found: %v\n", *noteID, err)
		os.Exit(1)
	}

	text, err := components.Extractor.Extract(filePath)
	status := models.ExtractionCompleted
	if err != nil {
		status = models.ExtractionFailed
		logger.Warn("attachment extraction failed", zap.String("path", filePath), zap.Error(err))
	}
	attachment := &models.AttachmentText{
		NoteHandle: note.Handle,
		Filename:   filepath.Base(filePath),
		Text:       text,
		Status:     status,
	}
	existing, err := components.Storage.GetAttachmentTexts(ctx, note.Handle)
	if err != nil {
		fmt.Printf("Failed to load existing attachments: %v\n", err)
		os.Exit(1)
	}
	texts := append(existing, attachment)
	if err := components.Storage.ReplaceAttachmentTexts(ctx, note.Handle, texts); err != nil {
		fmt.Printf("Failed to persist attachment text: %v\n", err)
		os.Exit(1)
	}

	n, err := components.Indexer.Reindex(ctx, note.Handle)
	if err != nil {
		fmt.Printf("Reindexing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Attached %s to %s and reindexed (%d chunks)\n", attachment.Filename, *noteID, n)
}

// runAIChat makes a single provider call from the terminal, bypassing the HTTP layer,
// for smoke-testing provider wiring.
func runAIChat() {
	fs := flag.NewFlagSet("ai-chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	feature := fs.String("feature", "insight", "feature/task type (insight|search_qa|writing|spellcheck|template|summarize)")
	model := fs.String("model", "", "model id (empty = router default)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: labnoted ai-chat [flags] <content>")
		os.Exit(1)
	}
	content := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, _ := utils.NewLogger(cfg.Debug)
	defer logger.Sync()

	router := ai.NewRouterFromConfig(context.Background(), &cfg.AI, logger)

	messages, err := prompts.Build(prompts.TaskType(*feature), content, nil)
	if err != nil {
		fmt.Printf("Unknown feature %q: %v\n", *feature, err)
		os.Exit(1)
	}

	var modelPtr *string
	if *model != "" {
		modelPtr = model
	}
	resp, err := router.Chat(context.Background(), models.ChatRequest{
		Feature:  *feature,
		Messages: messages,
		Model:    modelPtr,
	})
	if err != nil {
		fmt.Printf("Chat failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("[%s/%s]\n%s\n", resp.Provider, resp.Model, resp.Content)
}

func runOAuthStatus() {
	fs := flag.NewFlagSet("oauth-status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, _ := utils.NewLogger(cfg.Debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if len(cfg.OAuth.Providers) == 0 {
		fmt.Println("No OAuth providers configured.")
		return
	}
	for name := range cfg.OAuth.Providers {
		configured, authMode := components.OAuth.ConfigStatus(name)
		fmt.Printf("%-16s configured=%-5v auth_mode=%s\n", name, configured, authMode)
	}
}

// Components holds initialized services shared by the server and CLI subcommands.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	VectorIndex  vector.VectorIndex
	KeywordIndex keyword.KeywordIndex
	Extractor    *extract.Extractor
	Engine       *search.Engine
	Indexer      *indexer.Indexer
	Router       *ai.Router
	OAuth        *oauth.Service
	Gate         *quality.Gate
	Reindex      *reindex.Driver
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := embedding.NewFromConfig(&cfg.Embedding)
	if err != nil {
		logger.Warn("falling back to mock embedder", zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}

	vectorIndex, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	chunker := embedding.NewChunker(
		cfg.Embedding.TokenChunkSize,
		cfg.Embedding.TokenOverlap,
		cfg.Embedding.CharChunkSize,
		cfg.Embedding.CharOverlap,
	)

	engine := search.NewEngine(store, embedder, vectorIndex, keywordIndex, &cfg.Search, logger)
	idx := indexer.New(store, embedder, vectorIndex, keywordIndex, chunker, logger)

	router := ai.NewRouterFromConfig(context.Background(), &cfg.AI, logger)
	oauthSvc, err := oauth.NewService(&cfg.OAuth, store)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize oauth service: %w", err)
	}
	gate := quality.NewGate(router, &cfg.Quality)
	reindexDriver := reindex.New(store, idx, logger)

	return &Components{
		Storage:      store,
		Embedder:     embedder,
		VectorIndex:  vectorIndex,
		KeywordIndex: keywordIndex,
		Extractor:    extract.NewExtractor(),
		Engine:       engine,
		Indexer:      idx,
		Router:       router,
		OAuth:        oauthSvc,
		Gate:         gate,
		Reindex:      reindexDriver,
	}, nil
}

func printUsage() {
	fmt.Println(`labnoted - hybrid search and AI routing core for research notes

Usage:
  labnoted server [flags]                    Start the HTTP server
  labnoted search [flags] <query>            Search notes
  labnoted index --note <id> [flags] <file>  Attach a local file's text to a note and reindex it
  labnoted ai-chat [flags] <content>         One-shot AI chat call (bypasses HTTP)
  labnoted oauth-status [flags]              Show configured OAuth providers' status
  labnoted version                           Show version
  labnoted help                              Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/labnoted/config.yaml)

Search Flags:
  --config string   Config file path (for direct storage mode)
  --server string   Server URL (default: http://localhost:8080). Use empty to access storage directly.
  --limit int       Number of results (default: 10)
  --type string     Search type: hybrid|fts|semantic|trigram (default: hybrid)
  --format string   Output format: text|compact|json (default: text)

Index Flags:
  --config string   Config file path
  --note string     External note id to attach this file's text to (required)

AI Chat Flags:
  --config string   Config file path
  --feature string  Task type: insight|search_qa|writing|spellcheck|template|summarize (default: insight)
  --model string    Model id (empty = router default)

Examples:
  labnoted server
  labnoted search "PCR protocol"
  labnoted index --note note-123 protocol.pdf
  labnoted ai-chat --feature insight "What did I learn about PCR this week?"
  labnoted oauth-status`)
}
