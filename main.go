package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/coreybb/rhymera/api"
	"github.com/coreybb/rhymera/auth"
	"github.com/coreybb/rhymera/datastore"
	"github.com/coreybb/rhymera/ebook"
	"github.com/coreybb/rhymera/generation"
	"github.com/coreybb/rhymera/models"
	"github.com/coreybb/rhymera/mongostore"
	"github.com/coreybb/rhymera/processing"
	rh "github.com/coreybb/rhymera/route-handlers"
	"github.com/coreybb/rhymera/storage"
)

const (
	setupTimeout    = 15 * time.Second
	shutdownTimeout = 15 * time.Second
)

// CLI is the command structure of the rhymera binary.
type CLI struct {
	Config string `help:"Path to a YAML config file (defaults to ./rhymera.yaml when present)" type:"path"`

	Serve    ServeCmd    `cmd:"" default:"1" help:"Run the HTTP API"`
	Generate GenerateCmd `cmd:"" help:"Generate a book from the command line and write it as a PDF or EPUB"`
}

type ServeCmd struct {
	Port string `help:"Port to listen on (overrides config)"`
}

type GenerateCmd struct {
	Pages int    `help:"Number of pages" default:"5"`
	Type  string `help:"Book type: story, poem, nursery_rhyme, propaganda or educational" default:"story"`
	Topic string `help:"What the book is about" required:""`
	Out   string `short:"o" help:"Output file; a .epub extension writes EPUB" default:"book.pdf" type:"path"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("rhymera"),
		kong.Description("Generates illustrated children's books."),
		kong.UsageOnError(),
	)

	v, err := newViper(cli.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := loadConfig(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat)

	if err := kctx.Run(cfg); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func (s *ServeCmd) Run(cfg config) error {
	if s.Port != "" {
		cfg.Port = s.Port
	}
	if cfg.SecretKey == "" {
		return fmt.Errorf("auth.secret_key (SECRET_KEY) must be set")
	}

	setupCtx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	st, err := setupStores(setupCtx, cfg)
	if err != nil {
		return fmt.Errorf("store setup failed: %w", err)
	}
	defer st.close()

	pipeline, err := setupPipeline(setupCtx, cfg, st.books, st.blobs)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenIssuer(cfg.SecretKey, cfg.TokenTTL)
	if err != nil {
		return err
	}

	handlers := api.Handlers{
		Auth:     rh.NewAuthHandler(st.users, tokens),
		Books:    rh.NewBookHandler(st.books, ebook.NewPDFRenderer(st.blobs), ebook.NewEPUBRenderer(st.blobs)),
		Generate: rh.NewGenerateHandler(pipeline, cfg.MaxPages),
		Images:   rh.NewImageHandler(st.blobs),
	}
	router := api.SetupRoutes(handlers, tokens, api.NewIPLimiter(cfg.LoginRatePerMinute))

	return startServer(cfg.Port, router)
}

// Run generates a book anonymously, so nothing is persisted, and writes the rendered document.
func (g *GenerateCmd) Run(cfg config) error {
	bookType, ok := models.ParseBookType(g.Type)
	if !ok {
		return fmt.Errorf("unknown book type %q", g.Type)
	}
	req := models.BookRequest{PageCount: g.Pages, BookType: bookType, Topic: g.Topic}
	if err := req.Validate(cfg.MaxPages); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := setupPipeline(ctx, cfg, nil, nil)
	if err != nil {
		return err
	}
	book, err := pipeline.Generate(ctx, req, nil)
	if err != nil {
		return fmt.Errorf("book generation failed: %w", err)
	}

	var renderer rh.Renderer = ebook.NewPDFRenderer(nil)
	if strings.EqualFold(filepath.Ext(g.Out), ".epub") {
		renderer = ebook.NewEPUBRenderer(nil)
	}
	data, err := renderer.Render(ctx, book)
	if err != nil {
		return err
	}
	if err := os.WriteFile(g.Out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", g.Out, err)
	}

	slog.Info("Book written", "title", book.Title, "pages", book.PageCount, "path", g.Out)
	return nil
}

func setupPipeline(ctx context.Context, cfg config, books processing.BookStore, blobs storage.BlobStore) (*processing.BookPipeline, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini.api_key (GOOGLE_API_TOKEN) must be set")
	}
	client, err := generation.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}

	text := generation.NewTextGenerator(client.Models, cfg.TextModel)
	illustrations := generation.NewIllustrationGenerator(client.Models, cfg.ImageModel, cfg.PageStyle, cfg.ImageRatePerMinute)
	return processing.NewBookPipeline(text, illustrations, books, blobs, processing.PipelineOptions{
		PageStyle:  cfg.PageStyle,
		CoverStyle: cfg.CoverStyle,
	}), nil
}

type stores struct {
	books processing.BookStore
	users rh.UserStore
	blobs storage.BlobStore
	close func()
}

func setupStores(ctx context.Context, cfg config) (*stores, error) {
	var (
		st  *stores
		err error
	)
	if cfg.DatabaseDriver == "mongo" {
		st, err = setupMongo(ctx, cfg)
	} else {
		st, err = setupDatabase(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}

	if cfg.BlobBackend == "filesystem" {
		st.blobs = storage.NewFileBlobStore(cfg.BlobDir)
	}
	st.blobs = storage.NewCachedBlobStore(st.blobs, cfg.BlobCacheTTL)

	slog.Info("Stores ready", "driver", cfg.DatabaseDriver, "blob_backend", cfg.BlobBackend)
	return st, nil
}

func setupDatabase(ctx context.Context, cfg config) (*stores, error) {
	dialect, err := datastore.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		return nil, err
	}
	db, err := datastore.Open(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := datastore.EnsureSchema(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	return &stores{
		books: datastore.NewBookRepository(db, dialect),
		users: datastore.NewUserRepository(db, dialect),
		blobs: datastore.NewImageRepository(db, dialect),
		close: func() {
			if err := db.Close(); err != nil {
				slog.Warn("Failed to close database", "error", err)
			}
		},
	}, nil
}

func setupMongo(ctx context.Context, cfg config) (*stores, error) {
	client, err := mongostore.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	disconnect := func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			slog.Warn("Failed to disconnect from MongoDB", "error", err)
		}
	}

	db := client.Database(cfg.DatabaseName)
	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		disconnect()
		return nil, err
	}
	blobs, err := mongostore.NewGridFSBlobStore(db)
	if err != nil {
		disconnect()
		return nil, err
	}

	return &stores{
		books: mongostore.NewBookRepository(db),
		users: mongostore.NewUserRepository(db),
		blobs: blobs,
		close: disconnect,
	}, nil
}

func startServer(port string, router http.Handler) error {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-shutdownSignal:
	}
	slog.Info("Shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("Server gracefully stopped")
	return nil
}
