package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/oselz/docchat/internal/api"
	"github.com/oselz/docchat/internal/chat"
	"github.com/oselz/docchat/internal/config"
	"github.com/oselz/docchat/internal/extract"
	"github.com/oselz/docchat/internal/files"
	"github.com/oselz/docchat/internal/ingest"
	"github.com/oselz/docchat/internal/llm"
	"github.com/oselz/docchat/internal/ocr"
	"github.com/oselz/docchat/internal/retrieval"
	"github.com/oselz/docchat/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docchat HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the knowledge base over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

// app bundles the wired components shared by the serve and mcp commands.
type app struct {
	cfg       config.Config
	store     *storage.Store
	files     *files.Store
	retriever *retrieval.Retriever
	pipeline  *ingest.Pipeline
	chat      *chat.Service
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	fileStore, err := files.NewStore(cfg.Storage.UploadDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening upload store: %w", err)
	}

	ocrReader := ocr.NewReader(ocr.NewTesseract(""), cfg.Ingest.OCRDPI)
	extractor := extract.New(cfg.Ingest.MinTextChars, ocrReader.Text)

	client := llm.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.EmbedModel, cfg.OpenAI.ChatModel)

	chunkStore := retrieval.NewChunkStore(store.DB())
	retriever := retrieval.NewRetriever(client, chunkStore, cfg.Retrieval.TopK, float32(cfg.Retrieval.SimilarityCutoff))

	pipeline := ingest.New(extractor, client, chunkStore, store, cfg.Ingest.MaxChunkChars, cfg.Ingest.ChunkOverlap)
	chatSvc := chat.NewService(retriever, client)

	return &app{
		cfg:       cfg,
		store:     store,
		files:     fileStore,
		retriever: retriever,
		pipeline:  pipeline,
		chat:      chatSvc,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "docchat version %s\n", version)

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := api.NewAppHandler(api.AppDeps{
		Store:          a.store,
		Files:          a.files,
		Pipeline:       a.pipeline,
		Chat:           a.chat,
		MaxUploadBytes: a.cfg.Ingest.MaxUploadBytes,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "docchat listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runMCP serves the same knowledge base over MCP's stdio transport, sharing
// the SQLite database with the HTTP server.
func runMCP() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:     a.store,
		Retriever: a.retriever,
		Chat:      a.chat,
	})

	stdioSrv := server.NewStdioServer(mcpSrv)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
