package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sahayak/internal/adapter/chunker"
	"sahayak/internal/server"
	"sahayak/internal/usecase"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the document and query API with prometheus metrics.

Routes:
  POST   /api/v1/documents   Upload a document (JSON: source_filename, text)
  GET    /api/v1/documents   List indexed documents
  DELETE /api/v1/documents   Clear the collection
  POST   /api/v1/query       Ask a question (JSON: question, session_id)
  GET    /api/v1/status      Index statistics and service health
  GET    /healthz            Liveness including dependency probes
  GET    /metrics            Prometheus metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	metrics := server.NewMetrics()

	embedder, err := newEmbedder(cfg, metrics.RetryHook("embedding"))
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	generator, err := newLLM(cfg, metrics.RetryHook("generation"))
	if err != nil {
		return fmt.Errorf("failed to create generation client: %w", err)
	}
	index, err := openIndex(cfg, GetRootDir(), embedder)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer index.Close()

	chk, err := chunker.NewWindowChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		return err
	}
	ingestUC := usecase.NewIngestUseCase(chk, embedder, index, nil, nil, usecase.IngestOptions{
		Workers:   cfg.Ingest.Workers,
		BatchSize: cfg.Ingest.BatchSize,
	})
	askUC, err := newAskUseCase(cfg, embedder, index, generator)
	if err != nil {
		return err
	}
	statusUC := usecase.NewStatusUseCase(embedder, generator, index, slog.Default())

	srv := server.New(ingestUC, askUC, statusUC, index, server.Options{Metrics: metrics})

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	fmt.Println("Server stopped.")
	return nil
}
