package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"sahayak/internal/adapter/chunker"
	"sahayak/internal/adapter/fs"
	"sahayak/internal/adapter/loader"
	"sahayak/internal/port"
	"sahayak/internal/usecase"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index documents for question answering",
	Long: `Index .txt and .pdf files in the specified directory.
The collection is stored in .sahayak/<collection>.db under the working root.

Examples:
  sahayak index .                # Index current directory
  sahayak index /path/to/docs    # Index specific directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	// Determine path to index
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	// Verify path exists
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()

	embedder, err := newEmbedder(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
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

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	loaders := []port.Loader{loader.NewTextLoader(), loader.NewPDFLoader()}

	ingestUC := usecase.NewIngestUseCase(chk, embedder, index, walker, loaders, usecase.IngestOptions{
		Workers:   cfg.Ingest.Workers,
		BatchSize: cfg.Ingest.BatchSize,
	})

	fmt.Printf("Scanning %s...\n", path)

	// Create progress bar (initialized once the total is known)
	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time
	var initialized bool

	progress := func(processed, total int, currentFile string) {
		barMu.Lock()
		defer barMu.Unlock()

		if !initialized {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
			initialized = true
		}

		bar.Set(processed)

		if processed > 0 {
			elapsed := time.Since(startTime)
			rate := float64(processed) / elapsed.Seconds()
			remaining := total - processed
			if rate > 0 {
				eta := time.Duration(float64(remaining)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Indexing[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}

	report, err := ingestUC.IngestDirectory(cmd.Context(), path, progress)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Files indexed:  %d\n", report.FilesIndexed)
	fmt.Printf("  Files skipped:  %d (unsupported)\n", report.FilesSkipped)
	fmt.Printf("  Chunks indexed: %d\n", report.ChunksIndexed)
	fmt.Printf("  Characters:     %d\n", report.Characters)
	fmt.Printf("  Elapsed:        %s\n", formatDuration(report.Elapsed))

	if len(report.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range report.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	if p, ok := index.(interface{ Path() string }); ok {
		fmt.Printf("\nCollection stored at: %s\n", p.Path())
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
