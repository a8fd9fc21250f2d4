package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"sahayak/internal/usecase"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics and service health",
	Long: `Show collection statistics, the indexed documents, and the health of
the embedding and generation services.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	embedder, err := newEmbedder(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	generator, err := newLLM(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create generation client: %w", err)
	}
	index, err := openIndex(cfg, GetRootDir(), embedder)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer index.Close()

	statusUC := usecase.NewStatusUseCase(embedder, generator, index, slog.Default())
	report, err := statusUC.Check(cmd.Context())
	if err != nil {
		return fmt.Errorf("status check failed: %w", err)
	}

	if statusJSON {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Collection: %s\n", cfg.Storage.Collection)
	fmt.Printf("  Documents:  %d\n", report.Stats.TotalDocuments)
	fmt.Printf("  Chunks:     %d\n", report.Stats.TotalChunks)
	fmt.Printf("  Characters: %d\n", report.Stats.TotalCharacters)
	fmt.Printf("  Avg chunk:  %.0f chars\n", report.Stats.AvgChunkLen)
	fmt.Printf("  Model:      %s (%d dims)\n", report.Meta.EmbeddingModel, report.Meta.Dimension)

	if len(report.Documents) > 0 {
		fmt.Printf("\nDocuments:\n")
		for _, doc := range report.Documents {
			fmt.Printf("  - %s (%d chunks, %d chars)\n", doc.SourceFilename, doc.Chunks, doc.Characters)
		}
	}

	fmt.Printf("\nServices:\n")
	fmt.Printf("  Embedding:  %s\n", serviceLine(report.Embedding))
	fmt.Printf("  Generation: %s\n", serviceLine(report.Generation))
	return nil
}

func serviceLine(s usecase.ServiceStatus) string {
	if s.OK {
		return fmt.Sprintf("ok (%s)", s.Model)
	}
	return fmt.Sprintf("DOWN (%s): %s", s.Model, s.Error)
}
