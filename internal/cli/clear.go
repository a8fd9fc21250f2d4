package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every document from the collection",
	Long: `Delete all documents, chunks and vectors from the collection and
rebind it to the configured embedding model. Use this after switching
embedding models.`,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip the confirmation prompt")
}

func runClear(cmd *cobra.Command, args []string) error {
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

	stats, err := index.Stats()
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}
	if stats.TotalDocuments == 0 {
		fmt.Println("Collection is already empty.")
		return nil
	}

	if !clearYes {
		fmt.Printf("Delete %d documents (%d chunks) from %q? [y/N] ",
			stats.TotalDocuments, stats.TotalChunks, cfg.Storage.Collection)
		var reply string
		fmt.Scanln(&reply)
		if reply != "y" && reply != "Y" && reply != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := index.Clear(); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	fmt.Println("Collection cleared.")
	return nil
}
