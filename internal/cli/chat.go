package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sahayak/internal/adapter/analyzer"
	"sahayak/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the indexed documents",
	Long: `Open an interactive chat over the indexed documents. Questions in
Hindi get Hindi answers, questions in English get English answers.
Press Esc to cancel a running question, Ctrl+C to quit.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
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

	askUC, err := newAskUseCase(cfg, embedder, index, generator)
	if err != nil {
		return err
	}
	detector, err := analyzer.NewDetector(cfg.Language.HindiThreshold)
	if err != nil {
		return err
	}

	return tui.Run(askUC, detector)
}
