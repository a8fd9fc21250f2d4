package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sahayak/internal/adapter/analyzer"
)

var (
	askQuestion string
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask a question about the indexed documents",
	Long: `Ask a question in Hindi or English. The answer comes back in the
language of the question; mixed-script questions get Hindi.

Examples:
  sahayak ask -q "What is the refund policy?"
  sahayak ask -q "वापसी की नीति क्या है?" --json`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "question to ask (required)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("question")
}

type askResult struct {
	Question string      `json:"question"`
	Answer   string      `json:"answer"`
	Language string      `json:"language"`
	Grounded bool        `json:"grounded"`
	Sources  []askSource `json:"sources,omitempty"`
}

type askSource struct {
	SourceFilename string  `json:"source_filename"`
	SequenceIndex  int     `json:"sequence_index"`
	Score          float64 `json:"score"`
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	answer, err := askUC.Answer(cmd.Context(), askQuestion)
	if err != nil {
		return fmt.Errorf("failed to answer: %w", err)
	}

	if askJSON {
		out := askResult{
			Question: askQuestion,
			Answer:   answer.Text,
			Language: answer.Language.String(),
			Grounded: answer.Grounded,
		}
		for _, c := range answer.CitedChunks {
			out.Sources = append(out.Sources, askSource{
				SourceFilename: c.SourceFilename,
				SequenceIndex:  c.Chunk.SequenceIndex,
				Score:          c.Score,
			})
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(answer.Text)
	if len(answer.CitedChunks) > 0 {
		msgs := analyzer.MessagesFor(answer.Language)
		refs := make([]string, 0, len(answer.CitedChunks))
		for _, c := range answer.CitedChunks {
			refs = append(refs, fmt.Sprintf("%s#%d (%.2f)", c.SourceFilename, c.Chunk.SequenceIndex, c.Score))
		}
		fmt.Printf("\n%s: %s\n", msgs.Sources, strings.Join(refs, ", "))
	}
	return nil
}
