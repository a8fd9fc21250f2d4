package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sahayak/internal/adapter/analyzer"
	"sahayak/internal/adapter/embedding"
	"sahayak/internal/adapter/llm"
	"sahayak/internal/adapter/prompt"
	"sahayak/internal/domain"
	"sahayak/internal/port"
	"sahayak/internal/retry"
)

// scriptedLLM returns a canned completion and records the prompts it
// was given.
type scriptedLLM struct {
	response   string
	err        error
	pingErr    error
	calls      int
	lastSystem string
	lastUser   string
}

func (s *scriptedLLM) Generate(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	s.calls++
	s.lastSystem = systemPrompt
	s.lastUser = userPrompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *scriptedLLM) Ping(context.Context) error { return s.pingErr }
func (s *scriptedLLM) ModelName() string          { return "scripted" }

type askEnv struct {
	ask *AskUseCase
	ing *IngestUseCase
	llm *scriptedLLM
}

func newAskEnv(t *testing.T, opts AskOptions) *askEnv {
	t.Helper()
	idx := newTestIndex(t)
	emb := embedding.NewMockEmbedder(testDimension)

	det, err := analyzer.NewDetector(0.3)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	prompts, err := prompt.NewBuilder()
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}

	scripted := &scriptedLLM{response: "ok"}
	ing := NewIngestUseCase(newTestChunker(t, 1000, 200), emb, idx, nil, nil, IngestOptions{})
	ret := NewRetrieveUseCase(emb, idx, nil)
	ask := NewAskUseCase(det, ret, idx, prompts, scripted, opts)

	return &askEnv{ask: ask, ing: ing, llm: scripted}
}

func (e *askEnv) seed(t *testing.T, name, text string) {
	t.Helper()
	if _, err := e.ing.Ingest(context.Background(), testDocument(name, text)); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
}

func TestAnswerNoDocuments(t *testing.T) {
	env := newAskEnv(t, AskOptions{})

	ans, err := env.ask.Answer(context.Background(), "What is machine learning?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Text != "Please upload and process documents first!" {
		t.Errorf("Text = %q, want the English no-documents message", ans.Text)
	}
	if ans.Language != domain.LangEnglish {
		t.Errorf("Language = %v, want english", ans.Language)
	}
	if ans.Grounded {
		t.Error("Grounded = true, want false")
	}

	ans, err = env.ask.Answer(context.Background(), "मशीन लर्निंग क्या है?")
	if err != nil {
		t.Fatalf("Answer (hindi): %v", err)
	}
	if ans.Text != "कृपया पहले दस्तावेज़ अपलोड करके प्रोसेस करें!" {
		t.Errorf("Text = %q, want the Hindi no-documents message", ans.Text)
	}
	if ans.Language != domain.LangHindi {
		t.Errorf("Language = %v, want hindi", ans.Language)
	}

	if env.llm.calls != 0 {
		t.Errorf("LLM calls = %d, want 0 with nothing indexed", env.llm.calls)
	}
}

func TestAnswerEnglish(t *testing.T) {
	env := newAskEnv(t, AskOptions{})
	env.seed(t, "france.txt", "The capital of France is Paris.")
	env.llm.response = "The capital of France is Paris."

	ans, err := env.ask.Answer(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(ans.Text, "Paris") {
		t.Errorf("Text = %q, want an answer mentioning Paris", ans.Text)
	}
	if ans.Language != domain.LangEnglish {
		t.Errorf("Language = %v, want english", ans.Language)
	}
	if !ans.Grounded {
		t.Error("Grounded = false, want true")
	}
	if len(ans.CitedChunks) == 0 {
		t.Fatal("no cited chunks")
	}
	if ans.CitedChunks[0].SourceFilename != "france.txt" {
		t.Errorf("cited source = %q, want france.txt", ans.CitedChunks[0].SourceFilename)
	}

	if env.llm.calls != 1 {
		t.Errorf("LLM calls = %d, want 1", env.llm.calls)
	}
	if !strings.Contains(env.llm.lastSystem, "Always respond in English only.") {
		t.Errorf("system prompt = %q, want the English directive", env.llm.lastSystem)
	}
	for _, want := range []string{
		"What is the capital of France?",
		"The capital of France is Paris.",
		"[स्रोत/source: france.txt#0]",
		"Answer (in English only):",
	} {
		if !strings.Contains(env.llm.lastUser, want) {
			t.Errorf("user prompt missing %q:\n%s", want, env.llm.lastUser)
		}
	}
}

func TestAnswerHindi(t *testing.T) {
	env := newAskEnv(t, AskOptions{})
	env.seed(t, "bharat.txt", "भारत की राजधानी नई दिल्ली है। नई दिल्ली देश का प्रशासनिक केंद्र है।")
	env.llm.response = "भारत की राजधानी नई दिल्ली है।"

	ans, err := env.ask.Answer(context.Background(), "भारत की राजधानी क्या है?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Language != domain.LangHindi {
		t.Errorf("Language = %v, want hindi", ans.Language)
	}
	if !ans.Grounded {
		t.Error("Grounded = false, want true")
	}
	if !strings.Contains(env.llm.lastSystem, "हिंदी") {
		t.Errorf("system prompt = %q, want the Hindi directive", env.llm.lastSystem)
	}
	for _, want := range []string{"प्रश्न: भारत की राजधानी क्या है?", "उत्तर (केवल हिंदी में):"} {
		if !strings.Contains(env.llm.lastUser, want) {
			t.Errorf("user prompt missing %q:\n%s", want, env.llm.lastUser)
		}
	}
}

func TestAnswerMixedUsesHindi(t *testing.T) {
	env := newAskEnv(t, AskOptions{})
	env.seed(t, "ml.txt", "Machine learning is a branch of artificial intelligence.")
	env.llm.response = "मशीन लर्निंग एक तकनीक है।"

	ans, err := env.ask.Answer(context.Background(), "Machine learning क्या है?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Language != domain.LangHindi {
		t.Errorf("Language = %v, want hindi for a mixed question", ans.Language)
	}
	if !strings.Contains(env.llm.lastSystem, "हिंदी") {
		t.Errorf("system prompt = %q, want the Hindi directive for mixed input", env.llm.lastSystem)
	}
}

func TestAnswerNoRelevantContext(t *testing.T) {
	env := newAskEnv(t, AskOptions{MinScore: 2.0})
	env.seed(t, "france.txt", "The capital of France is Paris.")

	ans, err := env.ask.Answer(context.Background(), "What is quantum entanglement?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Text != "I don't have information about this." {
		t.Errorf("Text = %q, want the no-answer message", ans.Text)
	}
	if ans.Grounded {
		t.Error("Grounded = true, want false")
	}
	if env.llm.calls != 0 {
		t.Errorf("LLM calls = %d, want 0 when nothing clears the floor", env.llm.calls)
	}
}

func TestAnswerGenerationOutage(t *testing.T) {
	env := newAskEnv(t, AskOptions{})
	env.seed(t, "france.txt", "The capital of France is Paris.")
	env.llm.err = fmt.Errorf("%w: exhausted retries", domain.ErrGenerationUnavailable)

	ans, err := env.ask.Answer(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Text != "API error: the service is temporarily unavailable. Please try again later." {
		t.Errorf("Text = %q, want the English degraded message", ans.Text)
	}
	if ans.Grounded {
		t.Error("Grounded = true, want false on outage")
	}

	// The same process keeps answering once the service recovers.
	env.llm.err = nil
	env.llm.response = "Paris."
	ans, err = env.ask.Answer(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatalf("Answer after recovery: %v", err)
	}
	if !ans.Grounded || ans.Text != "Paris." {
		t.Errorf("answer after recovery = %+v, want grounded Paris", ans)
	}
}

func TestAnswerRetrievalOutage(t *testing.T) {
	idx := newTestIndex(t)
	emb := embedding.NewMockEmbedder(testDimension)
	ing := NewIngestUseCase(newTestChunker(t, 1000, 200), emb, idx, nil, nil, IngestOptions{})
	if _, err := ing.Ingest(context.Background(), testDocument("france.txt", "The capital of France is Paris.")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	det, err := analyzer.NewDetector(0.3)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	prompts, err := prompt.NewBuilder()
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	scripted := &scriptedLLM{response: "Paris."}

	flaky := &flakyEmbedder{inner: emb, poison: "What"}
	ret := NewRetrieveUseCase(flaky, idx, nil)
	ask := NewAskUseCase(det, ret, idx, prompts, scripted, AskOptions{})

	ans, err := ask.Answer(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Text != "API error: the service is temporarily unavailable. Please try again later." {
		t.Errorf("Text = %q, want the degraded message", ans.Text)
	}
	if scripted.calls != 0 {
		t.Errorf("LLM calls = %d, want 0 when retrieval fails", scripted.calls)
	}
}

func TestAnswerCanceled(t *testing.T) {
	env := newAskEnv(t, AskOptions{})
	env.seed(t, "france.txt", "The capital of France is Paris.")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.ask.Answer(ctx, "What is the capital of France?")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

// TestAnswerOutageAttemptCount drives the real chat client against a
// failing server and checks the whole pipeline: the client retries the
// configured number of times, gives up with ErrGenerationUnavailable
// and the orchestrator degrades to the bilingual message.
func TestAnswerOutageAttemptCount(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, `{"error":{"message":"upstream down"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := llm.NewClient(llm.Config{
		Model:   "test-model",
		BaseURL: srv.URL,
		Retry: retry.Policy{
			MaxAttempts:    3,
			BaseDelay:      time.Millisecond,
			RateLimitDelay: time.Millisecond,
			MaxDelay:       5 * time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	idx := newTestIndex(t)
	emb := embedding.NewMockEmbedder(testDimension)
	ing := NewIngestUseCase(newTestChunker(t, 1000, 200), emb, idx, nil, nil, IngestOptions{})
	if _, err := ing.Ingest(context.Background(), testDocument("france.txt", "The capital of France is Paris.")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	det, err := analyzer.NewDetector(0.3)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	prompts, err := prompt.NewBuilder()
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	ret := NewRetrieveUseCase(emb, idx, nil)
	ask := NewAskUseCase(det, ret, idx, prompts, client, AskOptions{})

	ans, err := ask.Answer(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Errorf("request count = %d, want exactly 3 attempts", got)
	}
	if ans.Text != "API error: the service is temporarily unavailable. Please try again later." {
		t.Errorf("Text = %q, want the degraded message", ans.Text)
	}
}

var _ port.LLM = (*scriptedLLM)(nil)
