package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"sahayak/internal/adapter/analyzer"
	"sahayak/internal/adapter/chunker"
	"sahayak/internal/adapter/embedding"
	"sahayak/internal/adapter/prompt"
	"sahayak/internal/adapter/store"
	"sahayak/internal/domain"
	"sahayak/internal/port"
	"sahayak/internal/usecase"
)

const testDimension = 8

// scriptedLLM returns a fixed response and records the prompts it saw.
type scriptedLLM struct {
	mu       sync.Mutex
	response string
	err      error
	pingErr  error
	calls    int
}

func (s *scriptedLLM) Generate(ctx context.Context, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *scriptedLLM) Ping(ctx context.Context) error { return s.pingErr }

func (s *scriptedLLM) ModelName() string { return "scripted" }

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// newTestServer wires a server over the real pipeline: mock embedder,
// temp bolt index, window chunker, and the given LLM.
func newTestServer(t *testing.T, llm port.LLM) *Server {
	t.Helper()

	index, err := store.Open(t.TempDir(), "test", store.Options{
		EmbeddingModel: "mock",
		Dimension:      testDimension,
	})
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { index.Close() })

	chk, err := chunker.NewWindowChunker(200, 40)
	if err != nil {
		t.Fatalf("new chunker: %v", err)
	}
	detector, err := analyzer.NewDetector(0.3)
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	prompts, err := prompt.NewBuilder()
	if err != nil {
		t.Fatalf("new prompt builder: %v", err)
	}
	embedder := embedding.NewMockEmbedder(testDimension)

	ingest := usecase.NewIngestUseCase(chk, embedder, index, nil, nil, usecase.IngestOptions{})
	retriever := usecase.NewRetrieveUseCase(embedder, index, nil)
	ask := usecase.NewAskUseCase(detector, retriever, index, prompts, llm, usecase.AskOptions{})
	status := usecase.NewStatusUseCase(embedder, llm, index, nil)

	return New(ingest, ask, status, index, Options{})
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return req
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, jsonRequest(t, method, path, body))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func ingestFranceDoc(t *testing.T, srv *Server) domain.IngestReport {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/documents", ingestRequest{
		SourceFilename: "france.txt",
		Text: "France is a country in Western Europe. The capital of France is Paris. " +
			"Paris is known for the Eiffel Tower and the Louvre museum.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d, body %s", rec.Code, rec.Body.String())
	}
	var report domain.IngestReport
	decode(t, rec, &report)
	return report
}

func TestIngestAndQuery(t *testing.T) {
	llm := &scriptedLLM{response: "The capital of France is Paris."}
	srv := newTestServer(t, llm)

	report := ingestFranceDoc(t, srv)
	if report.SourceFilename != "france.txt" {
		t.Errorf("report source = %q, want france.txt", report.SourceFilename)
	}
	if report.ChunksIndexed == 0 || report.ChunksIndexed != report.ChunksTotal {
		t.Fatalf("report chunks = %d/%d, want all indexed", report.ChunksIndexed, report.ChunksTotal)
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/query", queryRequest{
		Question: "What is the capital of France?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp queryResponse
	decode(t, rec, &resp)

	if _, err := uuid.Parse(resp.SessionID); err != nil {
		t.Errorf("session id %q is not a uuid: %v", resp.SessionID, err)
	}
	if resp.Answer != "The capital of France is Paris." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.Language != "english" {
		t.Errorf("language = %q, want english", resp.Language)
	}
	if !resp.Grounded {
		t.Error("expected a grounded answer")
	}
	if len(resp.Sources) == 0 {
		t.Fatal("expected cited sources")
	}
	if resp.Sources[0].SourceFilename != "france.txt" {
		t.Errorf("source = %q, want france.txt", resp.Sources[0].SourceFilename)
	}
	if llm.callCount() != 1 {
		t.Errorf("llm calls = %d, want 1", llm.callCount())
	}

	// A caller-supplied session id is echoed back untouched.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/query", queryRequest{
		Question:  "Where is the Eiffel Tower?",
		SessionID: "chat-42",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d, body %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &resp)
	if resp.SessionID != "chat-42" {
		t.Errorf("session id = %q, want chat-42", resp.SessionID)
	}
}

func TestIngestValidation(t *testing.T) {
	srv := newTestServer(t, &scriptedLLM{response: "unused"})

	cases := []struct {
		name string
		req  ingestRequest
		want string
	}{
		{"missing filename", ingestRequest{Text: "some text"}, "source_filename is required"},
		{"missing text", ingestRequest{SourceFilename: "a.txt"}, "text is required"},
		{"blank text", ingestRequest{SourceFilename: "a.txt", Text: "   \n\t "}, "text is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/v1/documents", tc.req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var body map[string]string
			decode(t, rec, &body)
			if body["error"] != tc.want {
				t.Errorf("error = %q, want %q", body["error"], tc.want)
			}
		})
	}
}

func TestQueryValidation(t *testing.T) {
	srv := newTestServer(t, &scriptedLLM{})

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/query", queryRequest{Question: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["error"] != "question is required" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestQueryNoDocuments(t *testing.T) {
	llm := &scriptedLLM{response: "unused"}
	srv := newTestServer(t, llm)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/query", queryRequest{Question: "What is Go?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp queryResponse
	decode(t, rec, &resp)
	if resp.Answer != "Please upload and process documents first!" {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.Grounded {
		t.Error("empty index answer must not be grounded")
	}
	if llm.callCount() != 0 {
		t.Errorf("llm calls = %d, want 0", llm.callCount())
	}
}

func TestListAndClearDocuments(t *testing.T) {
	srv := newTestServer(t, &scriptedLLM{response: "unused"})
	ingestFranceDoc(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/documents", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listed documentsResponse
	decode(t, rec, &listed)
	if len(listed.Documents) != 1 {
		t.Fatalf("documents = %d, want 1", len(listed.Documents))
	}
	if listed.Documents[0].SourceFilename != "france.txt" {
		t.Errorf("document source = %q", listed.Documents[0].SourceFilename)
	}
	if listed.Stats.TotalDocuments != 1 {
		t.Errorf("stats documents = %d, want 1", listed.Stats.TotalDocuments)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/v1/documents", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d, want 204", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/documents", nil)
	decode(t, rec, &listed)
	if len(listed.Documents) != 0 || listed.Stats.TotalDocuments != 0 {
		t.Errorf("after clear: %d documents, stats %+v", len(listed.Documents), listed.Stats)
	}
}

func TestStatusEndpoint(t *testing.T) {
	llm := &scriptedLLM{response: "pong"}
	srv := newTestServer(t, llm)
	ingestFranceDoc(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var report usecase.StatusReport
	decode(t, rec, &report)
	if !report.Embedding.OK || !report.Generation.OK {
		t.Errorf("services not healthy: %+v", report)
	}
	if report.Meta.EmbeddingModel != "mock" {
		t.Errorf("embedding model = %q, want mock", report.Meta.EmbeddingModel)
	}
	if report.Stats.TotalDocuments != 1 {
		t.Errorf("stats documents = %d, want 1", report.Stats.TotalDocuments)
	}
}

func TestHealthz(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := newTestServer(t, &scriptedLLM{response: "pong"})
		rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var resp healthResponse
		decode(t, rec, &resp)
		if resp.Status != "ok" {
			t.Errorf("status = %q, want ok", resp.Status)
		}
	})

	t.Run("degraded", func(t *testing.T) {
		srv := newTestServer(t, &scriptedLLM{pingErr: errors.New("connection refused")})
		rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
		var resp healthResponse
		decode(t, rec, &resp)
		if resp.Status != "degraded" {
			t.Errorf("status = %q, want degraded", resp.Status)
		}
		if resp.Generation.OK {
			t.Error("generation should be reported down")
		}
		if resp.Generation.Error != "connection refused" {
			t.Errorf("generation error = %q", resp.Generation.Error)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	llm := &scriptedLLM{response: "Paris."}
	srv := newTestServer(t, llm)
	ingestFranceDoc(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/query", queryRequest{
		Question: "What is the capital of France?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, metric := range []string{
		`sahayak_queries_total{grounded="true",language="english"} 1`,
		"sahayak_documents_ingested_total 1",
		"sahayak_chunks_indexed_total",
		"sahayak_query_duration_seconds",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("metrics output missing %q", metric)
		}
	}
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t, &scriptedLLM{})

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid configuration", fmt.Errorf("%w: chunk overlap", domain.ErrInvalidConfiguration), http.StatusBadRequest},
		{"model mismatch", fmt.Errorf("%w: index built with nomic-embed-text", domain.ErrModelMismatch), http.StatusConflict},
		{"embedding down", fmt.Errorf("%w: connect refused", domain.ErrEmbeddingService), http.StatusServiceUnavailable},
		{"generation down", domain.ErrGenerationUnavailable, http.StatusServiceUnavailable},
		{"canceled", fmt.Errorf("failed to generate answer: %w", context.Canceled), http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
		{"not found", echo.NewHTTPError(http.StatusNotFound, "no such route"), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(req, rec)

			srv.handleError(tc.err, c)

			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
			var body map[string]string
			decode(t, rec, &body)
			if body["error"] == "" {
				t.Error("expected an error message in the body")
			}
		})
	}
}

var _ port.LLM = (*scriptedLLM)(nil)
