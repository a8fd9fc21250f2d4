package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"sahayak/internal/adapter/loader"
	"sahayak/internal/domain"
	"sahayak/internal/usecase"
)

const healthzTimeout = 5 * time.Second

type ingestRequest struct {
	SourceFilename string `json:"source_filename"`
	Text           string `json:"text"`
}

type queryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

type sourceResponse struct {
	SourceFilename string  `json:"source_filename"`
	SequenceIndex  int     `json:"sequence_index"`
	Score          float64 `json:"score"`
	Text           string  `json:"text"`
}

type queryResponse struct {
	SessionID string           `json:"session_id"`
	Answer    string           `json:"answer"`
	Language  string           `json:"language"`
	Grounded  bool             `json:"grounded"`
	Sources   []sourceResponse `json:"sources,omitempty"`
}

type documentsResponse struct {
	Documents []domain.DocumentInfo `json:"documents"`
	Stats     domain.Stats          `json:"stats"`
}

type healthResponse struct {
	Status     string                `json:"status"`
	Embedding  usecase.ServiceStatus `json:"embedding"`
	Generation usecase.ServiceStatus `json:"generation"`
}

func (s *Server) handleIngestDocument(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.SourceFilename = strings.TrimSpace(req.SourceFilename)
	if req.SourceFilename == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source_filename is required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	doc := domain.Document{
		ID:             loader.DocumentID(req.SourceFilename, req.Text),
		SourceFilename: req.SourceFilename,
		RawText:        req.Text,
	}
	report, err := s.ingest.Ingest(c.Request().Context(), doc)
	if err != nil {
		return err
	}
	s.metrics.ObserveIngest(report)
	return c.JSON(http.StatusCreated, report)
}

func (s *Server) handleListDocuments(c echo.Context) error {
	docs, err := s.index.Documents()
	if err != nil {
		return err
	}
	stats, err := s.index.Stats()
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []domain.DocumentInfo{}
	}
	return c.JSON(http.StatusOK, documentsResponse{Documents: docs, Stats: stats})
}

func (s *Server) handleClearDocuments(c echo.Context) error {
	if err := s.index.Clear(); err != nil {
		return err
	}
	s.logger.Info("collection cleared")
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleQuery(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, release := s.sessions.begin(c.Request().Context(), sessionID)
	defer release()

	start := time.Now()
	answer, err := s.ask.Answer(ctx, req.Question)
	if err != nil {
		return err
	}
	s.metrics.ObserveQuery(answer, time.Since(start))

	resp := queryResponse{
		SessionID: sessionID,
		Answer:    answer.Text,
		Language:  answer.Language.String(),
		Grounded:  answer.Grounded,
	}
	for _, cited := range answer.CitedChunks {
		resp.Sources = append(resp.Sources, sourceResponse{
			SourceFilename: cited.SourceFilename,
			SequenceIndex:  cited.Chunk.SequenceIndex,
			Score:          cited.Score,
			Text:           cited.Chunk.Text,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c echo.Context) error {
	report, err := s.status.Check(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleHealthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthzTimeout)
	defer cancel()

	report, err := s.status.Check(ctx)
	if err != nil {
		return err
	}
	resp := healthResponse{
		Status:     "ok",
		Embedding:  report.Embedding,
		Generation: report.Generation,
	}
	code := http.StatusOK
	if !report.Healthy() {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}
