package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Veraticus/artmap/internal/common"
	"github.com/Veraticus/artmap/internal/model"
	"github.com/Veraticus/artmap/internal/predict"
	"github.com/Veraticus/artmap/internal/retrain"
	"github.com/Veraticus/artmap/internal/workflow"
)

type componentRequest struct {
	Component     string `json:"component"`
	ArticleNumber string `json:"jtl_article_number"`
}

type releaseRequest struct {
	ID int64 `json:"id"`
}

type predictionResponse struct {
	Component    string  `json:"component"`
	PredictedJTL string  `json:"predicted_jtl"`
	Stage        string  `json:"stage"`
	Confidence   float64 `json:"confidence"`
}

type nextResponse struct {
	predictionResponse
	ContextID string `json:"customer_serial"`
	ID        int64  `json:"id"`
	Remaining int    `json:"remaining"`
}

type decisionResponse struct {
	Message       string `json:"message"`
	Component     string `json:"component"`
	ArticleNumber string `json:"jtl_article_number,omitempty"`
	Source        string `json:"source,omitempty"`
	Removed       int    `json:"removed"`
}

type retrainResponse struct {
	StartedAt           time.Time `json:"started_at"`
	RunID               string    `json:"run_id"`
	ModelSetID          string    `json:"model_set_id"`
	Duration            string    `json:"duration"`
	CorpusSize          int       `json:"corpus_size"`
	QueueSize           int       `json:"queue_size"`
	ResolvedFallback    int       `json:"resolved_fallback"`
	ResolvedSynthesized int       `json:"resolved_synthesized"`
	AlreadyMapped       int       `json:"already_mapped"`
	Unresolved          int       `json:"unresolved"`
	Superseded          int       `json:"superseded"`
}

type statsResponse struct {
	LastRetrain *retrainResponse `json:"last_retrain,omitempty"`
	Approved    int              `json:"approved"`
	Overridden  int              `json:"overridden"`
	Rejected    int              `json:"rejected"`
	Skipped     int              `json:"skipped"`
	Corpus      int              `json:"corpus"`
	Queue       int              `json:"queue"`
}

func toPredictionResponse(p model.Prediction) predictionResponse {
	return predictionResponse{
		Component:    p.Description,
		PredictedJTL: p.ArticleNumber,
		Stage:        string(p.Stage),
		Confidence:   p.Confidence,
	}
}

func toRetrainResponse(r retrain.Report) *retrainResponse {
	return &retrainResponse{
		StartedAt:           r.StartedAt,
		RunID:               r.RunID,
		ModelSetID:          r.ModelSetID,
		Duration:            r.Duration.Round(time.Millisecond).String(),
		CorpusSize:          r.CorpusSize,
		QueueSize:           r.QueueSize,
		ResolvedFallback:    r.ResolvedFallback,
		ResolvedSynthesized: r.ResolvedSynthesized,
		AlreadyMapped:       r.AlreadyMapped,
		Unresolved:          r.Unresolved,
		Superseded:          r.Superseded,
	}
}

func bindComponent(c echo.Context, needArticle bool) (componentRequest, error) {
	var req componentRequest
	if err := c.Bind(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Component = strings.TrimSpace(req.Component)
	req.ArticleNumber = strings.TrimSpace(req.ArticleNumber)
	if req.Component == "" {
		return req, echo.NewHTTPError(http.StatusBadRequest, "component is required")
	}
	if needArticle && req.ArticleNumber == "" {
		return req, echo.NewHTTPError(http.StatusBadRequest, "Component and JTL article number are required")
	}
	return req, nil
}

// mapError turns domain errors into HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "No more unmapped components").SetInternal(err)
	case errors.Is(err, workflow.ErrBlankDescription), errors.Is(err, predict.ErrInvalidDescription):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.Is(err, retrain.ErrRunInProgress):
		return echo.NewHTTPError(http.StatusConflict, err.Error()).SetInternal(err)
	case errors.Is(err, common.ErrEmptyCorpus):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error()).SetInternal(err)
	default:
		return err
	}
}

func (s *Server) handleNext(c echo.Context) error {
	pending, err := s.workflow.Next(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, nextResponse{
		predictionResponse: toPredictionResponse(pending.Prediction),
		ContextID:          pending.Entry.ContextID,
		ID:                 pending.Entry.ID,
		Remaining:          pending.Remaining,
	})
}

func (s *Server) handlePredict(c echo.Context) error {
	req, err := bindComponent(c, false)
	if err != nil {
		return err
	}
	prediction, err := s.workflow.Predict(c.Request().Context(), req.Component)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toPredictionResponse(prediction))
}

func (s *Server) handleApprove(c echo.Context) error {
	req, err := bindComponent(c, true)
	if err != nil {
		return err
	}
	d, err := s.workflow.Commit(c.Request().Context(), req.Component, req.ArticleNumber)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, decisionResponse{
		Message:       "Mapping approved",
		Component:     d.Mapping.Component,
		ArticleNumber: d.Mapping.ArticleNumber,
		Source:        string(d.Mapping.Source),
		Removed:       d.Removed,
	})
}

func (s *Server) handleReject(c echo.Context) error {
	req, err := bindComponent(c, false)
	if err != nil {
		return err
	}
	removed, err := s.workflow.Reject(c.Request().Context(), req.Component)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, decisionResponse{
		Message:   "Mapping rejected",
		Component: req.Component,
		Removed:   removed,
	})
}

func (s *Server) handleNewMapping(c echo.Context) error {
	req, err := bindComponent(c, false)
	if err != nil {
		return err
	}
	d, err := s.workflow.Override(c.Request().Context(), req.Component, req.ArticleNumber)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, decisionResponse{
		Message:       "New mapping added",
		Component:     d.Mapping.Component,
		ArticleNumber: d.Mapping.ArticleNumber,
		Source:        string(d.Mapping.Source),
		Removed:       d.Removed,
	})
}

// handleRelease hands an entry fetched by /next back to the queue undecided,
// so skipping does not hide it for the whole claim lease.
func (s *Server) handleRelease(c echo.Context) error {
	var req releaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "id is required")
	}
	err := s.workflow.Release(c.Request().Context(), req.ID)
	if errors.Is(err, common.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "queue entry not found").SetInternal(err)
	}
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Entry released", "id": req.ID})
}

func (s *Server) handleRetrain(c echo.Context) error {
	report, err := s.retrainer.Run(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toRetrainResponse(report))
}

func (s *Server) handleStats(c echo.Context) error {
	ctx := c.Request().Context()
	corpus, err := s.counter.CountMappings(ctx)
	if err != nil {
		return err
	}
	queue, err := s.counter.CountUnmapped(ctx)
	if err != nil {
		return err
	}

	stats := s.workflow.Stats()
	resp := statsResponse{
		Approved:   stats.Approved,
		Overridden: stats.Overridden,
		Rejected:   stats.Rejected,
		Skipped:    stats.Skipped,
		Corpus:     corpus,
		Queue:      queue,
	}
	if last, ok := s.retrainer.LastReport(); ok {
		resp.LastRetrain = toRetrainResponse(last)
	}
	return c.JSON(http.StatusOK, resp)
}
