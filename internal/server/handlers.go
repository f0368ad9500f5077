package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spigell/candidate-matcher/internal/documents"
	"github.com/spigell/candidate-matcher/internal/filtering"
	"github.com/spigell/candidate-matcher/internal/logger"
	"github.com/spigell/candidate-matcher/internal/ranking"
	"go.uber.org/zap"
)

type documentInput struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type rankRequest struct {
	JobDescription string                `json:"job_description" validate:"required"`
	Documents      []documentInput       `json:"documents" validate:"required,min=1"`
	Weights        *ranking.WeightConfig `json:"weights"`
	TopK           *int                  `json:"top_k" validate:"omitempty,gte=0"`
	MinimumScore   *float64              `json:"minimum_score"`
	Analyze        bool                  `json:"analyze"`
}

type rankResponse struct {
	RunID  string                     `json:"run_id"`
	Ranked []ranking.ScoredCandidate  `json:"ranked"`
	Failed []ranking.EmbeddingFailure `json:"failed"`
	Total  int                        `json:"total"`
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validate.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			s.respondError(w, http.StatusBadRequest, "invalid field "+verrs[0].Field()+": "+verrs[0].Tag())
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Analyze && s.analyzer == nil {
		s.respondError(w, http.StatusBadRequest, "analysis is not configured on this server")
		return
	}

	runID := uuid.NewString()
	log := logger.WithRun(s.logger, runID).With(zap.String("request_id", middleware.GetReqID(r.Context())))

	store := documents.NewStore()
	for _, in := range req.Documents {
		if _, err := store.Add(in.ID, in.Text); err != nil {
			s.respondRankError(w, log, err)
			return
		}
	}

	weights := s.defaults.Weights
	if req.Weights != nil {
		weights = *req.Weights
	}

	opts := []ranking.Option{ranking.WithLogger(log), ranking.WithConcurrency(s.defaults.Concurrency)}
	if req.Analyze {
		opts = append(opts, ranking.WithAnalyzer(s.analyzer))
	}

	jd := ranking.JobDescription{Text: req.JobDescription}
	result, err := ranking.Rank(r.Context(), jd, store.All(), weights, s.embedder, opts...)
	if err != nil {
		s.respondRankError(w, log, err)
		return
	}

	cfg := &filtering.Config{TopK: s.defaults.TopK, MinimumScore: s.defaults.MinimumScore}
	if req.TopK != nil {
		cfg.TopK = *req.TopK
	}
	if req.MinimumScore != nil {
		cfg.MinimumScore = *req.MinimumScore
	}

	steps := []filtering.Filter{filtering.NewMinScore(), filtering.NewTopK()}
	shown, err := filtering.Run(r.Context(), cfg, filtering.Deps{Logger: log}, steps, result)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	failed := result.Failed
	if shown == nil {
		shown = []ranking.ScoredCandidate{}
	}
	if failed == nil {
		failed = []ranking.EmbeddingFailure{}
	}

	s.respondJSON(w, http.StatusOK, rankResponse{
		RunID:  runID,
		Ranked: shown,
		Failed: failed,
		Total:  result.Len(),
	})
}

func (s *Server) respondRankError(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		validationErr *ranking.ValidationError
		dimErr        *ranking.DimensionMismatchError
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		// middleware.Timeout writes the 504.
		log.Warn("ranking timed out", zap.Error(err))
	case errors.As(err, &validationErr):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &dimErr):
		log.Error("embedding dimensions mismatch", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, ranking.ErrBatchCancelled):
		log.Warn("ranking cancelled", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error("ranking failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
