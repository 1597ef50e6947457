package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	log "github.com/translatd/translatd/internal/logging"
	"github.com/translatd/translatd/internal/provider"
	"github.com/translatd/translatd/internal/stats"
	"github.com/translatd/translatd/internal/store"
)

// translateRequest is the POST /api/translate body.
type translateRequest struct {
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

type translateResponse struct {
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	TranslatedText string `json:"translated_text"`
	InputTokens    int32  `json:"input_tokens"`
	OutputTokens   int32  `json:"output_tokens"`
	DurationMS     int64  `json:"duration_ms"`
}

// respondError converts any failure into the stable error envelope. Classify
// guarantees the message is safe to show; raw vendor payloads stay in logs.
func respondError(c *gin.Context, err error) {
	relayErr := provider.Classify(err)
	c.JSON(relayErr.HTTPStatus, gin.H{"error": relayErr})
}

func invalidRequest(c *gin.Context, format string, args ...any) {
	respondError(c, provider.NewError(provider.CodeInvalidRequest, fmt.Sprintf(format, args...), http.StatusBadRequest))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default":   s.cfg.DefaultProvider,
		"providers": s.registry.Vendors(),
	})
}

// handleModels serves the vendor catalogue with proven models first. A failed
// catalogue fetch degrades to the configured fallback list marked stale so
// the page still renders with other vendors usable.
func (s *Server) handleModels(c *gin.Context) {
	name := c.Query("provider")
	if name == "" {
		name = s.cfg.DefaultProvider
	}
	vendor, ok := s.registry.Vendor(name)
	if !ok {
		invalidRequest(c, "unknown provider %q", name)
		return
	}

	models, err := s.registry.ListModels(c.Request.Context(), name)
	stale := false
	if err != nil {
		log.WithError(err).Warnf("model catalogue for %q unavailable, serving fallback models", name)
		stale = true
		models = make([]provider.Model, 0, len(vendor.FallbackModels()))
		for _, id := range vendor.FallbackModels() {
			models = append(models, provider.Model{ID: id})
		}
	}

	merged := s.tracker.MergeIntoModelList(name, models)
	if merged == nil {
		merged = []provider.Model{}
	}
	c.JSON(http.StatusOK, gin.H{
		"provider": name,
		"models":   merged,
		"stale":    stale,
	})
}

func (s *Server) handleTranslate(c *gin.Context) {
	var req translateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			invalidRequest(c, "request body exceeds %d bytes", tooLarge.Limit)
			return
		}
		invalidRequest(c, "request body must be valid JSON")
		return
	}

	if req.Provider == "" {
		req.Provider = s.cfg.DefaultProvider
	}
	if strings.TrimSpace(req.Text) == "" {
		invalidRequest(c, "Missing required field: text")
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		invalidRequest(c, "Missing required field: model")
		return
	}
	if strings.TrimSpace(req.TargetLanguage) == "" {
		invalidRequest(c, "Missing required field: target_language")
		return
	}
	if _, ok := s.registry.Vendor(req.Provider); !ok {
		invalidRequest(c, "unknown provider %q", req.Provider)
		return
	}

	started := time.Now()
	result, err := s.registry.Translate(c.Request.Context(), req.Provider, provider.TranslateRequest{
		Model:          req.Model,
		Text:           req.Text,
		TargetLanguage: req.TargetLanguage,
	})
	elapsed := time.Since(started)

	if err != nil {
		relayErr := provider.Classify(err)
		log.WithError(err).Warnf("translation via %s/%s failed", req.Provider, req.Model)
		s.recorder.Record(stats.Sample{
			Provider:       req.Provider,
			Model:          req.Model,
			TargetLanguage: req.TargetLanguage,
			ErrorCode:      relayErr.Code,
			Duration:       elapsed,
		})
		c.JSON(relayErr.HTTPStatus, gin.H{"error": relayErr})
		return
	}

	// The preset write lands before the caller sees success. A failed write
	// only degrades ordering durability, never the translation itself.
	if err := s.tracker.RecordSuccess(c.Request.Context(), req.Provider, req.Model); err != nil {
		log.WithError(err).Warnf("failed to persist preset %s/%s", req.Provider, req.Model)
	}

	s.recorder.Record(stats.Sample{
		Provider:       req.Provider,
		Model:          req.Model,
		TargetLanguage: req.TargetLanguage,
		InputTokens:    int64(result.InputTokens),
		OutputTokens:   int64(result.OutputTokens),
		Duration:       elapsed,
	})

	c.JSON(http.StatusOK, translateResponse{
		Provider:       req.Provider,
		Model:          result.Model,
		TranslatedText: result.Text,
		InputTokens:    result.InputTokens,
		OutputTokens:   result.OutputTokens,
		DurationMS:     elapsed.Milliseconds(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			invalidRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(n, 500)
	}

	recent, err := s.recorder.RecentHistory(c.Request.Context(), limit)
	if err != nil {
		log.WithError(err).Warnf("failed to load recent translation history")
	}
	if recent == nil {
		recent = []store.HistoryRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"totals": s.recorder.Counters(),
		"recent": recent,
	})
}
