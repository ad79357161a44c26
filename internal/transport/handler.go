package transport

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	apperrors "go-naturalness-inspector/internal/errors"
	"go-naturalness-inspector/internal/imaging"
	"go-naturalness-inspector/internal/logger"
	"go-naturalness-inspector/internal/service"
	"go-naturalness-inspector/pkg/models"
)

// HandlerConfig carries the HTTP-level limits.
type HandlerConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

// NewHandler builds the gin router serving the scoring API.
func NewHandler(svc service.ScoringService, cfg HandlerConfig) http.Handler {
	r := gin.New()

	// Add middleware
	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	h := &handler{svc: svc, cfg: cfg}

	// Configure routes
	r.GET("/health", h.healthCheck)
	r.GET("/metrics", h.metrics)
	r.GET("/history", h.history)
	r.POST("/analyze-single", h.analyzeSingle)
	r.POST("/analyze-batch", h.analyzeBatch)
	r.POST("/analyze-file", h.analyzeFile)

	return r
}

type handler struct {
	svc service.ScoringService
	cfg HandlerConfig
}

func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.cfg.RequestTimeout > 0 {
		return context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	}
	return context.WithCancel(c.Request.Context())
}

// pipelineParam lets the query string override the body.
func pipelineParam(c *gin.Context, body string) string {
	if p := c.Query("pipeline"); p != "" {
		return p
	}
	return body
}

func (h *handler) analyzeSingle(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	var req models.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindStatus(err), "invalid request format", err)
		return
	}
	req.Pipeline = pipelineParam(c, req.Pipeline)

	result, err := h.svc.Score(ctx, req)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "scoring failed", err)
		return
	}
	c.JSON(http.StatusOK, models.ScoreResponse{Success: true, Result: result})
}

func (h *handler) analyzeBatch(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	var req models.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindStatus(err), "invalid request format", err)
		return
	}
	req.Pipeline = pipelineParam(c, req.Pipeline)

	resp, err := h.svc.ScoreBatch(ctx, req)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "batch scoring failed", err)
		return
	}

	logger.WithFields(logrus.Fields{
		"batch_id":   resp.BatchID,
		"total":      resp.Summary.Total,
		"successful": resp.Summary.Successful,
		"failed":     resp.Summary.Failed,
	}).Info("Batch scored")

	c.JSON(http.StatusOK, resp)
}

func (h *handler) analyzeFile(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, bindStatus(err), "multipart field \"file\" is required",
			apperrors.NewValidationError("missing file", err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "cannot read upload", err)
		return
	}
	defer f.Close()

	img, _, err := imaging.Decode(f)
	if err != nil {
		appErr := apperrors.FromError(err)
		respondError(c, appErr.StatusCode, "cannot decode upload", appErr)
		return
	}

	result, err := h.svc.ScoreImage(ctx, img, fh.Filename, pipelineParam(c, c.PostForm("pipeline")))
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "scoring failed", err)
		return
	}
	c.JSON(http.StatusOK, models.ScoreResponse{Success: true, Result: result})
}

func (h *handler) history(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondError(c, http.StatusBadRequest, "invalid limit",
				apperrors.NewValidationError("limit must be a non-negative integer", err))
			return
		}
		limit = n
	}

	records, err := h.svc.History(c.Request.Context(), limit)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "history unavailable", err)
		return
	}
	c.JSON(http.StatusOK, models.HistoryResponse{Records: records})
}

func (h *handler) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Metrics())
}

func (h *handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Health())
}

// Middleware and helper functions

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}).Debug("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// bindStatus distinguishes oversized bodies from malformed ones.
func bindStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func respondError(c *gin.Context, code int, message string, err error) {
	fields := logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}
	entry := logger.WithError(err).WithFields(fields)
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	resp := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Type = string(appErr.Type)
		resp.Message = message + ": " + appErr.Message
	} else if err != nil {
		resp.Message = message + ": " + err.Error()
	}
	c.AbortWithStatusJSON(code, resp)
}
