package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/example/go-aidetect/internal/detect"
	_ "github.com/example/go-aidetect/internal/server/docs"
	"github.com/example/go-aidetect/internal/text"
)

// MsgEmptyText is shown when the submitted text is empty or whitespace-only.
const MsgEmptyText = "Please enter some text to analyze!"

//go:embed templates/*.tmpl
var templatesFS embed.FS

var pageTemplate = template.Must(template.New("").ParseFS(templatesFS, "templates/*.tmpl"))

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	analyzer Analyzer
	opts     options
	sem      chan struct{} // semaphore for worker pool
	log      *slog.Logger
}

// ClassifyRequest is the JSON body of POST /api/v1/classify.
type ClassifyRequest struct {
	Text string `json:"text" example:"Paste the text to analyze here."`
}

// ErrorResponse is returned by the JSON API on failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// NewHandler returns the gin engine serving the page, the JSON API, /health
// and the Swagger UI.
func NewHandler(analyzer Analyzer, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		analyzer: analyzer,
		opts:     opts,
		log:      opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log))
	if len(opts.corsOrigins) > 0 {
		r.Use(cors.New(corsConfig(opts.corsOrigins)))
	}
	r.SetHTMLTemplate(pageTemplate)

	r.GET("/", h.handleIndex)
	r.POST("/", h.handleSubmit)
	r.GET("/health", h.handleHealth)

	api := r.Group("/api/v1")
	api.POST("/classify", h.handleClassify)
	api.GET("/info", h.handleInfo)

	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}

	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true

	return cfg
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// handleHealth godoc
//
//	@Summary	Liveness probe
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func (h *handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: buildVersion()})
}

// handleInfo godoc
//
//	@Summary	Loaded model information
//	@Tags		classify
//	@Produce	json
//	@Success	200	{object}	detect.Info
//	@Router		/api/v1/info [get]
func (h *handler) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.analyzer.Info())
}

// handleClassify godoc
//
//	@Summary	Classify text as AI-generated or human-written
//	@Tags		classify
//	@Accept		json
//	@Produce	json
//	@Param		request	body		ClassifyRequest	true	"Text to analyze"
//	@Success	200		{object}	detect.Prediction
//	@Failure	400		{object}	ErrorResponse
//	@Failure	413		{object}	ErrorResponse
//	@Failure	500		{object}	ErrorResponse
//	@Failure	503		{object}	ErrorResponse
//	@Failure	504		{object}	ErrorResponse
//	@Router		/api/v1/classify [post]
func (h *handler) handleClassify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON: " + err.Error()})
		return
	}

	pred, status, msg := h.analyze(c, req.Text)
	if status != http.StatusOK {
		c.JSON(status, ErrorResponse{Error: msg})
		return
	}

	c.JSON(http.StatusOK, pred)
}

// pageData feeds templates/index.html.tmpl.
type pageData struct {
	Text           string
	Warning        string
	Error          string
	Result         *detect.Prediction
	ShortTextWords int
}

func (h *handler) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html.tmpl", pageData{ShortTextWords: detect.ShortTextWords})
}

func (h *handler) handleSubmit(c *gin.Context) {
	raw := c.PostForm("text")
	page := pageData{Text: raw, ShortTextWords: detect.ShortTextWords}

	pred, status, msg := h.analyze(c, raw)
	switch {
	case status == http.StatusOK:
		page.Result = &pred
	case status == http.StatusBadRequest:
		page.Warning = msg
	default:
		page.Error = msg
	}

	c.HTML(status, "index.html.tmpl", page)
}

// analyze runs the detector under the worker limit and request deadline and
// maps failures to an HTTP status and a user-facing message.
func (h *handler) analyze(c *gin.Context, raw string) (detect.Prediction, int, string) {
	if len(raw) > h.opts.maxTextBytes {
		return detect.Prediction{}, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes)
	}

	if errors.Is(text.Validate(raw), text.ErrEmptyText) {
		return detect.Prediction{}, http.StatusBadRequest, MsgEmptyText
	}

	ctx := c.Request.Context()

	// Acquire a worker slot; honour cancellation while waiting.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
		case <-ctx.Done():
			return detect.Prediction{}, http.StatusServiceUnavailable, "request cancelled while waiting for worker"
		}
		defer func() { <-h.sem }()
	}

	if h.opts.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	pred, err := h.analyzer.Analyze(ctx, raw)
	durationMS := time.Since(start).Milliseconds()

	attrs := []any{
		slog.String("request_id", c.GetString(requestIDKey)),
		slog.Int("text_len", len(raw)),
		slog.Int64("duration_ms", durationMS),
	}

	if err != nil {
		switch {
		case errors.Is(err, text.ErrEmptyText):
			return detect.Prediction{}, http.StatusBadRequest, MsgEmptyText
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			h.log.WarnContext(ctx, "classification timed out", append(attrs, slog.String("error", err.Error()))...)
			return detect.Prediction{}, http.StatusGatewayTimeout, "analysis timed out, please try again"
		default:
			h.log.ErrorContext(ctx, "classification failed", append(attrs, slog.String("error", err.Error()))...)
			return detect.Prediction{}, http.StatusInternalServerError, "analysis failed: " + err.Error()
		}
	}

	h.log.InfoContext(ctx, "classification complete", append(attrs,
		slog.String("label", pred.Label),
		slog.Float64("confidence", pred.Confidence),
	)...)

	return pred, http.StatusOK, ""
}
