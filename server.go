package linky

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pevans/linky/archive"
	"github.com/pevans/linky/classify"
	"github.com/rs/zerolog"
)

const archiveAPIPrefix = "/api/v1/archive"

// ErrorResponse is the body of every failed API request.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// APIServer represents the HTTP API server for the archive.
type APIServer struct {
	store *archive.Store
	log   zerolog.Logger
}

// NewAPIServer creates a new archive API server.
func NewAPIServer(store *archive.Store, log zerolog.Logger) *APIServer {
	return &APIServer{
		store: store,
		log:   log,
	}
}

// SetupRouter configures the Gin router with all archive API routes
func (s *APIServer) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.Use(s.requestLogger)

	api := router.Group(archiveAPIPrefix)
	{
		api.GET("/stats", s.HandleStats)
		api.GET("/entries", s.HandleGetEntries)
		api.PUT("/entries", s.HandlePutEntry)
		api.DELETE("/entries", s.HandleDeleteEntries)
		api.DELETE("/entries/all", s.HandleClear)
		api.GET("/buckets/:bucket", s.HandleGetBucket)
		api.GET("/heartbeat", s.HandleHeartbeat)
		api.GET("/verify", s.HandleVerify)
		api.GET("/classify", s.HandleClassify)
	}

	return router
}

// requestLogger tags each request with an ID, reusing the caller's when
// present, and logs the outcome.
func (s *APIServer) requestLogger(c *gin.Context) {
	requestID := c.GetHeader(RequestIDHeader)
	if _, err := uuid.Parse(requestID); err != nil {
		requestID = uuid.NewString()
	}
	c.Header(RequestIDHeader, requestID)

	c.Next()

	s.log.Info().
		Str("request_id", requestID).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", c.Writer.Status()).
		Msg("Handled request")
}

// EntriesResponse represents the response for the entry listing routes.
type EntriesResponse struct {
	Entries []archive.Entry `json:"entries"`
	Total   int             `json:"total"`
}

// PutEntryRequest represents the request for PUT /api/v1/archive/entries.
type PutEntryRequest struct {
	URL     string `json:"url" binding:"required"`
	Content string `json:"content"`
	Bucket  string `json:"bucket,omitempty"`
}

// DeleteResponse represents the response for DELETE /api/v1/archive/entries.
type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// ClassifyResponse represents the response for GET /api/v1/archive/classify.
type ClassifyResponse struct {
	URL      string `json:"url"`
	Bucket   string `json:"bucket"`
	Filename string `json:"filename,omitempty"`
}

// HandleStats handles GET /api/v1/archive/stats.
func (s *APIServer) HandleStats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read stats")
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to read stats"))
		return
	}

	c.JSON(http.StatusOK, stats)
}

// HandleGetEntries handles GET /api/v1/archive/entries?url=.
func (s *APIServer) HandleGetEntries(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "url query parameter is required"))
		return
	}

	entries, err := s.store.GetByURL(c.Request.Context(), url)
	if err != nil {
		s.log.Error().Err(err).Str("url", url).Msg("Failed to read entries")
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to retrieve entries"))
		return
	}

	c.JSON(http.StatusOK, EntriesResponse{Entries: nonNil(entries), Total: len(entries)})
}

// HandleGetBucket handles GET /api/v1/archive/buckets/{bucket}.
func (s *APIServer) HandleGetBucket(c *gin.Context) {
	entries, err := s.store.GetByBucket(c.Request.Context(), c.Param("bucket"))
	if err != nil {
		s.log.Error().Err(err).Str("bucket", c.Param("bucket")).Msg("Failed to read bucket")
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to retrieve entries"))
		return
	}

	c.JSON(http.StatusOK, EntriesResponse{Entries: nonNil(entries), Total: len(entries)})
}

// HandlePutEntry handles PUT /api/v1/archive/entries. The URL is classified
// when no bucket is given.
func (s *APIServer) HandlePutEntry(c *gin.Context) {
	var req PutEntryRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		return
	}

	if req.Bucket == "" {
		req.Bucket = classify.Classify(req.URL)
	}

	result := s.store.Put(c.Request.Context(), req.URL, req.Content, req.Bucket)
	if !result.Saved {
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", result.Error))
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleDeleteEntries handles DELETE /api/v1/archive/entries?url=.
func (s *APIServer) HandleDeleteEntries(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "url query parameter is required"))
		return
	}

	deleted, err := s.store.DeleteByURL(c.Request.Context(), url)
	if err != nil {
		s.log.Error().Err(err).Str("url", url).Msg("Failed to delete entries")
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to delete entries"))
		return
	}

	c.JSON(http.StatusOK, DeleteResponse{Deleted: deleted})
}

// HandleClear handles DELETE /api/v1/archive/entries/all.
func (s *APIServer) HandleClear(c *gin.Context) {
	if err := s.store.Clear(c.Request.Context()); err != nil {
		s.log.Error().Err(err).Msg("Failed to clear archive")
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to clear archive"))
		return
	}

	c.Status(http.StatusNoContent)
}

// HandleHeartbeat handles GET /api/v1/archive/heartbeat.
func (s *APIServer) HandleHeartbeat(c *gin.Context) {
	if err := s.store.Heartbeat(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse("unavailable", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleVerify handles GET /api/v1/archive/verify.
func (s *APIServer) HandleVerify(c *gin.Context) {
	if err := s.store.Verify(c.Request.Context()); err != nil {
		if errors.Is(err, archive.ErrMetadataMismatch) {
			c.JSON(http.StatusConflict, errorResponse("metadata_mismatch", err.Error()))
			return
		}
		s.log.Error().Err(err).Msg("Failed to verify archive")
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to verify archive"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleClassify handles GET /api/v1/archive/classify?url=.
func (s *APIServer) HandleClassify(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "url query parameter is required"))
		return
	}

	resp := ClassifyResponse{URL: url, Bucket: classify.Classify(url)}
	if name, err := classify.MakeFilename(url); err == nil {
		resp.Filename = name
	}

	c.JSON(http.StatusOK, resp)
}

func nonNil(entries []archive.Entry) []archive.Entry {
	if entries == nil {
		return []archive.Entry{}
	}
	return entries
}
