package http

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"learntrack/internal/auth"
	"learntrack/internal/catalog"
	"learntrack/internal/domain"
	"learntrack/internal/repository"
	"learntrack/internal/service"
	"learntrack/internal/storage"
)

const usernameContextKey = "username"

// Handler wires HTTP routes to domain services.
type Handler struct {
	users     service.UserService
	progress  service.ProgressService
	tokens    *auth.TokenManager
	storage   storage.Service
	bucket    string
	keyPrefix string
	webRoot   string
	logger    *logrus.Logger
}

func NewHandler(
	users service.UserService,
	progress service.ProgressService,
	tokens *auth.TokenManager,
	store storage.Service,
	bucket, keyPrefix, webRoot string,
	logger *logrus.Logger,
) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:     users,
		progress:  progress,
		tokens:    tokens,
		storage:   store,
		bucket:    bucket,
		keyPrefix: keyPrefix,
		webRoot:   webRoot,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/signup", h.signup)
		api.POST("/login", h.login)
		api.GET("/catalog", h.getCatalog)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusAccepted, gin.H{"ok": "ok"})
		})

		authed := api.Group("/")
		authed.Use(h.requireAuth())
		{
			authed.POST("/progress/save", h.saveProgress)
			authed.GET("/progress/load", h.loadProgress)
			authed.GET("/backups", h.listBackups)
		}
	}

	router.NoRoute(h.serveClient)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requireAuth extracts and verifies the bearer token, resolves the embedded
// username against the user store, and aborts with 401 (no token) or 403
// (unverifiable token or unknown user) before any store access happens.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "authorization required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "invalid authorization header"})
			return
		}

		username, err := h.tokens.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "invalid token"})
			return
		}

		if _, err := h.users.GetByUsername(c.Request.Context(), username); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "invalid token"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
			return
		}

		c.Set(usernameContextKey, username)
		c.Next()
	}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) signup(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "username and password are required"})
		return
	}

	if _, err := h.users.Register(c.Request.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"message": "username already taken"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	h.logger.Infof("user %q signed up", strings.TrimSpace(req.Username))
	c.JSON(http.StatusCreated, gin.H{"message": "signup successful"})
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "username and password are required"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid username or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}

	token, err := h.tokens.Issue(user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}

	h.logger.Infof("user %q logged in", user.Username)
	c.JSON(http.StatusOK, gin.H{"token": token, "username": user.Username})
}

type saveProgressRequest struct {
	Progress domain.Progress `json:"progress"`
}

func (h *Handler) saveProgress(c *gin.Context) {
	username := c.GetString(usernameContextKey)

	var req saveProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "malformed progress payload"})
		return
	}

	if err := h.progress.Save(c.Request.Context(), username, req.Progress); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to save progress"})
		return
	}

	h.logger.Infof("progress saved for %q (%d modules)", username, len(req.Progress.PhaseProgress))
	c.JSON(http.StatusOK, gin.H{"message": "progress saved"})
}

func (h *Handler) loadProgress(c *gin.Context) {
	username := c.GetString(usernameContextKey)

	record, err := h.progress.Load(c.Request.Context(), username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load progress"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"progress": record})
}

func (h *Handler) getCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"phases":       catalog.Phases(),
		"totalModules": catalog.TotalModules(),
	})
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func (h *Handler) listBackups(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "backup storage not configured"})
		return
	}

	objects, err := h.storage.ListObjects(c.Request.Context(), h.bucket, h.keyPrefix+"/")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}

// serveClient is the GET /* fallback: a matching file under the web root is
// served directly, anything else gets the client entry document.
func (h *Handler) serveClient(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
		return
	}
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
		return
	}

	requested := filepath.Join(h.webRoot, filepath.Clean("/"+c.Request.URL.Path))
	if info, err := os.Stat(requested); err == nil && !info.IsDir() {
		c.File(requested)
		return
	}
	c.File(filepath.Join(h.webRoot, "index.html"))
}
