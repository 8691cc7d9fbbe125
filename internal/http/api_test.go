package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learntrack/internal/auth"
	"learntrack/internal/domain"
	"learntrack/internal/repository/memory"
	"learntrack/internal/service"
)

const testSecret = "test-secret"

func newTestRouter(t *testing.T) (*gin.Engine, *auth.TokenManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	userRepo := memory.NewUserRepository()
	progressRepo := memory.NewProgressRepository()
	tokens := auth.NewTokenManager([]byte(testSecret), time.Hour)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	handler := NewHandler(
		service.NewUserService(userRepo, progressRepo),
		service.NewProgressService(progressRepo),
		tokens,
		nil,
		"",
		"",
		t.TempDir(),
		logger,
	)

	router := gin.New()
	handler.RegisterRoutes(router)
	return router, tokens
}

func doJSON(router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func signupAndLogin(t *testing.T, router *gin.Engine, username, password string) string {
	t.Helper()

	w := doJSON(router, http.MethodPost, "/api/signup", "", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/api/login", "", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, username, resp.Username)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestSignupLoginSaveLoadScenario(t *testing.T) {
	router, _ := newTestRouter(t)

	token := signupAndLogin(t, router, "alice", "pw1")

	payload := `{"progress":{"completedModules":1,"phaseProgress":{"module_1":true}}}`
	w := doJSON(router, http.MethodPost, "/api/progress/save", token, payload)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/progress/load", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Progress domain.Progress `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Progress.CompletedModules)
	assert.Equal(t, map[string]bool{"module_1": true}, resp.Progress.PhaseProgress)
}

func TestSignupDuplicate(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/signup", "", `{"username":"alice","password":"pw1"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/api/signup", "", `{"username":"alice","password":"other"}`)
	require.Equal(t, http.StatusConflict, w.Code)

	// the original credentials still log in
	w = doJSON(router, http.MethodPost, "/api/login", "", `{"username":"alice","password":"pw1"}`)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSignupMissingFields(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/signup", "", `{"username":"alice"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/signup", "", `not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/signup", "", `{"username":"alice","password":"pw1"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/api/login", "", `{"username":"alice","password":"wrong"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["message"])
	assert.Empty(t, resp["token"])
}

func TestLoginUnknownUser(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/login", "", `{"username":"ghost","password":"pw"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProgressRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/progress/save", "", `{"progress":{"completedModules":0,"phaseProgress":{}}}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodGet, "/api/progress/load", "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProgressRejectsMalformedToken(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/progress/save", "garbage", `{"progress":{"completedModules":0,"phaseProgress":{}}}`)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, http.MethodGet, "/api/progress/load", "garbage", "")
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestProgressRejectsWrongAuthScheme(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/progress/load", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwdw==")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestProgressRejectsTokenForUnknownUser(t *testing.T) {
	router, tokens := newTestRouter(t)

	// a token signed with the real secret but naming a user that never
	// signed up must be rejected, not treated as an empty account
	forged, err := tokens.Issue("ghost")
	require.NoError(t, err)

	w := doJSON(router, http.MethodGet, "/api/progress/load", forged, "")
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestProgressRejectsExpiredToken(t *testing.T) {
	router, _ := newTestRouter(t)
	signupAndLogin(t, router, "alice", "pw1")

	expired := auth.NewTokenManager([]byte(testSecret), -time.Minute)
	token, err := expired.Issue("alice")
	require.NoError(t, err)

	w := doJSON(router, http.MethodGet, "/api/progress/load", token, "")
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoadWithoutSaveReturnsDefaultRecord(t *testing.T) {
	router, _ := newTestRouter(t)

	token := signupAndLogin(t, router, "alice", "pw1")

	w := doJSON(router, http.MethodGet, "/api/progress/load", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Progress domain.Progress `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Progress.CompletedModules)
	assert.Empty(t, resp.Progress.PhaseProgress)
}

func TestSaveReplacesRecordWholesale(t *testing.T) {
	router, _ := newTestRouter(t)

	token := signupAndLogin(t, router, "alice", "pw1")

	w := doJSON(router, http.MethodPost, "/api/progress/save", token,
		`{"progress":{"completedModules":2,"phaseProgress":{"module_1":true,"module_2":true}}}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/api/progress/save", token,
		`{"progress":{"completedModules":1,"phaseProgress":{"module_7":true}}}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/progress/load", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Progress domain.Progress `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, map[string]bool{"module_7": true}, resp.Progress.PhaseProgress)
}

func TestSaveMalformedPayload(t *testing.T) {
	router, _ := newTestRouter(t)

	token := signupAndLogin(t, router, "alice", "pw1")

	w := doJSON(router, http.MethodPost, "/api/progress/save", token, `{"progress":"not an object"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/progress/save", token, `not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalogEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/catalog", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Phases []struct {
			ID          string `json:"id"`
			ModuleCount int    `json:"moduleCount"`
		} `json:"phases"`
		TotalModules int `json:"totalModules"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 23, resp.TotalModules)
	require.Len(t, resp.Phases, 3)
	assert.Equal(t, 9, resp.Phases[0].ModuleCount)
}

func TestBackupsUnavailableWhenNotConfigured(t *testing.T) {
	router, _ := newTestRouter(t)

	token := signupAndLogin(t, router, "alice", "pw1")

	w := doJSON(router, http.MethodGet, "/api/backups", token, "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/health", "", "")
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestUnknownAPIRouteIs404(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/nope", "", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}
