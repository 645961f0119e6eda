package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "vdestor_backend/internal/http"
	"vdestor_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type testConfig struct {
	secret string
	rps    float64
	burst  int
}

func (c testConfig) GetHTTPAddr() string                { return ":0" }
func (c testConfig) GetCORSAllowAll() bool              { return false }
func (c testConfig) GetCORSOrigins() []string           { return []string{"http://localhost:4200"} }
func (c testConfig) GetCORSAllowCreds() bool            { return true }
func (c testConfig) GetSearchRateLimit() (float64, int) { return c.rps, c.burst }
func (c testConfig) GetJWTAccessSecret() string         { return c.secret }

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type echoModule struct{}

func (echoModule) Name() string { return "echo" }

func (echoModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	public := ctx.V1.Group("")
	if ctx.SearchRateLimit != nil {
		public.Use(ctx.SearchRateLimit)
	}
	public.GET("/echo", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	if ctx.Admin != nil {
		ctx.Admin.GET("/echo", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"admin": true}) })
	}
}

func newEngine(cfg testConfig, health apphttp.HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(&apphttp.App{
		Config:  cfg,
		Logger:  logger.Discard(),
		Health:  health,
		Modules: []apphttp.Module{echoModule{}},
	})
}

func get(engine *gin.Engine, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func signToken(t *testing.T, secret string, roles ...string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   uuid.NewString(),
		"type":  "access",
		"roles": roles,
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestHealthAndRequestID(t *testing.T) {
	rec := get(newEngine(testConfig{}, nil), "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestReadyReportsDatabaseOutage(t *testing.T) {
	engine := newEngine(testConfig{}, pingFunc(func(context.Context) error { return errors.New("down") }))

	rec := get(engine, "/api/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["success"] != false || body["error_code"] != "NOT_READY" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	rec := get(newEngine(testConfig{}, nil), "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error_code"] != "NOT_FOUND" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestAdminRoutesDisabledWithoutSecret(t *testing.T) {
	rec := get(newEngine(testConfig{}, nil), "/api/v1/admin/echo", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without JWT secret, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	const secret = "test-secret"
	engine := newEngine(testConfig{secret: secret}, nil)

	if rec := get(engine, "/api/v1/admin/echo", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := get(engine, "/api/v1/admin/echo", signToken(t, secret, "viewer")); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}
	if rec := get(engine, "/api/v1/admin/echo", signToken(t, "other-secret", "admin")); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong signature, got %d", rec.Code)
	}
	if rec := get(engine, "/api/v1/admin/echo", signToken(t, secret, "admin")); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}

func TestSearchRateLimit(t *testing.T) {
	engine := newEngine(testConfig{rps: 0.001, burst: 2}, nil)

	for i := 0; i < 2; i++ {
		if rec := get(engine, "/api/v1/echo", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec := get(engine, "/api/v1/echo", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error_code"] != "RATE_LIMITED" {
		t.Fatalf("unexpected body %v", body)
	}
}
