package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"fredscafe-rewards/pkg/config"
	"fredscafe-rewards/pkg/health"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pingRoutes struct{}

func (pingRoutes) Register(r gin.IRouter) {
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func TestNewEngine_MountsOperationalAndVersionedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := NewEngine(EngineParams{
		Config: &config.Config{},
		Logger: zap.NewNop(),
		Health: health.ProvideHealth(health.HealthParams{}),
		Routes: []Routes{pingRoutes{}},
	})

	for path, want := range map[string]int{
		"/healthz": http.StatusOK,
		"/readyz":  http.StatusOK,
		"/metrics": http.StatusOK,
		"/v1/ping": http.StatusOK,
		"/ping":    http.StatusNotFound,
	} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, want, w.Code, path)
	}
}

func TestNewHttpServer_TLSRequiresKeyPair(t *testing.T) {
	cfg := &config.Config{}
	cfg.TLS.Enable = true
	cfg.TLS.CertPath = "/nonexistent/cert.pem"
	cfg.TLS.KeyPath = "/nonexistent/key.pem"

	_, err := NewHttpServer(Params{Config: cfg, Handler: gin.New()})
	require.Error(t, err)
}
