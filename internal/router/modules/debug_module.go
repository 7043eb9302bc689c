package modules

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yhensel/burgers-api/internal/interface/middleware"
)

// DebugModule exposes Prometheus metrics to private networks only.
type DebugModule struct {
	Metrics http.Handler
}

func NewDebugModule(metrics http.Handler) *DebugModule { return &DebugModule{Metrics: metrics} }

func (m *DebugModule) Register(rg *gin.RouterGroup) {
	rg.GET("/debug/metrics", middleware.RequireAllowed(middleware.AllowPrivateIP()), gin.WrapH(m.Metrics))
}
