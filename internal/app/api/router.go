package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	identityhttp "github.com/Apurer/vendor-orders/internal/domains/identity/adapters/http"
	identityports "github.com/Apurer/vendor-orders/internal/domains/identity/ports"
	ordershttp "github.com/Apurer/vendor-orders/internal/domains/orders/adapters/http"
	ordersapp "github.com/Apurer/vendor-orders/internal/domains/orders/application"
	ordersports "github.com/Apurer/vendor-orders/internal/domains/orders/ports"
)

// Dependencies are the collaborators the router serves.
type Dependencies struct {
	ServiceName    string
	Orders         ordersports.Service
	OrderWorkflows ordersports.WorkflowOrchestrator
	// LiveSessions builds one order session per live connection.
	LiveSessions   func() *ordersapp.Session
	Identity       identityports.Service
	Metrics        http.Handler
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter builds the /v1 API with health and metrics endpoints.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if deps.ServiceName != "" {
		router.Use(otelgin.Middleware(deps.ServiceName))
	}
	router.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	v1 := router.Group("/v1")
	identityhttp.NewHandler(deps.Identity).Register(v1)

	authed := v1.Group("", identityhttp.RequireSession(deps.Identity, nil))
	ordersHandler := ordershttp.NewHandler(deps.Orders, deps.OrderWorkflows, identityhttp.OwnerID,
		ordershttp.WithLogger(deps.Logger),
		ordershttp.WithLiveSessions(deps.LiveSessions),
		ordershttp.WithCheckOrigin(originChecker(deps.AllowedOrigins)),
	)
	ordersHandler.Register(authed)
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
