// Package server is the HTTP edge: routing, identity resolution and the
// uniform result envelope. All business rules live in the services it calls.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lijunhao/projfin/internal/auth"
	"github.com/lijunhao/projfin/internal/claim"
	"github.com/lijunhao/projfin/internal/importer"
	"github.com/lijunhao/projfin/internal/project"
	"github.com/lijunhao/projfin/internal/report"
	"github.com/lijunhao/projfin/internal/settlement"
	"github.com/lijunhao/projfin/internal/user"
)

// Deps holds the services the HTTP layer dispatches to.
type Deps struct {
	Users       *user.Service
	Tokens      *auth.TokenIssuer
	Projects    *project.Service
	Claims      *claim.Service
	Paper       *importer.PaperImporter
	Revenue     *importer.RevenueImporter
	Settlements *settlement.Service
	Reports     *report.Aggregator
	Logger      *zap.Logger
}

// Server wires gin routes onto the services.
type Server struct {
	deps   Deps
	router *gin.Engine
	logger *zap.Logger
}

// New builds the router. Debug switches gin out of release mode.
func New(deps Deps, debug bool) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{deps: deps, logger: deps.Logger}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(deps.Logger))
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "projfin",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api/v1")
	api.POST("/auth/login", s.handleLogin)

	authed := api.Group("")
	authed.Use(s.identityMiddleware())
	{
		authed.GET("/projects", s.handleListProjects)
		authed.POST("/projects", s.handleUpsertProject)
		authed.POST("/projects/period-data", s.handleUpsertPeriodData)

		authed.GET("/claims", s.handleListClaims)
		authed.POST("/claims", s.handleSaveClaim)
		authed.GET("/claims/:id", s.handleClaimDetail)
		authed.POST("/claims/:id/submit", s.handleSubmitClaim)
		authed.POST("/claims/:id/decide", s.handleDecideClaim)

		authed.POST("/imports/paper", s.handlePaperImport)
		authed.POST("/imports/revenue", s.handleRevenueImport)

		authed.POST("/settlements/generate", s.handleGenerateSettlement)
		authed.GET("/settlements", s.handleSettlementDetail)

		authed.POST("/reports/monthly", s.handleMonthlyReport)
	}

	s.router = router
	return s
}

// Handler exposes the router for the http.Server in main.
func (s *Server) Handler() http.Handler {
	return s.router
}
