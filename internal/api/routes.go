// Package api exposes the trust engine over HTTP: query endpoints for
// effective trust, neighborhoods, personalized scores, feeds, and sybil
// assessments, plus the graph mutation surface with websocket fan-out.
package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nintynick/transitive-trust/internal/cache"
	"github.com/nintynick/transitive-trust/internal/trust"
	"github.com/nintynick/transitive-trust/pkg/models"
)

// GraphStore is the persistence surface the API needs: the engine's
// collaborator contract plus the mutation and listing operations. Both
// the PostgreSQL store and the in-memory store satisfy it.
type GraphStore interface {
	trust.EdgeSource

	UpsertPrincipal(ctx context.Context, p models.Principal) error
	GetPrincipal(ctx context.Context, id string) (*models.Principal, error)
	UpsertTrustEdge(ctx context.Context, e models.TrustEdge) (models.TrustEdge, error)
	DeleteTrustEdge(ctx context.Context, from, to, domain string) error
	UpsertDistrustEdge(ctx context.Context, e models.DistrustEdge) (models.DistrustEdge, error)
	DeleteDistrustEdge(ctx context.Context, from, to, domain string) error
	UpsertEndorsement(ctx context.Context, e models.Endorsement) (models.Endorsement, error)
	DeleteEndorsement(ctx context.Context, author, subject, domain string) error
	EndorsementsForSubject(ctx context.Context, subject, domain string) ([]models.Endorsement, error)
	EndorsementsByDomain(ctx context.Context, domain string, limit int) ([]models.Endorsement, error)
	DisplayNames(ctx context.Context, ids []string) (map[string]string, error)
	SybilInputFor(ctx context.Context, principal string) (trust.SybilInput, error)
}

type APIHandler struct {
	store  GraphStore
	engine *trust.Engine
	nbhds  *cache.NeighborhoodCache
	wsHub  *Hub
}

// SetupRouter wires the Gin router: public health/stream endpoints plus
// the protected query and mutation surface.
func SetupRouter(store GraphStore, nbhds *cache.NeighborhoodCache, wsHub *Hub) *gin.Engine {
	r := gin.Default()

	// CORS — configurable via ALLOWED_ORIGINS (comma separated), empty
	// means allow all for local development.
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		store:  store,
		engine: trust.New(store),
		nbhds:  nbhds,
		wsHub:  wsHub,
	}

	// ── Public endpoints (no auth) ─────────────────────────────
	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
	}

	// ── Protected endpoints (require bearer token if TRUST_API_TOKEN set) ──
	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware())
	// Propagation is the expensive path; 60 req/min per IP with burst 10.
	auth.Use(NewRateLimiter(60, 10).Middleware())
	{
		auth.POST("/trust/query", handler.handleTrustQuery)
		auth.POST("/trust/neighborhood", handler.handleNeighborhood)
		auth.POST("/score", handler.handleScore)
		auth.POST("/score/batch", handler.handleScoreBatch)
		auth.POST("/feed", handler.handleFeed)
		auth.GET("/sybil/:principal", handler.handleSybil)

		graph := auth.Group("/graph")
		{
			graph.PUT("/trust", handler.handleUpsertTrustEdge)
			graph.DELETE("/trust", handler.handleDeleteTrustEdge)
			graph.PUT("/distrust", handler.handleUpsertDistrustEdge)
			graph.DELETE("/distrust", handler.handleDeleteDistrustEdge)
		}

		auth.PUT("/endorsements", handler.handleUpsertEndorsement)
		auth.DELETE("/endorsements", handler.handleDeleteEndorsement)

		auth.POST("/principals", handler.handleUpsertPrincipal)
		auth.GET("/principals/:id", handler.handleGetPrincipal)
	}

	return r
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondEngineError maps the engine's error taxonomy onto HTTP:
// invalid options are the caller's fault (400), a cancelled or timed-out
// query is 504, and anything else is a collaborator failure (502).
func respondEngineError(c *gin.Context, err error) {
	if errors.Is(err, trust.ErrInvalidOptions) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "query cancelled"})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "graph store failure", "details": err.Error()})
}
