package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nintynick/transitive-trust/internal/trust"
)

type trustQueryRequest struct {
	Viewer  string        `json:"viewer" binding:"required"`
	Target  string        `json:"target" binding:"required"`
	Domain  string        `json:"domain" binding:"required"`
	Options trust.Options `json:"options"`
}

func (h *APIHandler) handleTrustQuery(c *gin.Context) {
	var req trustQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Self-queries never touch the graph; everything else goes through
	// the cached neighborhood.
	if req.Viewer == req.Target {
		result, err := h.engine.EffectiveTrust(c.Request.Context(), req.Viewer, req.Target, req.Domain, req.Options)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	nb, err := h.neighborhood(c, req.Viewer, req.Domain, req.Options)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, nb.Lookup(req.Target))
}

type neighborhoodRequest struct {
	Viewer  string        `json:"viewer" binding:"required"`
	Domain  string        `json:"domain" binding:"required"`
	Options trust.Options `json:"options"`
}

func (h *APIHandler) handleNeighborhood(c *gin.Context) {
	var req neighborhoodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	nb, err := h.neighborhood(c, req.Viewer, req.Domain, req.Options)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, nb)
}

// neighborhood consults the cache before propagating.
func (h *APIHandler) neighborhood(c *gin.Context, viewer, domain string, opts trust.Options) (trust.Neighborhood, error) {
	if h.nbhds != nil {
		if nb, ok := h.nbhds.Get(viewer, domain, opts); ok {
			return nb, nil
		}
	}
	nb, err := h.engine.TrustNeighborhood(c.Request.Context(), viewer, domain, opts)
	if err != nil {
		return nil, err
	}
	if h.nbhds != nil {
		h.nbhds.Put(viewer, domain, opts, nb)
	}
	return nb, nil
}

type scoreRequest struct {
	Viewer  string        `json:"viewer" binding:"required"`
	Subject string        `json:"subject" binding:"required"`
	Domain  string        `json:"domain" binding:"required"`
	Options trust.Options `json:"options"`
}

func (h *APIHandler) handleScore(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	endorsements, err := h.store.EndorsementsForSubject(c.Request.Context(), req.Subject, req.Domain)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "graph store failure", "details": err.Error()})
		return
	}

	result, err := h.engine.PersonalizedScore(c.Request.Context(), req.Viewer, req.Subject, req.Domain, endorsements, req.Options)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type scoreBatchRequest struct {
	Viewer   string        `json:"viewer" binding:"required"`
	Subjects []string      `json:"subjects" binding:"required"`
	Domain   string        `json:"domain" binding:"required"`
	Options  trust.Options `json:"options"`
}

func (h *APIHandler) handleScoreBatch(c *gin.Context) {
	var req scoreBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch := make([]trust.SubjectEndorsements, 0, len(req.Subjects))
	for _, subject := range req.Subjects {
		endorsements, err := h.store.EndorsementsForSubject(c.Request.Context(), subject, req.Domain)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "graph store failure", "details": err.Error()})
			return
		}
		batch = append(batch, trust.SubjectEndorsements{Subject: subject, Endorsements: endorsements})
	}

	results, err := h.engine.PersonalizedScoresBatch(c.Request.Context(), req.Viewer, batch, req.Domain, req.Options)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

type feedRequest struct {
	Viewer  string          `json:"viewer" binding:"required"`
	Domain  string          `json:"domain" binding:"required"`
	SortBy  trust.FeedSort  `json:"sortBy"`
	Order   trust.SortOrder `json:"order"`
	Limit   int             `json:"limit"`
	Options trust.Options   `json:"options"`
}

func (h *APIHandler) handleFeed(c *gin.Context) {
	var req feedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	endorsements, err := h.store.EndorsementsByDomain(c.Request.Context(), req.Domain, req.Limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "graph store failure", "details": err.Error()})
		return
	}

	authors := make([]string, 0, len(endorsements))
	for _, e := range endorsements {
		authors = append(authors, e.Author)
	}
	names, err := h.store.DisplayNames(c.Request.Context(), authors)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "graph store failure", "details": err.Error()})
		return
	}

	entries := make([]trust.FeedEntry, len(endorsements))
	for i, e := range endorsements {
		entries[i] = trust.FeedEntry{Endorsement: e, AuthorName: names[e.Author]}
	}

	items, err := h.engine.Feed(c.Request.Context(), req.Viewer, req.Domain, entries, req.SortBy, req.Order, req.Options)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *APIHandler) handleSybil(c *gin.Context) {
	principal := c.Param("principal")

	input, err := h.store.SybilInputFor(c.Request.Context(), principal)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "graph store failure", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.engine.AssessSybil(input))
}
