package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nintynick/transitive-trust/pkg/models"
)

// Graph mutations. Every successful edge or endorsement write invalidates
// the neighborhood cache and publishes a websocket event; principal
// registration does neither.

func (h *APIHandler) mutated(eventType string, payload interface{}) {
	if h.nbhds != nil {
		h.nbhds.Invalidate()
	}
	if h.wsHub != nil {
		h.wsHub.Publish(eventType, payload)
	}
}

func (h *APIHandler) handleUpsertTrustEdge(c *gin.Context) {
	var edge models.TrustEdge
	if err := c.ShouldBindJSON(&edge); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if edge.From == "" || edge.To == "" || edge.Domain == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from, to, and domain are required"})
		return
	}
	if edge.From == edge.To {
		c.JSON(http.StatusBadRequest, gin.H{"error": "self-referential edges are not allowed"})
		return
	}
	if edge.Weight < 0 || edge.Weight > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "weight must be in [0, 1]"})
		return
	}

	saved, err := h.store.UpsertTrustEdge(c.Request.Context(), edge)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "graph store failure", "details": err.Error()})
		return
	}
	h.mutated(EventTrustEdge, saved)
	c.JSON(http.StatusOK, saved)
}

type edgeRef struct {
	From   string `form:"from" binding:"required"`
	To     string `form:"to" binding:"required"`
	Domain string `form:"domain" binding:"required"`
}

func (h *APIHandler) handleDeleteTrustEdge(c *gin.Context) {
	var ref edgeRef
	if err := c.ShouldBindQuery(&ref); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.DeleteTrustEdge(c.Request.Context(), ref.From, ref.To, ref.Domain); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "graph store failure", "details": err.Error()})
		return
	}
	h.mutated(EventEdgeRevoked, ref)
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

func (h *APIHandler) handleUpsertDistrustEdge(c *gin.Context) {
	var edge models.DistrustEdge
	if err := c.ShouldBindJSON(&edge); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if edge.From == "" || edge.To == "" || edge.Domain == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from, to, and domain are required"})
		return
	}
	if edge.From == edge.To {
		c.JSON(http.StatusBadRequest, gin.H{"error": "self-referential edges are not allowed"})
		return
	}
	switch edge.Reason {
	case "", models.ReasonSpam, models.ReasonMalicious, models.ReasonIncompetent,
		models.ReasonConflictOfInterest, models.ReasonOther:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown distrust reason " + edge.Reason})
		return
	}

	saved, err := h.store.UpsertDistrustEdge(c.Request.Context(), edge)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "graph store failure", "details": err.Error()})
		return
	}
	h.mutated(EventDistrustEdge, saved)
	c.JSON(http.StatusOK, saved)
}

func (h *APIHandler) handleDeleteDistrustEdge(c *gin.Context) {
	var ref edgeRef
	if err := c.ShouldBindQuery(&ref); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.DeleteDistrustEdge(c.Request.Context(), ref.From, ref.To, ref.Domain); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "graph store failure", "details": err.Error()})
		return
	}
	h.mutated(EventEdgeRevoked, ref)
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

func (h *APIHandler) handleUpsertEndorsement(c *gin.Context) {
	var e models.Endorsement
	if err := c.ShouldBindJSON(&e); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if e.Author == "" || e.Subject == "" || e.Domain == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "author, subject, and domain are required"})
		return
	}
	if e.Rating.Score < 0 || e.Rating.Score > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating.score must be in [0, 1]"})
		return
	}

	saved, err := h.store.UpsertEndorsement(c.Request.Context(), e)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "graph store failure", "details": err.Error()})
		return
	}
	h.mutated(EventEndorsement, saved)
	c.JSON(http.StatusOK, saved)
}

type endorsementRef struct {
	Author  string `form:"author" binding:"required"`
	Subject string `form:"subject" binding:"required"`
	Domain  string `form:"domain" binding:"required"`
}

func (h *APIHandler) handleDeleteEndorsement(c *gin.Context) {
	var ref endorsementRef
	if err := c.ShouldBindQuery(&ref); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.DeleteEndorsement(c.Request.Context(), ref.Author, ref.Subject, ref.Domain); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "graph store failure", "details": err.Error()})
		return
	}
	h.mutated(EventEndorsementDel, ref)
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *APIHandler) handleUpsertPrincipal(c *gin.Context) {
	var p models.Principal
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if p.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	if err := h.store.UpsertPrincipal(c.Request.Context(), p); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "graph store failure", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"registered": true})
}

func (h *APIHandler) handleGetPrincipal(c *gin.Context) {
	p, err := h.store.GetPrincipal(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "graph store failure", "details": err.Error()})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown principal"})
		return
	}
	c.JSON(http.StatusOK, p)
}
