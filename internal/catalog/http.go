package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes exposes the lookup tables that survey front ends render as choices.
func RegisterRoutes(group *gin.RouterGroup, c *Catalog) {
	h := &httpHandler{catalog: c}
	g := group.Group("/catalog")
	g.GET("/depots", h.depots)
	g.GET("/depots/:depot/routes", h.routes)
	g.GET("/depots/:depot/routes/:route/stops", h.stops)
	g.GET("/hubs", h.hubs)
}

type httpHandler struct {
	catalog *Catalog
}

func (h *httpHandler) depots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"depots": h.catalog.Depots()})
}

func (h *httpHandler) routes(c *gin.Context) {
	routes := h.catalog.Routes(c.Param("depot"))
	if routes == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "depot not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"routes": routes})
}

func (h *httpHandler) stops(c *gin.Context) {
	stops := h.catalog.Stops(c.Param("depot"), c.Param("route"))
	if stops == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stops": stops})
}

func (h *httpHandler) hubs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"hubs": h.catalog.Hubs()})
}
