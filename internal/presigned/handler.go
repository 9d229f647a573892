package presigned

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the media link resolver.
func RegisterRoutes(rg *gin.RouterGroup, service *Service) {
	h := &handler{service: service}
	rg.GET("/media/*key", h.resolve)
}

type handler struct {
	service *Service
}

func (h *handler) resolve(c *gin.Context) {
	url, expires, err := h.service.MediaURL(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, ErrInvalidKey) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media key"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to sign media link"})
		return
	}

	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, gin.H{"url": url, "expires": expires})
		return
	}
	c.Redirect(http.StatusFound, url)
}
