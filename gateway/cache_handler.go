package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/krisalay/estate-cache/api"
)

type CacheHandler struct {
	cache api.Cache
}

func NewCacheHandler(c api.Cache) *CacheHandler {
	return &CacheHandler{cache: c}
}

// Clear drops everything. ?key= removes one entry (for keys holding a
// slash) and ?prefix= removes a group.
func (h *CacheHandler) Clear(c *gin.Context) {
	if key := c.Query("key"); key != "" {
		h.remove(c, key)
		return
	}
	if prefix := c.Query("prefix"); prefix != "" {
		removed := h.cache.RemovePrefix(prefix)
		newSuccessResponse(c, http.StatusOK, "cache entries removed", gin.H{"removed": removed})
		return
	}
	h.cache.Clear()
	newSuccessResponse(c, http.StatusOK, "cache cleared", nil)
}

func (h *CacheHandler) Remove(c *gin.Context) {
	h.remove(c, c.Param("key"))
}

func (h *CacheHandler) remove(c *gin.Context, key string) {
	if h.cache.TTL(key) == -2 {
		newErrorResponse(c, http.StatusNotFound, "key not cached")
		return
	}
	h.cache.Remove(key)
	newSuccessResponse(c, http.StatusOK, "cache entry removed", nil)
}

func (h *CacheHandler) Health(c *gin.Context) {
	newSuccessResponse(c, http.StatusOK, "", gin.H{
		"status":  "ok",
		"entries": h.cache.Len(),
	})
}
