package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"libchat/internal/middleware"
	"libchat/internal/store"
)

type ChatHandler struct {
	Store *store.Store
}

type createMessageBody struct {
	Message string `json:"message" binding:"required"`
}

// Messages returns the backlog: every thread for admins, the caller's own
// conversation otherwise.
func (h *ChatHandler) Messages(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = v
	}

	msgs := h.Store.ListMessages(claims.UserID, claims.Role == "admin", limit)
	c.JSON(http.StatusOK, msgs)
}

func (h *ChatHandler) Create(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body createMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	isAdmin := 0
	if claims.Role == "admin" {
		isAdmin = 1
	}
	msg := h.Store.AppendMessage(claims.UserID, body.Message, isAdmin)
	c.JSON(http.StatusOK, msg)
}
