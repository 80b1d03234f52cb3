// Package http wires the management surface: thin room/membership CRUD
// and message history around the coordinator core, plus the streaming
// endpoint.
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/firasmosbehi/microservice-chatapp/internal/adapters/ws"
	"github.com/firasmosbehi/microservice-chatapp/internal/app"
	"github.com/firasmosbehi/microservice-chatapp/internal/config"
	"github.com/firasmosbehi/microservice-chatapp/internal/core"
	"github.com/firasmosbehi/microservice-chatapp/internal/domain"
	"github.com/firasmosbehi/microservice-chatapp/internal/store"
)

const principalKey = "principal"

// BearerAuth verifies the Authorization header and binds the principal
// to the request context.
func BearerAuth(verifier core.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		principal, err := verifier.Verify(c.Request.Context(), strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

func principalFrom(c *gin.Context) domain.Principal {
	p, _ := c.MustGet(principalKey).(domain.Principal)
	return p
}

// SetupRouter wires HTTP routes (REST + WS) with the coordinator.
func SetupRouter(ctx context.Context, cfg *config.Config, coord *app.Coordinator, st *store.Store) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Chat Coordinator Running",
			"version": "1.0.0",
		})
	})

	wsCtl := ws.NewController(coord, cfg)
	r.GET("/ws", func(c *gin.Context) {
		wsCtl.HandleWS(ctx, c)
	})

	api := r.Group("/api", BearerAuth(coord.Auth))

	// POST /api/rooms — create a room
	api.POST("/rooms", func(c *gin.Context) {
		var req struct {
			Name      string `json:"name" binding:"required"`
			IsPrivate bool   `json:"is_private"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name"})
			return
		}
		room := &domain.Room{
			ID:        domain.RoomID(uuid.NewString()),
			Name:      req.Name,
			IsPrivate: req.IsPrivate,
			CreatedAt: time.Now().UTC(),
		}
		if err := st.CreateRoom(c.Request.Context(), room); err != nil {
			if errors.Is(err, store.ErrRoomExists) {
				c.JSON(http.StatusConflict, gin.H{"error": "room already exists"})
				return
			}
			log.Error().Err(err).Str("module", "adapters.http").Msg("create room")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
			return
		}
		c.JSON(http.StatusCreated, room)
	})

	// GET /api/rooms — list rooms
	api.GET("/rooms", func(c *gin.Context) {
		rooms, err := st.ListRooms(c.Request.Context())
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("list rooms")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rooms": rooms})
	})

	// GET /api/rooms/:id — room info with live counts
	api.GET("/rooms/:id", func(c *gin.Context) {
		id := domain.RoomID(c.Param("id"))
		room, err := st.GetRoom(c.Request.Context(), id)
		if err != nil {
			roomError(c, err)
			return
		}
		memberCount, subscriberCount := 0, 0
		if live, ok := coord.Rooms.Peek(id); ok {
			memberCount = len(live.Members())
			subscriberCount = live.SubscriberCount()
		}
		c.JSON(http.StatusOK, gin.H{
			"room":             room,
			"member_count":     memberCount,
			"subscriber_count": subscriberCount,
		})
	})

	// GET /api/rooms/:id/members — current membership
	api.GET("/rooms/:id/members", func(c *gin.Context) {
		room, err := coord.Rooms.Get(c.Request.Context(), domain.RoomID(c.Param("id")))
		if err != nil {
			roomError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"members": room.Members()})
	})

	// POST /api/rooms/:id/members — join membership as the caller
	api.POST("/rooms/:id/members", func(c *gin.Context) {
		room, err := coord.Rooms.Get(c.Request.Context(), domain.RoomID(c.Param("id")))
		if err != nil {
			roomError(c, err)
			return
		}
		p := principalFrom(c)
		room.AddMember(p.UserID, p.DisplayName)
		c.Status(http.StatusNoContent)
	})

	// DELETE /api/rooms/:id/members/:uid — leave membership
	api.DELETE("/rooms/:id/members/:uid", func(c *gin.Context) {
		room, err := coord.Rooms.Get(c.Request.Context(), domain.RoomID(c.Param("id")))
		if err != nil {
			roomError(c, err)
			return
		}
		room.RemoveMember(domain.UserID(c.Param("uid")))
		c.Status(http.StatusNoContent)
	})

	// GET /api/rooms/:id/messages?after=-1&limit=50 — durable history
	api.GET("/rooms/:id/messages", func(c *gin.Context) {
		id := domain.RoomID(c.Param("id"))
		if _, err := st.GetRoom(c.Request.Context(), id); err != nil {
			roomError(c, err)
			return
		}
		after, err := strconv.ParseInt(c.DefaultQuery("after", "-1"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid after"})
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		messages, err := st.List(c.Request.Context(), id, after, limit)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("list messages")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": messages})
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}

func roomError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	log.Error().Err(err).Str("module", "adapters.http").Msg("room lookup")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
}
