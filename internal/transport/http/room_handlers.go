package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chatrelay/chatrelay-server/internal/store"
)

// RoomHandlers provides HTTP handlers for room management endpoints. This
// surface owns the RoomDescriptor data the realtime core reads for
// authorization.
type RoomHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		log:   logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name       string `json:"name" binding:"required,min=1,max=64"`
	Private    bool   `json:"private"`
	InviteCode string `json:"invite_code"`
}

// JoinRoomRequest carries the invite code for private rooms.
type JoinRoomRequest struct {
	InviteCode string `json:"invite_code"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	OwnerID    *int64 `json:"owner_id,omitempty"`
	InviteCode string `json:"invite_code,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func roomResponse(room *store.Room, includeInvite bool) RoomResponse {
	resp := RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		Type:      string(room.Type),
		OwnerID:   room.OwnerID,
		CreatedAt: room.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if includeInvite && room.InviteCode != nil {
		resp.InviteCode = *room.InviteCode
	}
	return resp
}

// CreateRoom handles room creation.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	roomType := store.RoomTypePublic
	var inviteCode *string
	if req.Private {
		roomType = store.RoomTypePrivate
		code := strings.TrimSpace(req.InviteCode)
		if code == "" {
			code = uuid.NewString()
		}
		inviteCode = &code
	}

	room, err := h.store.CreateRoom(c.Request.Context(), req.Name, roomType, &uid, inviteCode)
	if err != nil {
		// The UNIQUE constraint on the name column is the authoritative
		// duplicate guard.
		if strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "room with this name already exists"})
			return
		}
		h.log.Error().Err(err).Str("room_name", req.Name).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	// The creator is always a listed member of a private room.
	if req.Private {
		if err := h.store.AddMember(c.Request.Context(), uid, room.ID); err != nil {
			h.log.Error().Err(err).Int64("room_id", room.ID).Msg("failed to add creator as member")
		}
	}

	h.log.Info().Str("room_name", room.Name).Int64("room_id", room.ID).Int64("owner_id", uid).Msg("room created successfully")
	c.JSON(http.StatusCreated, roomResponse(room, true))
}

// ListRooms handles listing accessible rooms.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	rooms, err := h.store.ListRooms(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		includeInvite := room.OwnerID != nil && *room.OwnerID == uid
		response = append(response, roomResponse(room, includeInvite))
	}

	h.log.Debug().Int64("user_id", uid).Int("room_count", len(rooms)).Msg("rooms listed successfully")
	c.JSON(http.StatusOK, response)
}

// JoinRoom redeems an invite code and adds the caller to a private room's
// member list. Public rooms need no membership record.
// POST /api/rooms/:id/join
func (h *RoomHandlers) JoinRoom(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || roomID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
		return
	}

	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	room, err := h.store.GetRoomByID(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to load room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	switch room.Type {
	case store.RoomTypePublic:
		c.JSON(http.StatusOK, roomResponse(room, false))
		return
	case store.RoomTypeDirect:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot join a direct room"})
		return
	}

	if room.InviteCode == nil || *room.InviteCode != strings.TrimSpace(req.InviteCode) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "invalid invite code"})
		return
	}

	if err := h.store.AddMember(c.Request.Context(), uid, room.ID); err != nil {
		h.log.Error().Err(err).Int64("room_id", room.ID).Int64("user_id", uid).Msg("failed to add member")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("room_id", room.ID).Int64("user_id", uid).Msg("user joined private room")
	c.JSON(http.StatusOK, roomResponse(room, false))
}
