package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"marginalia-backend/internal/common"
	"marginalia-backend/internal/models"
	"marginalia-backend/internal/rooms"

	"github.com/labstack/echo/v4"
)

type RoomHandler struct {
	Rooms common.RoomService
}

func NewRoomHandler(service common.RoomService) *RoomHandler {
	return &RoomHandler{Rooms: service}
}

// RoomID accepts both JSON strings and numbers, since clients send either.
// Numbers keep their literal decimal form.
type RoomID string

func (id *RoomID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RoomID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("roomId must be a string or a number")
	}
	*id = RoomID(n.String())
	return nil
}

type CreateRoomRequest struct {
	RoomID RoomID `json:"roomId" validate:"required"`
	Name   string `json:"name"`
}

type AppendContentRequest struct {
	Selection string `json:"selection"`
	XPath     string `json:"xpath"`
	PageURL   string `json:"page_url"`
	CreatedBy string `json:"createdBy"`
}

type RoomResponse struct {
	Message string       `json:"message"`
	Room    *models.Room `json:"room"`
}

type RoomsResponse struct {
	Message string        `json:"message"`
	Rooms   []models.Room `json:"rooms"`
}

type ContentResponse struct {
	Message string              `json:"message"`
	Content []models.Annotation `json:"content"`
}

type SummaryResponse struct {
	Message string `json:"message"`
	Summary string `json:"summary"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (h *RoomHandler) CreateRoom(c echo.Context) error {
	req := &CreateRoomRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body", Error: err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Message: "roomId is required", Error: err.Error()})
	}

	room, err := h.Rooms.CreateRoom(c.Request().Context(), string(req.RoomID), req.Name)
	if err != nil {
		if errors.Is(err, rooms.ErrConflict) {
			return roomError(err, "Room already exists")
		}
		return roomError(err, "Error creating room")
	}

	return c.JSON(http.StatusCreated, RoomResponse{
		Message: "Room created successfully!",
		Room:    room,
	})
}

func (h *RoomHandler) ListRooms(c echo.Context) error {
	list, err := h.Rooms.ListRooms(c.Request().Context())
	if err != nil {
		return roomError(err, "Error listing rooms")
	}

	return c.JSON(http.StatusOK, RoomsResponse{
		Message: fmt.Sprintf("Found %d rooms", len(list)),
		Rooms:   list,
	})
}

func (h *RoomHandler) GetRoom(c echo.Context) error {
	roomID := c.Param("roomId")

	room, err := h.Rooms.GetRoom(c.Request().Context(), roomID)
	if err != nil {
		return roomError(err, "Error fetching room")
	}

	return c.JSON(http.StatusOK, RoomResponse{
		Message: "Room found",
		Room:    room,
	})
}

// AppendContent adds one selection to a room that is still collecting.
func (h *RoomHandler) AppendContent(c echo.Context) error {
	roomID := c.Param("roomId")

	req := &AppendContentRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body", Error: err.Error()})
	}

	content, err := h.Rooms.AppendAnnotation(c.Request().Context(), roomID, rooms.AnnotationInput{
		Selection: req.Selection,
		XPath:     req.XPath,
		PageURL:   req.PageURL,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		switch {
		case errors.Is(err, rooms.ErrInvalidState):
			return roomError(err, "Cannot modify room. Summary already generated.")
		case errors.Is(err, rooms.ErrConflict):
			return roomError(err, "Room is busy, please retry")
		}
		return roomError(err, "Error adding content")
	}

	return c.JSON(http.StatusOK, ContentResponse{
		Message: "Content added successfully!",
		Content: content,
	})
}

func (h *RoomHandler) DeleteRoom(c echo.Context) error {
	roomID := c.Param("roomId")

	if err := h.Rooms.DeleteRoom(c.Request().Context(), roomID); err != nil {
		return roomError(err, "Error deleting room")
	}

	return c.JSON(http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Room with ID %s deleted successfully!", roomID),
	})
}

// GenerateSummary closes the room for new content and stores its summary.
func (h *RoomHandler) GenerateSummary(c echo.Context) error {
	roomID := c.Param("roomId")

	summary, err := h.Rooms.GenerateSummary(c.Request().Context(), roomID)
	if err != nil {
		if errors.Is(err, rooms.ErrInvalidState) {
			return roomError(err, "Summary already generated.")
		}
		return roomError(err, "Error generating summary")
	}

	return c.JSON(http.StatusOK, SummaryResponse{
		Message: "Summary generated and saved successfully!",
		Summary: summary,
	})
}
