package common

import (
	"context"

	"marginalia-backend/internal/config"
	"marginalia-backend/internal/events"
	"marginalia-backend/internal/models"
	"marginalia-backend/internal/rooms"
	"marginalia-backend/internal/summarizer"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// RoomService is the part of the lifecycle manager the HTTP layer drives.
type RoomService interface {
	CreateRoom(ctx context.Context, roomID, name string) (*models.Room, error)
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	AppendAnnotation(ctx context.Context, roomID string, in rooms.AnnotationInput) ([]models.Annotation, error)
	GenerateSummary(ctx context.Context, roomID string) (string, error)
	DeleteRoom(ctx context.Context, roomID string) error
}

type ServerState struct {
	Echo       *echo.Echo
	Config     *config.Config
	DB         *gorm.DB
	Redis      *redis.Client
	Broker     events.Broker
	Summarizer summarizer.Summarizer
	Rooms      RoomService
}
