package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marginalia-backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Store is the persistence contract the lifecycle manager relies on.
// Implementations must be safe for concurrent use and report failures
// wrapped in the package's error taxonomy.
type Store interface {
	Create(ctx context.Context, room *models.Room) error
	Get(ctx context.Context, roomID string) (*models.Room, error)
	List(ctx context.Context, limit int) ([]models.Room, error)
	// UpdateContent replaces the annotation list if the stored revision still
	// equals room.Revision and the room is not summarized. On success room is
	// updated in place; otherwise ErrRevisionMismatch.
	UpdateContent(ctx context.Context, room *models.Room, content []models.Annotation) error
	// CompleteSummary sets summary and summary_generated in one conditional
	// write, under the same rule as UpdateContent.
	CompleteSummary(ctx context.Context, room *models.Room, summary string) error
	Delete(ctx context.Context, roomID string) error
}

// Postgres insufficient_privilege
const pgInsufficientPrivilege = "42501"

// Postgres unique_violation, only seen when TranslateError is off
const pgUniqueViolation = "23505"

type GormStore struct {
	db    *gorm.DB
	table string
}

func NewGormStore(db *gorm.DB, table string) *GormStore {
	if table == "" {
		table = "rooms"
	}
	return &GormStore{db: db, table: table}
}

func (s *GormStore) Migrate() error {
	return s.db.Table(s.table).AutoMigrate(&models.Room{})
}

func (s *GormStore) rooms(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

func (s *GormStore) Create(ctx context.Context, room *models.Room) error {
	if err := s.rooms(ctx).Create(room).Error; err != nil {
		return translateError(fmt.Sprintf("create room %s", room.RoomID), err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	if err := s.rooms(ctx).Where("room_id = ?", roomID).First(&room).Error; err != nil {
		return nil, translateError(fmt.Sprintf("find room %s", roomID), err)
	}
	return &room, nil
}

func (s *GormStore) List(ctx context.Context, limit int) ([]models.Room, error) {
	var rooms []models.Room
	q := s.rooms(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rooms).Error; err != nil {
		return nil, translateError("list rooms", err)
	}
	return rooms, nil
}

func (s *GormStore) UpdateContent(ctx context.Context, room *models.Room, content []models.Annotation) error {
	now := time.Now()
	next := datatypes.JSONSlice[models.Annotation](content)

	err := s.conditionalUpdate(ctx, room, map[string]interface{}{
		"content":    next,
		"revision":   gorm.Expr("revision + 1"),
		"updated_at": now,
	})
	if err != nil {
		return err
	}

	room.Content = next
	room.Revision++
	room.UpdatedAt = now
	return nil
}

func (s *GormStore) CompleteSummary(ctx context.Context, room *models.Room, summary string) error {
	now := time.Now()

	err := s.conditionalUpdate(ctx, room, map[string]interface{}{
		"summary":           summary,
		"summary_generated": true,
		"revision":          gorm.Expr("revision + 1"),
		"updated_at":        now,
	})
	if err != nil {
		return err
	}

	room.Summary = summary
	room.SummaryGenerated = true
	room.Revision++
	room.UpdatedAt = now
	return nil
}

// conditionalUpdate is the compare-and-swap both mutations go through: the
// write lands only if nobody else wrote the room since it was read.
func (s *GormStore) conditionalUpdate(ctx context.Context, room *models.Room, values map[string]interface{}) error {
	result := s.rooms(ctx).
		Where("room_id = ? AND revision = ? AND summary_generated = ?", room.RoomID, room.Revision, false).
		Updates(values)
	if result.Error != nil {
		return translateError(fmt.Sprintf("update room %s", room.RoomID), result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRevisionMismatch
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, roomID string) error {
	result := s.rooms(ctx).Where("room_id = ?", roomID).Delete(&models.Room{})
	if result.Error != nil {
		return translateError(fmt.Sprintf("delete room %s", roomID), result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("delete room %s: %w", roomID, ErrNotFound)
	}
	return nil
}

func translateError(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgInsufficientPrivilege:
			return fmt.Errorf("%s: %w: %s", op, ErrForbidden, pgErr.Message)
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", op, ErrConflict)
		}
	}

	return fmt.Errorf("%s: %w: %v", op, ErrStorage, err)
}
