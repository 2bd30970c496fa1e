package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AnonymousAuthor is stored when an annotation arrives without an author.
const AnonymousAuthor = "Anonymous"

// Annotation is one captured text selection. Annotations live inside the
// room record, ordered by ContentID.
type Annotation struct {
	ContentID int       `json:"content_id"`
	Selection string    `json:"selection"`
	XPath     string    `json:"xpath"`
	PageURL   string    `json:"page_url"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
}

type Room struct {
	ID               string                          `json:"id" gorm:"primaryKey"` // Storage key, never used for lookups
	RoomID           string                          `json:"room_id" gorm:"uniqueIndex;not null"`
	RoomName         string                          `json:"room_name"`
	Content          datatypes.JSONSlice[Annotation] `json:"content"`
	SummaryGenerated bool                            `json:"summary_generated" gorm:"not null;default:false"`
	Summary          string                          `json:"summary" gorm:"type:text;not null;default:''"`
	// Revision is bumped on every accepted write and guards conditional updates
	Revision  int64     `json:"revision" gorm:"not null;default:1"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Room) BeforeCreate(tx *gorm.DB) (err error) {
	// Using uuid v7 to be indexable with B-tree
	uuidV7, err := uuid.NewV7()
	if err != nil {
		return err
	}
	r.ID = uuidV7.String()
	if r.Revision == 0 {
		r.Revision = 1
	}
	if r.Content == nil {
		r.Content = datatypes.JSONSlice[Annotation]{}
	}

	return
}

// NextContentID is the id the next appended annotation receives.
func (r *Room) NextContentID() int {
	return len(r.Content) + 1
}

// Selections returns the annotation selections in content order.
func (r *Room) Selections() []string {
	out := make([]string, 0, len(r.Content))
	for _, a := range r.Content {
		out = append(out, a.Selection)
	}
	return out
}

// SummaryInput is the text handed to the summarizer: all selections joined by
// a single space.
func (r *Room) SummaryInput() string {
	return strings.Join(r.Selections(), " ")
}
