// Package rooms owns the room annotation lifecycle: rooms collect
// annotations until a summary is generated, after which their content is
// frozen.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"marginalia-backend/internal/events"
	"marginalia-backend/internal/models"
	"marginalia-backend/internal/summarizer"

	"github.com/labstack/echo/v4"
)

const (
	maxAppendAttempts  = 16
	maxSummaryAttempts = 3
	appendBackoffBase  = 5 * time.Millisecond
	listLimit          = 100

	defaultSummaryTimeout = 60 * time.Second
)

// AnnotationInput is what a collaborator submits for one selection.
type AnnotationInput struct {
	Selection string
	XPath     string
	PageURL   string
	CreatedBy string
}

type Manager struct {
	store          Store
	summarizer     summarizer.Summarizer
	events         events.Publisher
	logger         echo.Logger
	summaryTimeout time.Duration
	now            func() time.Time
}

func NewManager(store Store, s summarizer.Summarizer, publisher events.Publisher, logger echo.Logger, summaryTimeout time.Duration) *Manager {
	if summaryTimeout <= 0 {
		summaryTimeout = defaultSummaryTimeout
	}
	return &Manager{
		store:          store,
		summarizer:     s,
		events:         publisher,
		logger:         logger,
		summaryTimeout: summaryTimeout,
		now:            time.Now,
	}
}

// CreateRoom stores a new, empty room. A room_id already in use fails with
// ErrConflict.
func (m *Manager) CreateRoom(ctx context.Context, roomID, name string) (*models.Room, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, fmt.Errorf("room id is required: %w", ErrValidation)
	}

	room := &models.Room{
		RoomID:   roomID,
		RoomName: name,
	}
	if err := m.store.Create(ctx, room); err != nil {
		return nil, err
	}

	m.logger.Infof("Created room %s", roomID)
	m.publish(ctx, events.RoomCreated, roomID, room)
	return room, nil
}

func (m *Manager) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	return m.store.Get(ctx, roomID)
}

func (m *Manager) ListRooms(ctx context.Context) ([]models.Room, error) {
	return m.store.List(ctx, listLimit)
}

// AppendAnnotation adds one annotation to a collecting room and returns the
// whole updated content list. Concurrent appends to the same room are
// serialized by the store's conditional write; the loser re-reads and
// retries, so content ids stay gapless and unique.
func (m *Manager) AppendAnnotation(ctx context.Context, roomID string, in AnnotationInput) ([]models.Annotation, error) {
	author := in.CreatedBy
	if author == "" {
		author = models.AnonymousAuthor
	}

	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		room, err := m.store.Get(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if room.SummaryGenerated {
			return nil, fmt.Errorf("room %s: summary already generated: %w", roomID, ErrInvalidState)
		}

		annotation := models.Annotation{
			ContentID: room.NextContentID(),
			Selection: in.Selection,
			XPath:     in.XPath,
			PageURL:   in.PageURL,
			CreatedAt: m.now().UTC(),
			CreatedBy: author,
		}

		content := make([]models.Annotation, 0, len(room.Content)+1)
		content = append(content, room.Content...)
		content = append(content, annotation)

		err = m.store.UpdateContent(ctx, room, content)
		if err == nil {
			annotationsAppended.Inc()
			m.logger.Debugf("Added content %d to room %s", annotation.ContentID, roomID)
			m.publish(ctx, events.AnnotationAdded, roomID, annotation)
			return content, nil
		}
		if !errors.Is(err, ErrRevisionMismatch) {
			return nil, err
		}

		appendConflicts.Inc()
		m.logger.Debugf("Room %s changed under append (attempt %d), retrying", roomID, attempt)
		if err := sleepWithJitter(ctx, attempt); err != nil {
			return nil, fmt.Errorf("room %s: append interrupted: %w", roomID, ErrConflict)
		}
	}

	m.logger.Warnf("Giving up append on room %s after %d attempts", roomID, maxAppendAttempts)
	return nil, fmt.Errorf("room %s: too many concurrent writes: %w", roomID, ErrConflict)
}

// GenerateSummary performs the one-shot collecting -> summarized transition.
// The summarizer runs without any hold on the room; the result is stored only
// if the room is still at the revision that was summarized. A caller that
// loses the race to another summary gets ErrInvalidState and its output is
// discarded. If annotations landed while the summarizer was running, the
// output is stale and the transition starts over.
func (m *Manager) GenerateSummary(ctx context.Context, roomID string) (string, error) {
	for attempt := 1; attempt <= maxSummaryAttempts; attempt++ {
		room, err := m.store.Get(ctx, roomID)
		if err != nil {
			return "", err
		}
		if room.SummaryGenerated {
			return "", fmt.Errorf("room %s: summary already generated: %w", roomID, ErrInvalidState)
		}

		m.logger.Infof("Generating summary for room %s from %d annotations", roomID, len(room.Content))
		summary, err := m.summarize(ctx, room.SummaryInput())
		if err != nil {
			summaries.WithLabelValues(summaryFailed).Inc()
			return "", fmt.Errorf("room %s: %w", roomID, err)
		}

		err = m.store.CompleteSummary(ctx, room, summary)
		if err == nil {
			summaries.WithLabelValues(summaryGenerated).Inc()
			m.publish(ctx, events.SummaryGenerated, roomID, map[string]string{"summary": summary})
			return summary, nil
		}
		if !errors.Is(err, ErrRevisionMismatch) {
			return "", err
		}

		current, err := m.store.Get(ctx, roomID)
		if err != nil {
			return "", err
		}
		if current.SummaryGenerated {
			summaries.WithLabelValues(summaryDiscarded).Inc()
			m.logger.Infof("Room %s was summarized by a concurrent request, discarding result", roomID)
			return "", fmt.Errorf("room %s: summary already generated: %w", roomID, ErrInvalidState)
		}

		summaries.WithLabelValues(summaryRetried).Inc()
		m.logger.Warnf("Room %s content changed while summarizing (attempt %d), starting over", roomID, attempt)
	}

	return "", fmt.Errorf("room %s: content kept changing during summarization: %w", roomID, ErrConflict)
}

func (m *Manager) summarize(ctx context.Context, input string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.summaryTimeout)
	defer cancel()

	raw, err := m.summarizer.Summarize(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	summary := summarizer.StripReasoning(raw)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary after removing reasoning", ErrUpstream)
	}
	return summary, nil
}

// DeleteRoom removes the room in whatever state it is in.
func (m *Manager) DeleteRoom(ctx context.Context, roomID string) error {
	if err := m.store.Delete(ctx, roomID); err != nil {
		return err
	}

	m.logger.Infof("Deleted room %s", roomID)
	m.publish(ctx, events.RoomDeleted, roomID, nil)
	return nil
}

func (m *Manager) publish(ctx context.Context, eventType, roomID string, data interface{}) {
	if m.events == nil {
		return
	}
	e, err := events.New(eventType, roomID, data)
	if err == nil {
		err = m.events.Publish(ctx, e)
	}
	if err != nil {
		m.logger.Warnf("Failed to publish %s for room %s: %v", eventType, roomID, err)
	}
}

func sleepWithJitter(ctx context.Context, attempt int) error {
	d := time.Duration(rand.Int63n(int64(appendBackoffBase) * int64(attempt)))
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
