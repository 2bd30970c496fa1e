package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"marginalia-backend/internal/common"
	"marginalia-backend/internal/events"
	"marginalia-backend/internal/rooms"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testValidator struct {
	validator *validator.Validate
}

func (v *testValidator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}

type summarizerFunc func(ctx context.Context, text string) (string, error)

func (f summarizerFunc) Summarize(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

type testEnv struct {
	Echo   *echo.Echo
	Broker *events.LocalBroker
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = &testValidator{validator: validator.New()}
	e.HTTPErrorHandler = ErrorHandler
	l := log.New("test")
	l.SetOutput(io.Discard)
	e.Logger = l
	return e
}

// newTestEnv wires the room routes to a manager over a private sqlite
// database.
func newTestEnv(t *testing.T, s summarizerFunc) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true, Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := rooms.NewGormStore(db, "Foss")
	require.NoError(t, store.Migrate())

	e := newEcho()
	broker := events.NewLocalBroker()
	manager := rooms.NewManager(store, s, broker, e.Logger, time.Second)
	registerRoutes(e, manager, broker)

	return &testEnv{Echo: e, Broker: broker}
}

func registerRoutes(e *echo.Echo, service common.RoomService, broker events.Broker) {
	h := NewRoomHandler(service)
	ev := NewEventsHandler(service, broker)

	api := e.Group("/api")
	api.POST("/rooms", h.CreateRoom)
	api.GET("/rooms", h.ListRooms)
	api.GET("/rooms/:roomId", h.GetRoom)
	api.POST("/rooms/:roomId/content", h.AppendContent)
	api.DELETE("/rooms/:roomId", h.DeleteRoom)
	api.POST("/rooms/:roomId/llm", h.GenerateSummary)
	api.GET("/rooms/:roomId/events", ev.StreamRoomEvents)
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return doRequest(t, env.Echo, method, path, body)
}

func doRequest(t *testing.T, e *echo.Echo, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
