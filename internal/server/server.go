package server

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"marginalia-backend/internal/common"
	"marginalia-backend/internal/config"
	"marginalia-backend/internal/events"
	"marginalia-backend/internal/handlers"
	"marginalia-backend/internal/rooms"
	"marginalia-backend/internal/summarizer"

	"github.com/go-playground/validator"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CustomValidator Source: https://echo.labstack.com/docs/request#validate-data
type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

type SentryLogger struct {
	echo.Logger
}

func (l *SentryLogger) Error(i ...interface{}) {
	// Capture in Sentry
	if err, ok := i[0].(error); ok {
		handlers.CaptureError(err)
	} else {
		handlers.CaptureError(fmt.Errorf("%v", i...))
	}
	// Call wrapped logger
	l.Logger.Error(i...)
}

func (l *SentryLogger) Errorf(format string, args ...interface{}) {
	handlers.CaptureError(fmt.Errorf(format, args...))
	l.Logger.Errorf(format, args...)
}

type Server struct {
	common.ServerState
	store *rooms.GormStore
}

func New(cfg *config.Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}
	e.Logger = &SentryLogger{Logger: e.Logger}
	e.Logger.SetLevel(log.DEBUG)
	e.HTTPErrorHandler = handlers.ErrorHandler

	return &Server{
		ServerState: common.ServerState{
			Echo:   e,
			Config: cfg,
		},
	}
}

// Initialize wires every dependency. A Summarizer or Broker assigned before
// the call is kept, which is how tests swap the model out.
func (s *Server) Initialize() error {
	// Initialize database
	s.setupDatabase()

	s.setupRedis()

	s.setupBroker()

	if err := s.setupSummarizer(); err != nil {
		return err
	}

	// Run Migrations
	s.runMigrations()

	s.Rooms = rooms.NewManager(s.store, s.Summarizer, s.Broker, s.Echo.Logger, s.Config.Summarizer.Timeout)

	// Setup routes
	s.setupRoutes()

	s.setupMetrics()

	// Setup middleware -
	// Keep last to avoid Recover middleware and panic if something goes wrong on init
	s.setupMiddleware()

	return nil
}

// setupDatabase opens the one database session the process uses and proves
// the configured credentials work before anything is served.
func (s *Server) setupDatabase() {
	dsn := s.Config.Database.DSN
	if dsn == "" {
		s.Echo.Logger.Fatal("DATABASE_DSN environment variable is required")
	}

	var db *gorm.DB
	var err error

	// Detect database driver from DSN
	// SQLite DSNs typically start with "file:"
	if strings.HasPrefix(dsn, "file:") {
		// Use SQLite driver for testing
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true, Logger: logger.Default.LogMode(logger.Silent)})
	} else {
		// Use PostgreSQL driver for production
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true, Logger: logger.Default.LogMode(logger.Silent)})
	}
	if err != nil {
		s.Echo.Logger.Fatal(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		s.Echo.Logger.Fatal(err)
	}
	if strings.HasPrefix(dsn, "file:") {
		// In-memory sqlite lives only as long as its connection
		sqlDB.SetMaxOpenConns(1)
	}

	limit := s.Config.Database.PingLimit
	if limit <= 0 {
		limit = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), limit)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		s.Echo.Logger.Fatalf("Database authentication failed: %v", err)
	}

	s.DB = db
	s.store = rooms.NewGormStore(db, s.Config.Database.Table)
}

func (s *Server) setupRedis() {
	url := s.Config.Database.RedisURI

	// Make Redis optional - if URI is empty, skip Redis setup
	if url == "" {
		s.Echo.Logger.Warn("REDIS_URI not configured, room events stay in-process")
		s.Redis = nil
		return
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		s.Echo.Logger.Warnf("Failed to parse Redis URL: %v, room events stay in-process", err)
		s.Redis = nil
		return
	}

	s.Redis = redis.NewClient(opts)

	// Validate proper connection, but don't panic on failure
	ctx := context.Background()
	result := s.Redis.Ping(ctx)
	if result.Err() != nil {
		s.Echo.Logger.Warnf("Redis connection failed: %v, room events stay in-process", result.Err())
		_ = s.Redis.Close()
		s.Redis = nil
		return
	}
}

func (s *Server) setupBroker() {
	if s.Broker != nil {
		return
	}
	if s.Redis != nil {
		s.Broker = events.NewRedisBroker(s.Redis, s.Echo.Logger)
		return
	}
	s.Broker = events.NewLocalBroker()
}

func (s *Server) setupSummarizer() error {
	if s.Summarizer != nil {
		return nil
	}
	sum, err := summarizer.New(s.Config)
	if err != nil {
		return fmt.Errorf("summarizer: %w", err)
	}
	s.Summarizer = sum
	return nil
}

func (s *Server) runMigrations() {
	if err := s.store.Migrate(); err != nil {
		s.Echo.Logger.Fatal(err)
	}
}

func (s *Server) setupMiddleware() {
	s.Echo.Use(middleware.CORS())
	s.Echo.Use(middleware.Logger())
	s.Echo.Use(middleware.Recover())
	// Try to add prometheus middleware, but don't panic if already registered (e.g., in tests)
	// This allows multiple test runs without panicking
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok && err.Error() == "duplicate metrics collector registration attempted" {
				s.Echo.Logger.Warn("Prometheus middleware already registered, skipping")
			} else {
				panic(r)
			}
		}
	}()
	s.Echo.Use(echoprometheus.NewMiddleware("marginalia_backend"))
}

func (s *Server) setupMetrics() {
	// Only register Redis metrics if Redis is available
	if s.Redis == nil {
		return
	}

	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Subsystem: "redis",
			Name:      "connected_clients",
			Help:      "The number of clients currently connected to Redis",
		},
		func() float64 {
			ctx := context.Background()
			connectedClientsRaw := s.Redis.InfoMap(ctx).Item("Clients", "connected_clients")

			connectedClients, err := strconv.ParseFloat(connectedClientsRaw, 64)
			if err != nil {
				return math.NaN()
			}

			return connectedClients
		},
	)
	if err := prometheus.Register(gauge); err != nil {
		s.Echo.Logger.Warnf("Redis metrics not registered: %v", err)
	}
}

func (s *Server) setupRoutes() {
	handlers.SetupSentry(s.Echo, s.Config)

	roomHandler := handlers.NewRoomHandler(s.Rooms)
	eventsHandler := handlers.NewEventsHandler(s.Rooms, s.Broker)

	// API routes group
	api := s.Echo.Group("/api")

	// Public API endpoints
	api.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})
	api.GET("/metrics", echoprometheus.NewHandler())

	api.POST("/rooms", roomHandler.CreateRoom)
	api.GET("/rooms", roomHandler.ListRooms)
	api.GET("/rooms/:roomId", roomHandler.GetRoom)
	api.DELETE("/rooms/:roomId", roomHandler.DeleteRoom)
	api.POST("/rooms/:roomId/content", roomHandler.AppendContent)
	api.POST("/rooms/:roomId/llm", roomHandler.GenerateSummary)
	api.GET("/rooms/:roomId/events", eventsHandler.StreamRoomEvents)

	// Debug endpoints - only enabled when ENABLE_DEBUG_ENDPOINTS=true
	if s.Config.Server.Debug {
		api.GET("/debug/config", handlers.DebugConfig(s.Config))
	}
}

func (s *Server) Start() error {
	serverURL := s.Config.Server.Host + ":" + s.Config.Server.Port

	if s.Config.Server.TLS.Enabled {
		if _, err := os.Stat(s.Config.Server.TLS.CertFile); os.IsNotExist(err) {
			s.Echo.Logger.Warn("TLS certificate file not found, falling back to HTTP")
			return s.Echo.Start(serverURL)
		}
		if _, err := os.Stat(s.Config.Server.TLS.KeyFile); os.IsNotExist(err) {
			s.Echo.Logger.Warn("TLS key file not found, falling back to HTTP")
			return s.Echo.Start(serverURL)
		}
		return s.Echo.StartTLS(serverURL, s.Config.Server.TLS.CertFile, s.Config.Server.TLS.KeyFile)
	}

	return s.Echo.Start(serverURL)
}

// Shutdown drains HTTP traffic, then releases Redis and the database session.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)

	if s.Redis != nil {
		if cerr := s.Redis.Close(); cerr != nil {
			s.Echo.Logger.Warnf("Closing Redis: %v", cerr)
		}
	}
	if s.DB != nil {
		if sqlDB, derr := s.DB.DB(); derr == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				s.Echo.Logger.Warnf("Closing database: %v", cerr)
			}
		}
	}

	handlers.FlushSentry()
	return err
}
