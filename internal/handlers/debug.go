package handlers

import (
	"net/http"

	"marginalia-backend/internal/config"

	"github.com/labstack/echo/v4"
)

// ConfigView is the redacted configuration exposed by the debug endpoint.
type ConfigView struct {
	Host              string `json:"host"`
	Port              string `json:"port"`
	TLS               bool   `json:"tls"`
	Table             string `json:"table"`
	Redis             bool   `json:"redis"`
	Provider          string `json:"provider"`
	Model             string `json:"model"`
	SummarizerTimeout string `json:"summarizer_timeout"`
	MaxTokens         int64  `json:"max_tokens"`
	Sentry            bool   `json:"sentry"`
}

func NewConfigView(cfg *config.Config) ConfigView {
	v := ConfigView{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		TLS:               cfg.Server.TLS.Enabled,
		Table:             cfg.Database.Table,
		Redis:             cfg.Database.RedisURI != "",
		Provider:          cfg.Summarizer.Provider,
		SummarizerTimeout: cfg.Summarizer.Timeout.String(),
		MaxTokens:         cfg.Summarizer.MaxTokens,
		Sentry:            cfg.Sentry.DSN != "",
	}
	switch cfg.Summarizer.Provider {
	case config.ProviderAnthropic:
		v.Model = cfg.Anthropic.Model
	default:
		v.Model = cfg.Groq.Model
	}
	return v
}

// DebugConfig never returns secrets: keys and DSNs are reduced to booleans.
func DebugConfig(cfg *config.Config) echo.HandlerFunc {
	view := NewConfigView(cfg)
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, view)
	}
}
