// File: internal/llm/factory.go
package llm

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/applypilot/api/schemas"
	"github.com/xkilldash9x/applypilot/internal/config"
)

// NewClient builds the provider's tier router from configuration. A single
// rate limiter is shared by both tiers because they bill the same API key.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case "gemini":
		var limiter *rate.Limiter
		if cfg.RequestsPerMinute > 0 {
			limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
		}

		fast, err := NewGeminiClient(cfg, cfg.FastModel, limiter, logger)
		if err != nil {
			return nil, fmt.Errorf("building fast tier client: %w", err)
		}
		powerful, err := NewGeminiClient(cfg, cfg.PowerfulModel, limiter, logger)
		if err != nil {
			return nil, fmt.Errorf("building powerful tier client: %w", err)
		}
		return NewRouter(logger, fast, powerful)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: %q. Supported: [gemini]", cfg.Provider)
	}
}
