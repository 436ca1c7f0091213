package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Service validates a loaded Config; it holds no state but a
// *validator.Validate whose custom "tz" rule is registered lazily on first
// use, so it can be shared across Managers.
type Service struct {
	validate *validator.Validate
	once     sync.Once
}

// NewService builds a Service.
func NewService() *Service {
	return &Service{validate: validator.New()}
}

func (s *Service) init() {
	s.once.Do(func() {
		// "tz" isn't one of validator's built-ins; register it once against
		// time.LoadLocation so bogus IANA zone names fail the same way a
		// malformed URL or an out-of-range duration does.
		_ = s.validate.RegisterValidation("tz", validateTimezone)
	})
}

func validateTimezone(fl validator.FieldLevel) bool {
	_, err := time.LoadLocation(fl.Field().String())
	return err == nil
}

// Validate rejects a Config with an out-of-range or malformed field,
// rather than letting it surface as a confusing failure deep inside the
// engine.
func (s *Service) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	s.init()
	cfg.Mode = normalizeMode(string(cfg.Mode))
	if err := s.validate.Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
