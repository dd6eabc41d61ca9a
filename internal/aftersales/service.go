// Package aftersales handles warranties and return requests for delivered
// units.
package aftersales

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"phonestore-backend/internal/apperr"
)

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	returnWindow int
	Now          func() time.Time
}

// NewService builds the service; returnWindowDays bounds how long after
// delivery a return may be requested.
func NewService(db *gorm.DB, returnWindowDays int, log *zap.Logger) *Service {
	return &Service{db: db, log: log, returnWindow: returnWindowDays, Now: time.Now}
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(format, args...)
	}
	return err
}

func today(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
