package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gearguard/gearguard/internal/apperr"
	"github.com/gearguard/gearguard/internal/queue"
	"github.com/gearguard/gearguard/internal/repository"
)

// storeErr converts a repository error into an apperr. Empty messages leave
// the corresponding sentinel unmapped so it surfaces as an internal error.
func storeErr(op string, err error, notFound, conflict string) error {
	switch {
	case err == nil:
		return nil
	case notFound != "" && errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(notFound)
	case conflict != "" && (errors.Is(err, repository.ErrDuplicate) || errors.Is(err, repository.ErrConflict)):
		return apperr.Conflict(conflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

const publishTimeout = 3 * time.Second

// emit publishes an activity event without blocking the caller's outcome.
func emit(ctx context.Context, pub EventPublisher, log *zap.Logger, typ string, data any) {
	if pub == nil {
		return
	}
	ev, err := queue.NewEvent(typ, data)
	if err != nil {
		log.Warn("build event", zap.String("event", typ), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := pub.Publish(ctx, ev); err != nil {
		log.Warn("publish event", zap.String("event", typ), zap.Error(err))
	}
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

func orNopRecorder(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
