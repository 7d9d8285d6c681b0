package pipeline

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

type step func(r *run) error

// recovered turns a panic inside a phase into a *Error naming the file
// that was being handled.
func recovered(logger *zap.Logger, next step) step {
	return func(r *run) (err error) {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("panic recovered",
					zap.Any("error", v),
					zap.String("phase", r.phase.String()),
					zap.String("path", r.current),
					zap.Time("timestamp", time.Now()),
				)
				err = &Error{Phase: r.phase, Path: r.current, Err: fmt.Errorf("%w: %v", ErrPanic, v)}
			}
		}()
		return next(r)
	}
}

func logged(logger *zap.Logger, next step) step {
	return func(r *run) error {
		start := time.Now()

		logger.Info("pipeline phase started",
			zap.String("phase", r.phase.String()),
			zap.String("source", r.source),
			zap.String("library", r.good),
		)

		err := next(r)

		fields := []zap.Field{
			zap.String("phase", r.phase.String()),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			logger.Error("pipeline phase failed", append(fields, zap.Error(err))...)
			return err
		}
		logger.Info("pipeline phase completed", fields...)
		return nil
	}
}
