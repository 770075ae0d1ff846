package pipeline

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the pipeline's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the pipeline's logger.
// This must be called before any pipeline operations.
func SetLogger(l *zap.Logger) {
	logger = l
}

// stepper numbers progress messages, e.g. step 2 of 5.
type stepper struct {
	current int
	total   int
}

func (s *stepper) next(msg string, fields ...zap.Field) {
	s.current++
	Logger().Info(msg, append([]zap.Field{zap.Int("step", s.current), zap.Int("of", s.total)}, fields...)...)
}
