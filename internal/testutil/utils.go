package testutil

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}

// Today is a fixed mid-morning instant tests use as "now".
func Today() time.Time {
	return time.Date(2024, time.March, 14, 10, 30, 0, 0, time.Local)
}
