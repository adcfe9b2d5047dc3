package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func bufferedProductionLogger(buf *bytes.Buffer) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(productionEncoderConfig()),
		zapcore.AddSync(buf),
		zapcore.DebugLevel,
	)
	return zap.New(core).With(zap.String("service", serviceName))
}

func TestProperty_ProductionLogsAreStructured(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every entry is JSON with level, timestamp, message and service", prop.ForAll(
		func(message string, sessionID string) bool {
			var buf bytes.Buffer
			logger := bufferedProductionLogger(&buf)

			logger.Warn(message, zap.String("session_id", sessionID))

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				return false
			}
			for _, key := range []string{"level", "timestamp", "message", "service", "session_id"} {
				if _, ok := entry[key]; !ok {
					return false
				}
			}
			return entry["message"] == message && entry["session_id"] == sessionID && entry["level"] == "warn"
		},
		gen.AnyString(),
		gen.Identifier(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ErrorLogsCarryTheError(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("zap.Error renders under the error key", prop.ForAll(
		func(errorMsg string) bool {
			var buf bytes.Buffer
			logger := bufferedProductionLogger(&buf)

			logger.Error("analytics delivery failed", zap.String("error", errorMsg), zap.String("topic", "orders"))

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				return false
			}
			return entry["error"] == errorMsg && entry["topic"] == "orders"
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestNewHonoursLevel(t *testing.T) {
	logger, err := New("production", "warn")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info must be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn must be enabled at warn level")
	}

	dev, err := New("development", "not-a-level")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	if !dev.Core().Enabled(zapcore.DebugLevel) {
		t.Error("development logger must keep debug enabled when the level is unknown")
	}
}
