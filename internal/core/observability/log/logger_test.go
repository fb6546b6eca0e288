package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelSilent, ParseLevel("off"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestLoggerRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core), LevelWarn)

	l.Info("dropped")
	l.Warn("kept", String("component", "test"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
	assert.Equal(t, "test", logs.All()[0].ContextMap()["component"])

	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.GetLevel())
	l.Debug("now visible")
	assert.Equal(t, 2, logs.Len())
}

func TestWithCarriesFieldsAndNilError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core), LevelDebug).With(String("component", "manager"))

	var nilErr error
	l.Error("failed", Error(errors.New("boom")), ErrorWithKey("cause", nilErr), Int("attempt", 2))
	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "manager", ctx["component"])
	assert.Equal(t, "boom", ctx["error"])
	assert.EqualValues(t, 2, ctx["attempt"])
}

func TestNopLoggerIsSilent(t *testing.T) {
	l := NewNop()
	assert.Equal(t, LevelSilent, l.GetLevel())
	l.Error("nothing happens")
}

func TestNewLoggersAreIndependent(t *testing.T) {
	a := New(LevelInfo)
	b := New(LevelError)

	a.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, a.GetLevel())
	assert.Equal(t, LevelError, b.GetLevel())
}
