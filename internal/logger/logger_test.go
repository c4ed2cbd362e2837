package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	for _, tc := range []struct {
		json, debug bool
	}{{false, false}, {true, false}, {true, true}} {
		l, err := New(tc.json, tc.debug)
		require.NoError(t, err)
		assert.Equal(t, tc.debug, l.Core().Enabled(zapcore.DebugLevel))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("  abc  ", 10))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
	assert.Equal(t, "ñá...", Truncate("ñáéíó", 2))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestStringFields_SkipsEmpty(t *testing.T) {
	fields := StringFields(
		StringField{Key: "a", Value: " x "},
		StringField{Key: "", Value: "y"},
		StringField{Key: "b", Value: "  "},
	)
	require.Len(t, fields, 1)
	assert.Equal(t, zap.String("a", "x"), fields[0])
}

func TestWithFields_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		WithFields(nil, zap.String("k", "v")).Info("hello")
	})
}

func TestInterviewFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	WithFields(zap.New(core), InterviewFields("org-1", "", "cand-1", "app-1")...).Info("turn")

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "org-1", ctx[FieldOrgID])
	assert.Equal(t, "cand-1", ctx[FieldCandidateID])
	assert.Equal(t, "app-1", ctx[FieldApplicationID])
	assert.NotContains(t, ctx, FieldJobID)
}
