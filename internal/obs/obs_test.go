package obs

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrom_CarriesJourneyCorrelation(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	ctx := WithCorrelation(context.Background(), Correlation{RunID: "run-1", Journey: "register", Driver: "rod"})
	ctx = WithStep(ctx, " open_register ")
	From(ctx).Info("step_started")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "run-1", lines[0]["run_id"])
	assert.Equal(t, "register", lines[0]["journey"])
	assert.Equal(t, "open_register", lines[0]["step"])
	assert.Equal(t, "rod", lines[0]["driver"])
	assert.NotContains(t, lines[0], "request_id")
}

func TestWithCorrelation_KeepsEarlierFields(t *testing.T) {
	ctx := WithCorrelation(context.Background(), Correlation{RunID: "run-1", Journey: "register"})
	ctx = WithCorrelation(ctx, Correlation{Journey: "login"})

	got := CorrelationFromContext(ctx)
	assert.Equal(t, Correlation{RunID: "run-1", Journey: "login"}, got)
	assert.Equal(t, Correlation{}, CorrelationFromContext(context.Background()))
}

func TestSetLevel(t *testing.T) {
	prev := level.Level()
	t.Cleanup(func() { level.Set(prev) })

	SetLevel(slog.LevelWarn)
	assert.Equal(t, slog.LevelWarn, level.Level())
	SetLevel(slog.LevelDebug)
	assert.Equal(t, slog.LevelDebug, level.Level())
}
