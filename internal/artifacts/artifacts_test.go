package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "runs/abc/register-login/verify-summary.png", ScreenshotKey("abc", "register-login", "verify-summary"))
	assert.Equal(t, "runs/abc/my-journey/unnamed.png", ScreenshotKey("abc", "my journey!", "../"))
	assert.Equal(t, "runs/batch-1/report.html", ReportKey("batch-1", "html"))
}

func TestS3Sink_PutGetList(t *testing.T) {
	t.Parallel()
	sink := TestSink(t, "e2e-artifacts", "ci/main")
	ctx := t.Context()

	key := ScreenshotKey("run-1", "registration", "register")
	require.NoError(t, sink.Put(ctx, key, []byte("png-bytes"), "image/png"))

	got, err := sink.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), got)

	keys, err := sink.List(ctx, "runs/run-1/")
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)

	_, err = sink.Get(ctx, "runs/missing.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestDirSink_Put(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	sink := DirSink{Root: root}

	require.NoError(t, sink.Put(t.Context(), "runs/r/j/s.png", []byte("x"), "image/png"))
	data, err := os.ReadFile(filepath.Join(root, "runs", "r", "j", "s.png"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	require.NoError(t, sink.Put(t.Context(), "../../escape.txt", []byte("y"), "text/plain"))
	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	assert.NoError(t, err)
}
