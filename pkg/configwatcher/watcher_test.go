package configwatcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchFilesReloadsOnWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "conf")
	target := filepath.Join(dir, "roster.csv")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads int32
	err := WatchFiles(ctx, []string{target}, 20*time.Millisecond, func() {
		atomic.AddInt32(&reloads, 1)
	})
	require.NoError(t, err)
	assert.DirExists(t, dir)

	// 其他文件不触发
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(target, []byte("填答者,被評者,P\n"), 0644))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&reloads) >= 1
	}, 2*time.Second, 10*time.Millisecond)
}
