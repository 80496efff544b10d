package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsChangedFiles(t *testing.T) {
	dir := t.TempDir()
	api := filepath.Join(dir, "api.proto")
	other := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(api, []byte("a"), 0644))

	w, err := New([]string{api}, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	changes := make(chan []string, 4)
	w.Subscribe(func(changed []string) { changes <- changed })

	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(api, []byte("b"), 0644))
	require.NoError(t, os.WriteFile(api, []byte("c"), 0644))

	select {
	case changed := <-changes:
		abs, _ := filepath.Abs(api)
		assert.Equal(t, []string{abs}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestUnsubscribe(t *testing.T) {
	dir := t.TempDir()
	api := filepath.Join(dir, "api.proto")
	require.NoError(t, os.WriteFile(api, []byte("a"), 0644))

	w, err := New([]string{api}, 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	called := make(chan struct{}, 1)
	unsubscribe := w.Subscribe(func([]string) { called <- struct{}{} })
	unsubscribe()

	require.NoError(t, os.WriteFile(api, []byte("b"), 0644))
	select {
	case <-called:
		t.Fatal("unsubscribed callback was called")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCloseTwice(t *testing.T) {
	w, err := New([]string{filepath.Join(t.TempDir(), "api.proto")}, DefaultDelay)
	require.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

func TestNewFailsForMissingDirectory(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "missing", "api.proto")}, DefaultDelay)
	assert.Error(t, err)
}
