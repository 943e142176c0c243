package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	changed chan string
}

func (n *mockNotifier) WatcherItemDidChange(path string) {
	n.changed <- path
}

func (n *mockNotifier) WatcherDidError(error) {}

func TestFileChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("targets: []\n"), 0600))

	w, err := NewFile()
	require.NoError(t, err)
	require.NoError(t, w.Add(path))

	n := &mockNotifier{changed: make(chan string, 8)}
	done := make(chan struct{})
	go func() {
		w.Start(n)
		close(done)
	}()

	require.NoError(t, os.WriteFile(path, []byte("targets: [{name: home}]\n"), 0600))
	select {
	case got := <-n.changed:
		assert.Equal(t, path, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	w.Shutdown()
	w.Shutdown()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestFileReplacedByRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("targets: []\n"), 0600))

	w, err := NewFile()
	require.NoError(t, err)
	require.NoError(t, w.Add(path))

	n := &mockNotifier{changed: make(chan string, 8)}
	go w.Start(n)
	defer w.Shutdown()

	for i, content := range []string{"timeout: 1m\n", "timeout: 2m\n"} {
		tmp := filepath.Join(dir, ".config.yaml.tmp")
		require.NoError(t, os.WriteFile(tmp, []byte(content), 0600))
		require.NoError(t, os.Rename(tmp, path))
		select {
		case got := <-n.changed:
			assert.Equal(t, path, got, "save %d", i)
		case <-time.After(5 * time.Second):
			t.Fatalf("no change notification for save %d", i)
		}
		// drain duplicates of the same save
		for len(n.changed) > 0 {
			<-n.changed
		}
	}

	// other files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0600))
	select {
	case got := <-n.changed:
		t.Fatalf("unexpected notification for %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}
