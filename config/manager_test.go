package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jxo-me/ddnsd/pkg/watcher"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	configs []Root
}

func (n *mockNotifier) ConfigDidUpdate(c Root) {
	n.configs = append(n.configs, c)
}

type mockFileWatcher struct {
	path     string
	notifier watcher.Notification
	ready    chan struct{}
}

func (w *mockFileWatcher) Start(n watcher.Notification) {
	w.notifier = n
	w.ready <- struct{}{}
}

func (w *mockFileWatcher) Add(string) error {
	return nil
}

func (w *mockFileWatcher) Shutdown() {

}

func (w *mockFileWatcher) TriggerChange() {
	w.notifier.WatcherItemDidChange(w.path)
}

func TestConfigChanged(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "config.yaml")
	f, err := os.Create(filePath)
	require.NoError(t, err)
	defer f.Close()

	c := &Root{
		Targets: []Target{
			{
				Name:     "home",
				Domain:   "example.com",
				Schedule: "@every 5m",
			},
		},
	}
	configRead := func(configPath string, log *zerolog.Logger) (Root, error) {
		cp := *c
		cp.Targets = append([]Target(nil), c.Targets...)
		return cp, nil
	}
	wait := make(chan struct{})
	w := &mockFileWatcher{path: filePath, ready: wait}

	log := zerolog.Nop()

	service, err := NewFileManager(w, filePath, &log)
	service.ReadConfig = configRead
	assert.NoError(t, err)

	n := &mockNotifier{}
	go service.Start(n)

	<-wait
	c.Targets = append(c.Targets, Target{Name: "office", Domain: "example.org", Schedule: "@hourly"})
	w.TriggerChange()

	service.Shutdown()

	assert.Len(t, n.configs, 2, "did not get 2 config updates as expected")
	assert.Len(t, n.configs[0].Targets, 1, "not the amount of targets expected")
	assert.Len(t, n.configs[1].Targets, 2, "not the amount of targets expected")

	assert.Equal(t, n.configs[0].Targets[0].Name, c.Targets[0].Name, "target name don't match")
	assert.Equal(t, n.configs[1].Targets[0].Name, c.Targets[0].Name, "target name don't match")
	assert.Equal(t, n.configs[1].Targets[1].Name, c.Targets[1].Name, "target name don't match")
}

func TestConfigChangeUnreadableKeepsRunning(t *testing.T) {
	calls := 0
	configRead := func(string, *zerolog.Logger) (Root, error) {
		calls++
		if calls > 1 {
			return Root{}, ErrNoConfigFile
		}
		return Root{}, nil
	}
	wait := make(chan struct{})
	w := &mockFileWatcher{path: "config.yaml", ready: wait}
	log := zerolog.Nop()

	service, err := NewFileManager(w, "config.yaml", &log)
	require.NoError(t, err)
	service.ReadConfig = configRead

	n := &mockNotifier{}
	go service.Start(n)
	<-wait
	w.TriggerChange()

	assert.Equal(t, 2, calls)
	assert.Len(t, n.configs, 1)
}
