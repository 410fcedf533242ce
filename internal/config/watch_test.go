package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "port: 9090\n")

	reloaded := make(chan Config, 4)
	w := NewWatcher(path, func(cfg Config) {
		reloaded <- cfg
	})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// Give the watch a moment to attach before mutating the file.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("port: 7070\n"), 0644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 7070, cfg.HTTPPort)
	case <-time.After(3 * time.Second):
		t.Fatal("config change was not picked up")
	}
}

func TestWatcherKeepsPreviousConfigOnParseError(t *testing.T) {
	path := writeConfig(t, "port: 9090\n")

	reloaded := make(chan Config, 4)
	w := NewWatcher(path, func(cfg Config) {
		reloaded <- cfg
	})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("cacheTtl: {broken\n"), 0644))

	// The malformed write must not trigger the callback.
	select {
	case cfg := <-reloaded:
		t.Fatalf("unexpected reload with config %+v", cfg)
	case <-time.After(700 * time.Millisecond):
	}

	// A subsequent valid write still gets through.
	require.NoError(t, os.WriteFile(path, []byte("port: 6060\n"), 0644))
	select {
	case cfg := <-reloaded:
		assert.Equal(t, 6060, cfg.HTTPPort)
	case <-time.After(3 * time.Second):
		t.Fatal("recovery write was not picked up")
	}
}

func TestWatcherRejectsDoubleStart(t *testing.T) {
	path := writeConfig(t, "port: 9090\n")

	w := NewWatcher(path, nil)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Error(t, w.Start(context.Background()))
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	path := writeConfig(t, "port: 9090\n")

	reloaded := make(chan Config, 4)
	w := NewWatcher(path, func(cfg Config) {
		reloaded <- cfg
	})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	sibling := path + ".bak"
	require.NoError(t, os.WriteFile(sibling, []byte("port: 1111\n"), 0644))

	select {
	case cfg := <-reloaded:
		t.Fatalf("sibling write triggered a reload with config %+v", cfg)
	case <-time.After(700 * time.Millisecond):
	}
}
