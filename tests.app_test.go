package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestConfig(t *testing.T, driver string) *Config {
	t.Helper()
	dir := t.TempDir()
	config := &Config{
		IsProduction: true,
		LogFolder:    filepath.Join(dir, "logs"),
		Server:       ServerConfig{Host: "127.0.0.1", Port: "0", ShutdownTimeout: time.Second},
		Storage:      StorageConfig{Driver: driver},
		BoltDB:       BoltDBConfig{FilePath: filepath.Join(dir, "books.db")},
		SQLite:       SQLiteConfig{FilePath: filepath.Join(dir, "books.sqlite")},
	}
	require.NoError(t, InitConfig(config, "abc123", "", ""))
	return config
}

func TestOpenBackend(t *testing.T) {
	for _, driver := range []string{DriverBolt, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			config := newTestConfig(t, driver)
			backend, err := OpenBackend(context.Background(), zap.NewNop(), config, true)
			require.NoError(t, err)
			defer backend.Close()

			assert.Nil(t, backend.RedisClient)
			assert.Nil(t, backend.Queue)
			assert.Nil(t, backend.Journal)

			book, err := backend.Storage.Add(context.Background(), newTestBook("Dune", "Frank Herbert", 1965, "Novel"))
			require.NoError(t, err)
			assert.Equal(t, int64(1), book.ID)
		})
	}

	t.Run("unknown driver", func(t *testing.T) {
		config := newTestConfig(t, DriverBolt)
		config.Storage.Driver = "mongo"
		_, err := OpenBackend(context.Background(), zap.NewNop(), config, false)
		assert.Error(t, err)
	})
}

func TestApp_ServeAndStop(t *testing.T) {
	config := newTestConfig(t, DriverBolt)
	provider, err := NewApp(config)
	require.NoError(t, err)
	app := provider.(*App)
	assert.Empty(t, app.queueConsumers)

	served := make(chan error, 1)
	go func() { served <- app.Serve()() }()

	// let the listener come up before shutting it down.
	time.Sleep(50 * time.Millisecond)

	nCtx, stop := context.WithCancel(context.Background())
	stop()
	require.NoError(t, app.Stop(nCtx, nCtx)())

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	app.Clean()

	// the storage file is released once cleaned up.
	backend, err := OpenBackend(context.Background(), zap.NewNop(), config, false)
	require.NoError(t, err)
	backend.Close()
}
