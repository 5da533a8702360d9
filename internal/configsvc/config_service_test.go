package configsvc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testConfig struct {
	Name string `json:"name"`
	Step int    `json:"step"`
}

func startService(t *testing.T) *Service {
	t.Helper()
	svc := New(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = svc.Start(ctx)
	}()
	<-svc.Ready()
	return svc
}

func TestRegisterReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: first\nstep: 1\n"), 0o644))

	svc := startService(t)

	type result struct {
		config testConfig
		err    error
	}
	updates := make(chan result, 4)
	initial, err := Register(svc, path, testConfig{Step: 3}, func(config testConfig, err error) {
		updates <- result{config, err}
	})
	require.NoError(t, err)
	assert.Equal(t, "first", initial.Name)
	assert.Equal(t, 1, initial.Step)

	require.NoError(t, os.WriteFile(path, []byte("name: second\nstep: 2\n"), 0o644))
	select {
	case r := <-updates:
		require.NoError(t, r.err)
		assert.Equal(t, "second", r.config.Name)
		assert.Equal(t, 2, r.config.Step)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestRegisterMissingFile(t *testing.T) {
	svc := startService(t)

	def := testConfig{Name: "default", Step: 3}
	_, err := Register(svc, filepath.Join(t.TempDir(), "missing.yaml"), def, nil)
	require.Error(t, err)
}

func TestRegisterWriteableInitializes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	svc := startService(t)

	def := testConfig{Name: "default", Step: 3}
	config, err := RegisterWriteable(svc, path, def, func(testConfig, error) {})
	require.NoError(t, err)
	assert.Equal(t, def, config)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), "name: default")
}
