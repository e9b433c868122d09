package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opcuad.yaml")
	yamlContent := "tcp_port: 4843\nmax_session_count: 5\nuser_tokens:\n  - id: anon\n    policy: Anonymous\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4843, cfg.TCPPort)
	assert.Equal(t, 5, cfg.MaxSessionCount)
	assert.Equal(t, "0.0.0.0", cfg.TCPHost, "unset keys keep their default")
}

func TestDefaultHasUsableEndpoint(t *testing.T) {
	cfg := Default()
	require.Len(t, cfg.Endpoints, 1)
	assert.Equal(t, ModeNone, cfg.Endpoints[0].SecurityMode)
}
