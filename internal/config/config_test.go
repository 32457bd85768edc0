package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TILEWORLD_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	data := `
shard:
  count: 2
  evict_grace: 5s
storage:
  driver: memory
cache:
  driver: redis
  redis_addr: redis:6379
world:
  move_range: 5
  move_steps: 8
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Shard.Count)
	assert.Equal(t, 5*time.Second, cfg.Shard.EvictGrace)
	assert.Equal(t, 50*time.Millisecond, cfg.Shard.TickInterval, "не заданное в файле берётся из Default")
	assert.Equal(t, "redis:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 100, cfg.World.Width)
	assert.Equal(t, 5, cfg.World.MoveRange)
	assert.Equal(t, 8, cfg.World.MoveSteps)
	assert.Zero(t, cfg.World.CollectRange)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: floppy\n"), 0644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "floppy")

	require.NoError(t, os.WriteFile(path, []byte("auth:\n  mode: accounts\n  driver: ldap\n"), 0644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "ldap")
}

func TestPortEnvFallback(t *testing.T) {
	t.Setenv("GAME_KCP_PORT", "9000")
	s := ServerConfig{}
	assert.Equal(t, 9000, s.GetKCPPort())

	s.KCPPort = 1234
	assert.Equal(t, 1234, s.GetKCPPort(), "значение из конфига важнее переменной окружения")

	t.Setenv("GAME_ADMIN_PORT", "oops")
	assert.Equal(t, 8088, s.GetAdminPort())
}
