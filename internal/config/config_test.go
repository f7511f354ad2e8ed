package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, env, body string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config."+env+".yaml"), []byte(body), 0o644))
	chdir(t, dir)
	t.Setenv("CONFIG_ENV", env)
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.MultiProcess)
	assert.True(t, cfg.Router.StrictSubscribe)
	assert.Equal(t, []string{"screenshare", "video", "audio"}, cfg.Workers)
	assert.Equal(t, 54*time.Second, cfg.Signal.PingPeriod)
	assert.Equal(t, 200*time.Millisecond, cfg.Strategy.Backoff)
	require.Len(t, cfg.Media.Hosts, 1)
	assert.Equal(t, "local", cfg.Media.Hosts[0].ID)
}

func TestLoadFileAndEnv(t *testing.T) {
	writeConfig(t, "test", `
port: 9090
multiprocess: true
workers: [video]
bus:
  driver: amqp
  wait_time: 1s
media:
  ice_servers: ["stun:stun.l.google.com:19302"]
  hosts:
    - id: h1
      ip: 10.0.0.1
    - id: h2
      ip: 10.0.0.2
router:
  strict_subscribe: false
`)
	t.Setenv("CONF_BUS_EXCHANGE", "conf-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.MultiProcess)
	assert.Equal(t, []string{"video"}, cfg.Workers)
	assert.Equal(t, "amqp", cfg.Bus.Driver)
	assert.Equal(t, "conf-test", cfg.Bus.Exchange)
	assert.Equal(t, time.Second, cfg.Bus.WaitTime)
	assert.False(t, cfg.Router.StrictSubscribe)
	require.Len(t, cfg.Media.Hosts, 2)
	assert.Equal(t, HostConfig{ID: "h2", IP: "10.0.0.2"}, cfg.Media.Hosts[1])
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.Media.ICEServers)
}

func TestValidate(t *testing.T) {
	ok := Config{Port: 80, Workers: []string{"audio"}}
	assert.NoError(t, ok.Validate())

	assert.ErrorIs(t, (&Config{Port: 0}).Validate(), ErrBadPort)
	assert.ErrorIs(t, (&Config{Port: 80, MultiProcess: true, Bus: BusConfig{Driver: "kafka"}}).Validate(), ErrBadDriver)
	assert.ErrorIs(t, (&Config{Port: 80, Workers: []string{"chat"}}).Validate(), ErrUnknownKind)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
