package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pimalaya/timerd/config"
	"github.com/pimalaya/timerd/pkg/timer"
)

const validYAML = `
cycles:
  - name: work
    duration_seconds: 1500
  - name: break
    duration_seconds: 300
cycles_count:
  fixed: 4
tick_interval_ms: 250
bindings:
  - kind: tcp
    address: ":7677"
hooks:
  begin_cycle:
    - command: notify-send
      args: ["cycle started"]
discovery:
  enabled: true
  name: desk-timer
`

func TestParseValidConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(validYAML))
	require.NoError(t, err)

	require.Len(t, cfg.Cycles, 2)
	assert.Equal(t, "work", cfg.Cycles[0].Name)
	assert.EqualValues(t, 1500, cfg.Cycles[0].DurationSeconds)
	assert.Equal(t, "break", cfg.Cycles[1].Name)

	assert.False(t, cfg.CyclesCount.Infinite)
	assert.EqualValues(t, 4, cfg.CyclesCount.Fixed)
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval())

	require.Len(t, cfg.Bindings, 1)
	assert.Equal(t, "tcp", cfg.Bindings[0].Kind)
	assert.Equal(t, ":7677", cfg.Bindings[0].Address)

	require.Len(t, cfg.Hooks["begin_cycle"], 1)
	assert.Equal(t, "notify-send", cfg.Hooks["begin_cycle"][0].Command)

	assert.True(t, cfg.Discovery.Enabled)
	assert.Equal(t, "desk-timer", cfg.Discovery.Name)
}

func TestCyclesCountInfinite(t *testing.T) {
	cfg, err := config.Parse([]byte(`
cycles:
  - name: work
    duration_seconds: 60
cycles_count: infinite
bindings:
  - kind: tcp
    address: ":0"
`))
	require.NoError(t, err)
	assert.True(t, cfg.CyclesCount.Infinite)
	assert.Equal(t, timer.Infinite, cfg.CyclesCount.ToTimerLoop().Kind)
}

func TestTickIntervalDefault(t *testing.T) {
	cfg, err := config.Parse([]byte(`
cycles:
  - name: work
    duration_seconds: 60
cycles_count: infinite
bindings:
  - kind: tcp
    address: ":0"
`))
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.TickInterval())
}

func TestParseRejectsUnknownCyclesCountValue(t *testing.T) {
	_, err := config.Parse([]byte(`
cycles:
  - name: work
    duration_seconds: 60
cycles_count: sometimes
bindings:
  - kind: tcp
    address: ":0"
`))
	require.Error(t, err)
}

func TestParseRejectsUnknownBindingKind(t *testing.T) {
	_, err := config.Parse([]byte(`
cycles:
  - name: work
    duration_seconds: 60
cycles_count: infinite
bindings:
  - kind: websocket
    address: ":0"
`))
	require.Error(t, err)
}

func TestParseRejectsUnknownHookEvent(t *testing.T) {
	_, err := config.Parse([]byte(`
cycles:
  - name: work
    duration_seconds: 60
cycles_count: infinite
bindings:
  - kind: tcp
    address: ":0"
hooks:
  on_tick:
    - command: echo
`))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/timerd.yaml")
	require.Error(t, err)

	var loadErr *config.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "/nonexistent/timerd.yaml", loadErr.File)
}
