package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"trace": TRACE,
		"DEBUG": DEBUG,
		"info":  INFO,
		"warn":  WARN,
		"error": ERROR,
		"fatal": ERROR,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newConsoleLogger("test", &buf)
	l.SetLevels(WARN, ERROR)

	l.Info("скрыто")
	l.Warn("видно %d", 42)

	out := buf.String()
	assert.NotContains(t, out, "скрыто")
	assert.Contains(t, out, "видно 42")
	assert.Contains(t, out, "component=test")
}

func TestManagerConfigure(t *testing.T) {
	lm := newLoggerManager()
	early, err := lm.GetLogger("shard")
	require.NoError(t, err)
	console, _ := early.Levels()
	assert.Equal(t, INFO, console)

	lm.Configure(Options{Console: WARN, File: ERROR, Components: map[string]LogLevel{"network": TRACE}})

	console, file := early.Levels()
	assert.Equal(t, WARN, console, "настройки применяются к созданным логгерам")
	assert.Equal(t, ERROR, file)

	net, err := lm.GetLogger("network")
	require.NoError(t, err)
	console, _ = net.Levels()
	assert.Equal(t, TRACE, console)

	again, _ := lm.GetLogger("shard")
	assert.Same(t, early, again)
	assert.Equal(t, []string{"network", "shard"}, lm.Components())
	assert.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.Components())
}
