package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		checkFunc func(t *testing.T, output string)
	}{
		{
			name: "Text Logger Info Level",
			config: Config{
				Level:  "info",
				Format: "text",
				Output: "stdout",
			},
			checkFunc: func(t *testing.T, output string) {
				assert.Contains(t, output, "level=INFO")
				assert.Contains(t, output, `msg="test message"`)
			},
		},
		{
			name: "JSON Logger Debug Level",
			config: Config{
				Level:  "debug",
				Format: "json",
				Output: "stdout",
			},
			checkFunc: func(t *testing.T, output string) {
				var logEntry map[string]interface{}
				require.NoError(t, json.Unmarshal([]byte(output), &logEntry))
				assert.Equal(t, "DEBUG", logEntry["level"])
				assert.Equal(t, "test message", logEntry["msg"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewLogger(tt.config, &buf)

			if tt.config.Level == "debug" {
				log.Debug("test message")
			} else {
				log.Info("test message")
			}

			tt.checkFunc(t, buf.String())
		})
	}
}

func TestRunLogFiles(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	log, closeAll, err := RunLogFiles(Config{Level: "info", LogDir: dir}, "run_test_1", &console)
	require.NoError(t, err)

	log.Info("hello from run")
	log.Error("something broke", slog.String("repo", "acme/widget"))
	closeAll()

	runLog, err := os.ReadFile(filepath.Join(dir, "run_test_1.log"))
	require.NoError(t, err)
	assert.Contains(t, string(runLog), "hello from run")
	assert.Contains(t, string(runLog), "something broke")

	incLog, err := os.ReadFile(filepath.Join(dir, "incremental.log"))
	require.NoError(t, err)
	assert.Contains(t, string(incLog), "hello from run")

	errLog, err := os.ReadFile(filepath.Join(dir, "incremental.error.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(errLog), "hello from run")
	assert.Contains(t, string(errLog), "something broke")

	assert.Contains(t, console.String(), "hello from run")
}
