package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pinscraper/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level", cfg: &config.LoggingConfig{Level: "debug"}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "loud"}, wantErr: true},
		{name: "file output", cfg: &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
			if tt.cfg.File != "" {
				l.Info("hello")
				_, statErr := os.Stat(tt.cfg.File)
				assert.NoError(t, statErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLevelBadge(t *testing.T) {
	assert.Equal(t, "WARN", levelBadge("WARN", true))
	assert.True(t, strings.Contains(levelBadge("ERROR", false), "ERRO"))
	assert.Equal(t, "TRACE", levelBadge("TRACE", false))
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	parent := NewTestLogger()
	child := parent.WithField("category", "animals")
	child.WithError(errors.New("boom")).Warn("upload failed")
	parent.Info("plain")

	msgs := parent.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "animals", msgs[0].Fields["category"])
	assert.Equal(t, "boom", msgs[0].Fields["error"])
	assert.NotContains(t, msgs[1].Fields, "category")
	assert.True(t, parent.HasMessage("upload failed"))
	assert.Len(t, parent.GetMessagesByLevel("WARN"), 1)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("k", "v").WithError(errors.New("x")).Info("ignored")
	assert.Nil(t, l.GetZerolog())
}

func TestEmitCarriesFields(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	buf := &bytes.Buffer{}
	zl := zerolog.New(buf)
	var l Logger = &zerologLogger{logger: &zl, fields: map[string]interface{}{}}

	l.WithField("category", "food").InfoWithFields("Category committed", map[string]interface{}{"records": 3})
	l.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, `"category":"food"`)
	assert.Contains(t, out, `"records":3`)
	assert.Contains(t, out, `"message":"Category committed"`)
	assert.NotContains(t, out, "hidden")
}
