package logger

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		development bool
		wantLevel   logrus.Level
		wantJSON    bool
	}{
		{"production json", "warn", false, logrus.WarnLevel, true},
		{"development text", "debug", true, logrus.DebugLevel, false},
		{"bad level falls back to info", "loud", false, logrus.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := New(tt.level, tt.development)
			assert.Equal(t, tt.wantLevel, log.GetLevel())
			_, isJSON := log.Formatter.(*logrus.JSONFormatter)
			assert.Equal(t, tt.wantJSON, isJSON)
		})
	}
}

func TestFromContextWithoutTransaction(t *testing.T) {
	log := New("info", false)
	assert.Equal(t, logrus.FieldLogger(log), FromContext(context.Background(), log))
}
