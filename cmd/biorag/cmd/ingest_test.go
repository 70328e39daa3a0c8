package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biorag/biorag/internal/config"
)

func TestConfirmClear(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "y\n", true},
		{"yes word", "yes\n", true},
		{"uppercase yes", "Y\n", true},
		{"no", "n\n", false},
		{"anything else declines", "maybe\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newIngestCmd()
			cmd.SetIn(strings.NewReader(tt.input))
			cmd.SetOut(&bytes.Buffer{})

			got, err := confirmClear(cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewEmbedder_Offline(t *testing.T) {
	cmd := newIngestCmd()
	cfg := config.NewConfig()

	embedder, err := newEmbedder(cmd, cfg, true)
	require.NoError(t, err)
	defer func() { _ = embedder.Close() }()

	assert.Equal(t, "static-hash", embedder.ModelName())
}
