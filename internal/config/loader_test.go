package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.tickamp.dev/servicegraph"
)

const modelA = `
strategy: compiled
log:
  level: debug
audit:
  path: audit.db
metrics:
  addr: ":9090"
services:
  - id: persister
    startDelay: 100ms
    stopDelay: 1s
  - id: aggAB
    requires: [persister]
  - id: calcC
    requires: [persister]
    manual: true
  - id: handlerA
    requires: [aggAB]
  - id: handlerB
    requires: [aggAB]
  - id: handlerC
    requiredBy: []
    requires: [calcC]
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	f, err := Load(writeFile(t, modelA))
	require.NoError(t, err)

	assert.Equal(t, "compiled", f.GraphStrategy().Name())
	level, err := f.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
	assert.Equal(t, "audit.db", f.Audit.Path)
	assert.Equal(t, ":9090", f.Metrics.Addr)

	require.Len(t, f.Services, 6)
	assert.Equal(t, ServiceConfig{
		ID:         "persister",
		StartDelay: 100 * time.Millisecond,
		StopDelay:  time.Second,
	}, f.Services[0])
	assert.Equal(t, []string{"persister"}, f.Services[1].Requires)
	assert.True(t, f.Services[2].Manual)
}

func TestBuilder(t *testing.T) {
	f, err := Load(writeFile(t, modelA))
	require.NoError(t, err)

	g, err := f.Builder().Build()
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"persister", "aggAB", "calcC", "handlerA", "handlerB",
			"handlerC"},
		g.IDs())

	m, err := servicegraph.NewManager(g, nil)
	require.NoError(t, err)
	// aggAB completes inline once persister is started, calcC is manual
	require.NoError(t, m.StartService("aggAB"))
	require.NoError(t, m.StartService("calcC"))
	require.Eventually(t, func() bool {
		s, _ := m.Status("aggAB")
		return s == servicegraph.Started
	}, 5*time.Second, 10*time.Millisecond)
	s, err := m.Status("calcC")
	require.NoError(t, err)
	assert.Equal(t, servicegraph.Starting, s)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		contains []string
	}{
		{
			name:     "invalid yaml",
			content:  "services: [",
			contains: []string{"failed to load graph file"},
		},
		{
			name:     "no service",
			content:  "strategy: interpreted\n",
			contains: []string{"no service declared"},
		},
		{
			name: "invalid settings",
			content: `
strategy: jit
log:
  level: loud
services:
  - id: a
    startDelay: -1s
`,
			contains: []string{`unknown strategy "jit"`,
				`invalid log level "loud"`, "negative delay"},
		},
		{
			name: "invalid duration",
			content: `
services:
  - id: a
    startDelay: soon
`,
			contains: []string{"failed to parse graph file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			require.Error(t, err)
			for _, c := range tt.contains {
				assert.Contains(t, err.Error(), c)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	f := &File{Services: []ServiceConfig{{ID: "a"}}}
	require.NoError(t, f.Validate())
	assert.Equal(t, "interpreted", f.GraphStrategy().Name())
	level, err := f.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}
