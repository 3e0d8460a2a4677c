package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"go.tickamp.dev/servicegraph"
	"go.tickamp.dev/servicegraph/audit"
	"go.tickamp.dev/servicegraph/metrics"
)

// Completions of these services are only notified by run steps.
const graphFile = `
services:
  - id: persister
    manual: true
  - id: aggAB
    requires: [persister]
    manual: true
  - id: calcC
    requires: [persister]
    manual: true
  - id: handlerA
    requires: [aggAB]
    manual: true
  - id: handlerB
    requires: [aggAB]
    manual: true
  - id: handlerC
    requires: [calcC]
    manual: true
`

func execute(t *testing.T, content string, args ...string) (string, error) {
	t.Helper()
	out, _, err := executeContext(t, context.Background(), content, args...)
	return out, err
}

// executeContext runs the command with ctx and returns its standard and error
// outputs.
func executeContext(t *testing.T, ctx context.Context, content string,
	args ...string) (string, string, error) {
	t.Helper()
	text.DisableColors()
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"-c", path}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func TestValidate(t *testing.T) {
	out, err := execute(t, graphFile, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "REQUIRED BY")
	assert.Contains(t, out, "aggAB, calcC")
	assert.Less(t, bytes.Index([]byte(out), []byte("persister")),
		bytes.Index([]byte(out), []byte("handlerC")))
}

func TestValidateCycle(t *testing.T) {
	_, err := execute(t, `
services:
  - id: a
    requires: [b]
  - id: b
    requires: [a]
`, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cyclic dependency")
}

func TestRunYAML(t *testing.T) {
	out, err := execute(t, graphFile, "run", "-o", "yaml",
		"start=aggAB", "started=persister")
	require.NoError(t, err)

	type doc struct {
		Step    string `yaml:"step"`
		Records []struct {
			ServiceID string `yaml:"serviceId"`
			Status    string `yaml:"status"`
		} `yaml:"records"`
	}
	dec := yaml.NewDecoder(bytes.NewBufferString(out))
	var docs []doc
	for {
		var d doc
		if err := dec.Decode(&d); err != nil {
			break
		}
		if d.Step != "" {
			docs = append(docs, d)
		}
	}
	require.Len(t, docs, 3)
	assert.Equal(t, "initial", docs[0].Step)
	assert.Len(t, docs[0].Records, 6)
	assert.Equal(t, "start=aggAB", docs[1].Step)
	require.Len(t, docs[1].Records, 2)
	assert.Equal(t, "persister", docs[1].Records[0].ServiceID)
	assert.Equal(t, "STARTING", docs[1].Records[0].Status)
	assert.Equal(t, "aggAB", docs[1].Records[1].ServiceID)
	assert.Equal(t, "WAITING_TO_START", docs[1].Records[1].Status)

	// persister reported started releases aggAB
	assert.Equal(t, "started=persister", docs[2].Step)
	require.Len(t, docs[2].Records, 2)
	assert.Equal(t, "persister", docs[2].Records[0].ServiceID)
	assert.Equal(t, "STARTED", docs[2].Records[0].Status)
	assert.Equal(t, "aggAB", docs[2].Records[1].ServiceID)
	assert.Equal(t, "STARTING", docs[2].Records[1].Status)
}

func TestRunTableWithAudit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	out, err := execute(t, `
strategy: compiled
services:
  - id: db
    startDelay: 1ms
  - id: api
    requires: [db]
`, "run", "--audit", dbPath, "start=api", "wait=100ms", "status")
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out), "start=api")
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "STARTED")

	store, err := audit.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	entries, err := store.ByService(t.Context(), "api")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "STARTED", entries[len(entries)-1].To.String())
}

func TestRunInvalidSteps(t *testing.T) {
	for _, args := range [][]string{
		{"run", "launch=db"},
		{"run", "start"},
		{"run", "wait=soon"},
		{"run", "startall=x"},
		{"run", "-o", "json", "status"},
		{"run", "start=nope"},
	} {
		_, err := execute(t, graphFile, args...)
		assert.Error(t, err, args)
	}
}

func TestParseStep(t *testing.T) {
	s, err := parseStep("wait=250ms")
	require.NoError(t, err)
	assert.Equal(t, "wait=250ms", s.String())
	assert.Equal(t, int64(250), s.wait.Milliseconds())

	s, err = parseStep("startall")
	require.NoError(t, err)
	assert.Equal(t, "startall", s.String())
}

func TestInvalidConfig(t *testing.T) {
	_, err := execute(t, graphFile, "--strategy", "jit", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown strategy "jit"`)
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(),
		200*time.Millisecond)
	defer cancel()
	_, errOut, err := executeContext(t, ctx, `
services:
  - id: db
  - id: api
    requires: [db]
`, "serve", "--stop-timeout", "1s")
	require.NoError(t, err)
	assert.Contains(t, errOut, "all services started")
	assert.Contains(t, errOut, "stopping all services")
	assert.NotContains(t, errOut, "serving metrics")
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	require.NoError(t, collector.Observe([]servicegraph.StatusRecord{
		{ServiceID: "db", Status: servicegraph.Stopped},
	}))
	require.NoError(t, collector.Observe([]servicegraph.StatusRecord{
		{ServiceID: "db", Status: servicegraph.Starting},
	}))

	srv := httptest.NewServer(metricsHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `servicegraph_services{status="STARTING"} 1`)
	assert.Contains(t, string(body),
		`servicegraph_transitions_total{service="db",status="STARTING"} 1`)

	resp, err = http.Get(srv.URL + "/other")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
