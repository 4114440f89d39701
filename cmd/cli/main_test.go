package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const acyclic = `{
  "session_id": "0190a5f2-1c2b-7d3e-8f40-123456789abc",
  "nodes": [
    {"id": "age", "kind": "observed", "position": {"x": 90, "y": 90}},
    {"id": "income", "kind": "observed", "position": {"x": 300, "y": 90}}
  ],
  "edges": [{"source": "age", "target": "income", "source_port": "right", "target_port": "left"}]
}`

const cyclic = `{
  "nodes": [{"id": "a", "kind": "observed"}, {"id": "b", "kind": "observed"}],
  "edges": [{"source": "a", "target": "b"}, {"source": "b", "target": "a"}]
}`

func writeGraph(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheck(t *testing.T) {
	out, err := run(t, "check", writeGraph(t, acyclic))
	require.NoError(t, err)
	assert.Contains(t, out, "nodes: 2 (0 latent)")
	assert.Contains(t, out, "cycles: none")

	out, err = run(t, "check", writeGraph(t, cyclic))
	assert.Error(t, err)
	assert.Contains(t, out, "cycle: ")
}

func TestCheckRejectsDanglingEdge(t *testing.T) {
	_, err := run(t, "check", writeGraph(t, `{"nodes":[{"id":"a"}],"edges":[{"source":"a","target":"ghost"}]}`))
	assert.Error(t, err)
}

func TestRenderAndReport(t *testing.T) {
	path := writeGraph(t, acyclic)

	out, err := run(t, "render", path, "--width", "400", "--height", "300")
	require.NoError(t, err)
	assert.Contains(t, out, "<svg")
	assert.Contains(t, out, `class="connector`)

	svgPath := filepath.Join(t.TempDir(), "out.svg")
	_, err = run(t, "render", path, "-o", svgPath)
	require.NoError(t, err)
	data, err := os.ReadFile(svgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")

	out, err = run(t, "report", path)
	require.NoError(t, err)
	assert.Contains(t, out, "| age | income | - |")

	out, err = run(t, "report", path, "--format", "html")
	require.NoError(t, err)
	assert.Contains(t, out, "<table>")

	_, err = run(t, "report", path, "--format", "pdf")
	assert.Error(t, err)
}
