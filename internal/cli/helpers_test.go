package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const personMapping = `package mappings

entity: Person: {
	base_uri: "http://example.org/person/"
	rdf_type: "http://xmlns.com/foaf/0.1/Person"
	id:       "uuid7"
	scalars: [
		{predicate: "http://xmlns.com/foaf/0.1/name", field: "name"},
		{predicate: "http://xmlns.com/foaf/0.1/age", field: "age"},
	]
	relations: [{
		predicate: "http://xmlns.com/foaf/0.1/knows"
		field:     "knows"
		target:    "Person"
		order: {direction: "asc", field: "name"}
	}]
}

entity: Tag: {
	base_uri: "http://example.org/tag/"
	status:   false
	scalars: [
		{predicate: "http://www.w3.org/2004/02/skos/core#prefLabel", field: "label"},
	]
}
`

// writeMappings writes one CUE file per entry into a fresh directory.
func writeMappings(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

// writeWorkspace lays out mappings and a config file that points at a
// SQLite store, and returns the config path.
func writeWorkspace(t *testing.T) string {
	t.Helper()
	mappingsDir := writeMappings(t, map[string]string{"person.cue": personMapping})
	dir := t.TempDir()

	cfg := "backend: sqlite\n" +
		"database: " + filepath.Join(dir, "store.db") + "\n" +
		"graph: http://example.org/graph\n" +
		"mappings: " + mappingsDir + "\n"
	path := filepath.Join(dir, "sparqlmodel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path
}

// execute runs the root command with args and returns what it printed.
func execute(args ...string) (string, error) {
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type entityResponse struct {
	Status string                 `json:"status"`
	Data   map[string]interface{} `json:"data"`
	Error  *CLIError              `json:"error"`
}

// executeJSON runs a command with --format json and decodes the envelope.
func executeJSON(t *testing.T, configPath string, args ...string) (entityResponse, error) {
	t.Helper()
	full := append([]string{"--config", configPath, "--format", "json"}, args...)
	out, err := execute(full...)

	var resp entityResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp, err
}
