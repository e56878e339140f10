package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCompileCmd(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestCompileMappings(t *testing.T) {
	dir := writeMappings(t, map[string]string{"person.cue": personMapping})

	buf, err := runCompileCmd(t, "text", dir)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 2 entity type(s)")
	assert.Contains(t, output, "Person: 2 scalar(s), 1 relation(s)")
	assert.Contains(t, output, "knows → Person")
	assert.Contains(t, output, "Tag: 1 scalar(s), 0 relation(s)")
}

func TestCompileMappingsJSON(t *testing.T) {
	dir := writeMappings(t, map[string]string{"person.cue": personMapping})

	buf, err := runCompileCmd(t, "json", dir)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Entities, 2)

	byName := map[string]EntitySummary{}
	for _, e := range resp.Data.Entities {
		byName[e.Name] = e
	}

	person := byName["Person"]
	assert.Equal(t, "http://example.org/person/", person.BaseURI)
	assert.True(t, person.StatusTracked)
	assert.True(t, person.GeneratesIDs)
	require.Len(t, person.Relations, 1)
	assert.Equal(t, "name", person.Relations[0].OrderBy)
	assert.False(t, person.Relations[0].Desc)

	tag := byName["Tag"]
	assert.False(t, tag.StatusTracked)
	assert.False(t, tag.GeneratesIDs)
}

func TestCompileOutputToFile(t *testing.T) {
	dir := writeMappings(t, map[string]string{"person.cue": personMapping})
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	buf, err := runCompileCmd(t, "text", dir, "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Wrote mappings to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Entities, 2)
}

func TestCompileNonExistentDirectory(t *testing.T) {
	_, err := runCompileCmd(t, "text", "/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileEmptyDirectory(t *testing.T) {
	_, err := runCompileCmd(t, "text", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
}

func TestCompileNoEntities(t *testing.T) {
	dir := writeMappings(t, map[string]string{"empty.cue": "package mappings\n\nversion: 1\n"})

	buf, err := runCompileCmd(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "no entity mappings found")
}

func TestCompileSyntaxError(t *testing.T) {
	dir := writeMappings(t, map[string]string{"broken.cue": "package mappings\n\nentity: Person: {\n"})

	_, err := runCompileCmd(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileInvalidMappings(t *testing.T) {
	tests := []struct {
		name     string
		mapping  string
		wantCode string
		wantMsg  string
	}{
		{
			name: "unknown key",
			mapping: `package mappings
entity: Person: {
	base_uri: "http://example.org/person/"
	colour: "blue"
}`,
			wantCode: ErrCodeEntityShape,
			wantMsg:  `unknown field "colour"`,
		},
		{
			name: "scalar without field",
			mapping: `package mappings
entity: Person: {
	scalars: [{predicate: "http://xmlns.com/foaf/0.1/name"}]
}`,
			wantCode: ErrCodeScalars,
			wantMsg:  "scalars[0].field is required",
		},
		{
			name: "unknown generator",
			mapping: `package mappings
entity: Person: {
	base_uri: "http://example.org/person/"
	id: "snowflake"
}`,
			wantCode: ErrCodeIDGenerator,
			wantMsg:  "unknown identifier generator",
		},
		{
			name: "sequence generator",
			mapping: `package mappings
entity: Person: {
	base_uri: "http://example.org/person/"
	id: "sequence"
}`,
			wantCode: ErrCodeIDGenerator,
			wantMsg:  `unknown identifier generator "sequence"`,
		},
		{
			name: "status not boolean",
			mapping: `package mappings
entity: Person: {
	status: "yes"
}`,
			wantCode: ErrCodeStatus,
			wantMsg:  "status must be a boolean",
		},
		{
			name: "unregistered target",
			mapping: `package mappings
entity: Person: {
	base_uri: "http://example.org/person/"
	relations: [{predicate: "http://xmlns.com/foaf/0.1/knows", field: "knows", target: "Robot"}]
}`,
			wantCode: ErrCodeInvalidMapping,
			wantMsg:  `targets unregistered type "Robot"`,
		},
		{
			name: "predicate mapped twice",
			mapping: `package mappings
entity: Person: {
	scalars: [
		{predicate: "http://xmlns.com/foaf/0.1/name", field: "name"},
		{predicate: "http://xmlns.com/foaf/0.1/name", field: "label"},
	]
}`,
			wantCode: ErrCodeDuplicateMapping,
			wantMsg:  "mapped twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeMappings(t, map[string]string{"person.cue": tt.mapping})

			buf, err := runCompileCmd(t, "text", dir)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			output := buf.String()
			assert.Contains(t, output, "✗ Compilation failed")
			assert.Contains(t, output, tt.wantCode)
			assert.Contains(t, output, tt.wantMsg)
		})
	}
}

func TestCompileInvalidMappingJSON(t *testing.T) {
	dir := writeMappings(t, map[string]string{"person.cue": `package mappings
entity: Person: {
	scalars: [{field: "name"}]
}`})

	buf, err := runCompileCmd(t, "json", dir)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScalars, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "entity.Person")
}

func TestCompileCollectsEveryError(t *testing.T) {
	dir := writeMappings(t, map[string]string{"bad.cue": `package mappings
entity: A: {status: 1}
entity: B: {id: "snowflake", base_uri: "http://example.org/b/"}
`})

	buf, err := runCompileCmd(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 error(s)")
	assert.Contains(t, buf.String(), ErrCodeStatus)
	assert.Contains(t, buf.String(), ErrCodeIDGenerator)
}

func TestCompileVerboseOutput(t *testing.T) {
	dir := writeMappings(t, map[string]string{"person.cue": personMapping})

	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errBuf.String(), "Found 1 CUE file(s)")
	assert.Contains(t, errBuf.String(), "Compiled entity: Person")
	assert.NotContains(t, buf.String(), "Found 1 CUE file(s)")
}

func TestFindCUEFiles(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "nested")
	require.NoError(t, os.MkdirAll(subDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "a.cue"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "b.cue"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "readme.md"), []byte(""), 0644))

	files, err := FindCUEFiles(tmpDir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field    string
		expected string
	}{
		{"entity", ErrCodeEntityShape},
		{"scalars", ErrCodeScalars},
		{"relations", ErrCodeRelations},
		{"relations.order", ErrCodeRelationOrder},
		{"type", ErrCodeInvalidType},
		{"base_uri", ErrCodeIRI},
		{"rdf_type", ErrCodeIRI},
		{"status", ErrCodeStatus},
		{"id", ErrCodeIDGenerator},
		{"unknown", ErrCodeGeneric},
		{"", ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapFieldToErrorCode(tt.field))
		})
	}
}

func TestCalculateStats(t *testing.T) {
	result := &CompilationResult{
		Entities: []EntitySummary{
			{
				Name:      "Person",
				Scalars:   []ScalarSummary{{Field: "name"}, {Field: "age"}},
				Relations: []RelationSummary{{Field: "knows", Target: "Person"}},
			},
			{
				Name:    "Tag",
				Scalars: []ScalarSummary{{Field: "label"}},
			},
		},
	}

	stats := calculateStats(result)
	assert.Equal(t, 2, stats.EntityCount)
	assert.Equal(t, 3, stats.TotalScalars)
	assert.Equal(t, 1, stats.TotalRelations)
}
