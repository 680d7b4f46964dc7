package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haxdai/SWBPlatform-sub000/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const turtle = `
@prefix ex: <http://example.org/onto#> .
@prefix owl: <http://www.w3.org/2002/07/owl#> .
@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .

ex:Person a owl:Class ;
	rdfs:label "Person"@en .

<http://example.org/data/alice> a ex:Person ;
	rdfs:label "Alice"@en .
`

// execute runs swbctl with the given arguments and returns its output
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--quiet"}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDDL(t *testing.T) {
	out, err := execute(t, "ddl")
	require.NoError(t, err)
	assert.Equal(t, "mysql\npostgres\nsqlite\nsqlserver\n", out)

	out, err = execute(t, "ddl", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS swb_nodes")

	out, err = execute(t, "ddl", "--drop", "postgres")
	require.NoError(t, err)
	assert.Contains(t, out, "DROP TABLE")

	_, err = execute(t, "ddl", "oracle")
	assert.Error(t, err)
}

func TestConvert(t *testing.T) {
	input := writeFile(t, "input.ttl", turtle)
	output := filepath.Join(t.TempDir(), "output.nq")

	out, err := execute(t, "convert", "--graph", "http://example.org/graph", input, output)
	require.NoError(t, err)
	assert.Equal(t, "converted 4 statement(s)\n", out)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<http://example.org/data/alice> <http://www.w3.org/2000/01/rdf-schema#label> "Alice"@en <http://example.org/graph> .`)

	_, err = execute(t, "convert", input, filepath.Join(t.TempDir(), "output.txt"))
	assert.Error(t, err)
}

func TestImportExport(t *testing.T) {
	cfg := config.Default()
	cfg.Models = []config.ModelConfig{
		{
			Name:      "admin",
			Namespace: "http://example.org/data/",
			Store:     config.StoreConfig{Type: config.StoreLevelDB, Path: filepath.Join(t.TempDir(), "admin")},
		},
	}
	configPath := filepath.Join(t.TempDir(), "swb.yaml")
	require.NoError(t, cfg.SaveToFile(configPath))

	input := writeFile(t, "input.ttl", turtle)

	out, err := execute(t, "--config", configPath, "import", "admin", input)
	require.NoError(t, err)
	assert.Equal(t, "imported 4 statement(s) into \"admin\"\n", out)

	out, err = execute(t, "--config", configPath, "export", "--format", "ntriples", "admin")
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(out, "\n"))
	assert.Contains(t, out, `<http://example.org/data/alice>`)

	out, err = execute(t, "--config", configPath, "classes", "--instances", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "http://example.org/onto#Person")
	assert.Contains(t, out, "Person")
	assert.Contains(t, out, "1\n")

	_, err = execute(t, "--config", configPath, "export", "missing")
	assert.Error(t, err)
}
