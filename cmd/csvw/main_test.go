package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const peopleMetadata = `{
  "@context": "http://www.w3.org/ns/csvw",
  "url": "people.csv",
  "tableSchema": {
    "aboutUrl": "http://ex.org/people/{id}",
    "columns": [
      {"name": "id", "titles": "id", "suppressOutput": true},
      {"name": "name", "titles": "name", "propertyUrl": "http://ex.org/name"}
    ],
    "primaryKey": "id"
  }
}`

const peopleRDF = `<http://ex.org/alice> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://ex.org/Person> .
<http://ex.org/alice> <http://ex.org/name> "Alice" .
<http://ex.org/bob> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://ex.org/Person> .
<http://ex.org/bob> <http://ex.org/name> "Bob" .
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "csvw "))
}

func TestCSV2RDF(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"people.csv-metadata.json": peopleMetadata,
		"people.csv":               "id,name\n1,Alice\n2,Bob\n",
	})

	out, _, err := execute(t, "csv2rdf", filepath.Join(dir, "people.csv-metadata.json"), "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, `<http://ex.org/people/1> <http://ex.org/name> "Alice" .
<http://ex.org/people/2> <http://ex.org/name> "Bob" .
`, out)
}

func TestCSV2RDF_LocatesMetadata(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"people.csv-metadata.json": peopleMetadata,
		"people.csv":               "id,name\n1,Alice\n",
	})
	target := filepath.Join(dir, "out.nt")

	_, _, err := execute(t, "csv2rdf", filepath.Join(dir, "people.csv"), "-o", target, "--format", "ntriples")
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "<http://ex.org/people/1> <http://ex.org/name> \"Alice\" .\n", string(data))
}

func TestCSV2RDF_UnknownFormat(t *testing.T) {
	dir := writeFiles(t, map[string]string{"people.csv-metadata.json": peopleMetadata})

	_, _, err := execute(t, "csv2rdf", filepath.Join(dir, "people.csv-metadata.json"), "--format", "rdfxml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rdfxml")
}

func TestValidate(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"people.csv-metadata.json": peopleMetadata,
		"people.csv":               "id,name\n1,Alice\n2,Bob\n",
	})

	out, _, err := execute(t, "validate", filepath.Join(dir, "people.csv-metadata.json"))
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)
}

func TestValidate_Errors(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"people.csv-metadata.json": peopleMetadata,
		"people.csv":               "id,name\n1,Alice\n1,Bob\n",
	})

	out, _, err := execute(t, "validate", filepath.Join(dir, "people.csv-metadata.json"))
	require.ErrorIs(t, err, errInvalid)
	assert.Equal(t, 2, exitCode(err))
	assert.Contains(t, out, "duplicate primary key")
}

func TestRDF2CSV(t *testing.T) {
	dir := writeFiles(t, map[string]string{"people.nq": peopleRDF})
	outDir := filepath.Join(dir, "out")

	_, _, err := execute(t, "rdf2csv", filepath.Join(dir, "people.nq"), "-o", outDir,
		"--base-iri", "http://out.org/", "--window", "2", "--step", "1")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "Person.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id,name\r\nhttp://ex.org/alice,Alice\r\nhttp://ex.org/bob,Bob\r\n", string(data))
}

func TestRDF2CSV_WithMetadata(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"people.nq": `<http://ex.org/people/1> <http://ex.org/name> "Alice" .` + "\n",
		"people.csv-metadata.json": `{
  "@context": "http://www.w3.org/ns/csvw",
  "url": "http://out.org/people.csv",
  "tableSchema": {
    "aboutUrl": "http://ex.org/people/{id}",
    "columns": [
      {"name": "id", "titles": "id", "suppressOutput": true},
      {"name": "name", "titles": "name", "propertyUrl": "http://ex.org/name"}
    ]
  }
}`,
	})
	outDir := filepath.Join(dir, "out")

	_, _, err := execute(t, "rdf2csv", filepath.Join(dir, "people.nq"), "-o", outDir,
		"--metadata", filepath.Join(dir, "people.csv-metadata.json"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "people.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id,name\r\n1,Alice\r\n", string(data))
}

func TestInfer(t *testing.T) {
	dir := writeFiles(t, map[string]string{"people.nq": peopleRDF})

	out, _, err := execute(t, "infer", filepath.Join(dir, "people.nq"), "--base-iri", "http://out.org/")
	require.NoError(t, err)
	assert.Contains(t, out, `"url": "http://out.org/Person.csv"`)
	assert.Contains(t, out, `"aboutUrl": "{+id}"`)
}

func TestConfigErrors(t *testing.T) {
	_, _, err := execute(t, "validate", "x.json", "--path-override", "no-separator")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FROM=TO")

	_, _, err = execute(t, "validate", "x.json", "--store", "postgres")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn")

	_, _, err = execute(t, "validate", "x.json", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestTableFileName(t *testing.T) {
	assert.Equal(t, "Person.csv", tableFileName("http://out.org/Person.csv"))
	assert.Equal(t, "people.csv", tableFileName("http://out.org/data/people.csv?v=1#x"))
	assert.Equal(t, "people.csv", tableFileName("http://out.org/people"))
	assert.Equal(t, "table.csv", tableFileName("http://out.org/"))
}

func TestLocate(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.json": "{}"})

	assert.Equal(t, "http://ex.org/a.json", locate("http://ex.org/a.json"))
	assert.Equal(t, "missing.json", locate("missing.json"))
	assert.True(t, strings.HasPrefix(locate(filepath.Join(dir, "a.json")), "file:///"))
}
