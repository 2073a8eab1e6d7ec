package definition

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conveyor/pkg/api"
)

const yamlDefinition = `
name: service-pipeline
version: "1.0"
trigger:
  branch: main
stages:
  - id: build
    kind: build
    spec:
      command: make
      artifacts:
        app.bin: out/app.bin
  - id: scan
    kind: scan
    needs: [build]
    idempotent: true
    secrets: [SCAN_TOKEN]
    spec:
      endpoint: https://scanner.local/scan
      artifact: app.bin
      token_secret: SCAN_TOKEN
  - id: publish
    kind: publish
    needs: [scan]
    condition: branch == "main"
    secrets: [NEXUS_USER, NEXUS_TOKEN]
    spec:
      repository: https://nexus.local/repo
      artifacts: [app.bin]
      user_secret: NEXUS_USER
      token_secret: NEXUS_TOKEN
`

func TestParse(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		spec, err := Parse(strings.NewReader(yamlDefinition), "yaml")
		require.NoError(t, err)
		assert.Equal(t, "service-pipeline", spec.Name)
		assert.Equal(t, "main", spec.Trigger.Branch)
		require.Equal(t, 3, len(spec.Stages))
		assert.Equal(t, api.KindBuild, spec.Stages[0].Kind)
		assert.Equal(t, []string{"build"}, spec.Stages[1].Needs)
		assert.True(t, spec.Stages[1].Idempotent)
		assert.Equal(t, `branch == "main"`, spec.Stages[2].Condition)
		assert.Equal(t, "https://scanner.local/scan", spec.Stages[1].Spec["endpoint"])
	})

	t.Run("json", func(t *testing.T) {
		data := `{"name": "p", "stages": [{"id": "build", "kind": "build"}]}`
		spec, err := Parse(strings.NewReader(data), "json")
		require.NoError(t, err)
		assert.Equal(t, "p", spec.Name)
	})

	t.Run("unknown_yaml_field", func(t *testing.T) {
		data := "name: p\nstages:\n  - id: build\n    kind: build\n    retries: 3\n"
		_, err := Parse(strings.NewReader(data), "yaml")
		require.Error(t, err)
	})

	t.Run("invalid_definition", func(t *testing.T) {
		data := "name: p\nstages:\n  - id: build\n    kind: compile\n"
		_, err := Parse(strings.NewReader(data), "yaml")
		require.Error(t, err)
		assert.True(t, api.IsDefinitionError(err))
	})

	t.Run("unknown_format", func(t *testing.T) {
		_, err := Parse(strings.NewReader("{}"), "toml")
		require.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	t.Run("yaml_file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pipeline.yaml")
		require.NoError(t, ioutil.WriteFile(path, []byte(yamlDefinition), 0o644))
		spec, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "service-pipeline", spec.Name)
	})

	t.Run("json_file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pipeline.json")
		data := `{"name": "p", "stages": [{"id": "build", "kind": "build"}]}`
		require.NoError(t, ioutil.WriteFile(path, []byte(data), 0o644))
		spec, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "p", spec.Name)
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "ghost.yaml"))
		require.Error(t, err)
	})
}
