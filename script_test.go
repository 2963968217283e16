package patchweaver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ParseScript(t *testing.T) {
	t.Run("should parse a replace rule with its occurrence policy", func(t *testing.T) {
		script, err := ParseScript([]byte(`
target: src/ui/writing_tools.slint
rules:
  - name: rename-model
    replace:
      find: "model: ["
      with: "for item in ["
      all: true
`))
		require.NoError(t, err)
		assert.Equal(t, "src/ui/writing_tools.slint", script.Target)
		require.Len(t, script.Rules, 1)

		rule, ok := script.Rules[0].(ReplaceRule)
		require.True(t, ok)
		assert.Equal(t, "rename-model", rule.Name())
		assert.Equal(t, "model: [", rule.Find)
		assert.True(t, rule.All)
	})

	t.Run("should compile regex rules at load time", func(t *testing.T) {
		script, err := ParseScript([]byte(`
rules:
  - name: strip-logs
    regex:
      pattern: '(?m)^\s*println!.*;\n'
      all: true
`))
		require.NoError(t, err)
		rule, ok := script.Rules[0].(RegexRule)
		require.True(t, ok)
		assert.True(t, rule.All)
		assert.Empty(t, rule.Template)
	})

	t.Run("should wrap with scope then ensure, outermost last", func(t *testing.T) {
		script, err := ParseScript([]byte(`
rules:
  - name: rename-import
    ensure: "SlintThemeColors as HierarchyThemeColors"
    scope: { marker: "slint! {", occurrence: 1 }
    replace:
      find: "import { SlintThemeColors }"
      with: "import { SlintThemeColors as HierarchyThemeColors }"
`))
		require.NoError(t, err)

		ensure, ok := script.Rules[0].(EnsureRule)
		require.True(t, ok)
		assert.Equal(t, "SlintThemeColors as HierarchyThemeColors", ensure.Marker)

		scoped, ok := ensure.Rule.(ScopedRule)
		require.True(t, ok)
		assert.Equal(t, "slint! {", scoped.Marker)
		assert.Equal(t, 1, scoped.Occurrence)
		assert.Equal(t, "rename-import", scoped.Name())
	})

	t.Run("should default wrap delimiters to braces", func(t *testing.T) {
		script, err := ParseScript([]byte(`
rules:
  - name: double-brace
    wrap:
      anchor: "=> "
      prefix: "=> {{"
      suffix: "}}"
`))
		require.NoError(t, err)
		rule, ok := script.Rules[0].(WrapRule)
		require.True(t, ok)
		assert.Equal(t, Braces, rule.Delims)
	})

	t.Run("should parse move and insert and delete rules", func(t *testing.T) {
		script, err := ParseScript([]byte(`
rules:
  - name: hoist-markup
    move:
      anchor: "slint::slint! "
      open: "{"
      close: "}"
  - name: add-import
    insert:
      after: "use tokio::sync::RwLock;"
      text: "\nuse slint::ComponentHandle;"
  - name: drop-margin
    delete:
      find: "margin: 4px;"
      all: true
`))
		require.NoError(t, err)
		require.Len(t, script.Rules, 3)
		_, ok := script.Rules[0].(MoveRule)
		assert.True(t, ok)
		insert, ok := script.Rules[1].(InsertRule)
		require.True(t, ok)
		assert.False(t, insert.Before)
		del, ok := script.Rules[2].(ReplaceRule)
		require.True(t, ok)
		assert.Empty(t, del.With)
		assert.True(t, del.All)
	})

	t.Run("should reject an empty rule list", func(t *testing.T) {
		_, err := ParseScript([]byte("target: x\n"))
		var serr *ScriptError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, -1, serr.Index)
	})

	t.Run("should reject a rule without a name", func(t *testing.T) {
		_, err := ParseScript([]byte(`
rules:
  - replace: { find: a, with: b }
`))
		var serr *ScriptError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, 0, serr.Index)
		assert.Contains(t, serr.Error(), "no name")
	})

	t.Run("should reject a rule with no action or two actions", func(t *testing.T) {
		_, err := ParseScript([]byte(`
rules:
  - name: empty
`))
		var serr *ScriptError
		require.True(t, errors.As(err, &serr))
		assert.Contains(t, serr.Error(), "no action")

		_, err = ParseScript([]byte(`
rules:
  - name: double
    replace: { find: a, with: b }
    insert: { after: a, text: b }
`))
		require.True(t, errors.As(err, &serr))
		assert.Contains(t, serr.Error(), "exactly one")
	})

	t.Run("should reject a bad regex at load time", func(t *testing.T) {
		_, err := ParseScript([]byte(`
rules:
  - name: bad
    regex: { pattern: "([unclosed" }
`))
		var serr *ScriptError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, "bad", serr.Rule)
	})

	t.Run("should reject insert with both after and before", func(t *testing.T) {
		_, err := ParseScript([]byte(`
rules:
  - name: both
    insert: { after: a, before: b, text: c }
`))
		var serr *ScriptError
		require.True(t, errors.As(err, &serr))
		assert.Contains(t, serr.Error(), "exactly one of after/before")
	})

	t.Run("should reject multi-character delimiters", func(t *testing.T) {
		_, err := ParseScript([]byte(`
rules:
  - name: wide
    wrap: { anchor: "=> ", open: "{{", close: "}}" }
`))
		var serr *ScriptError
		require.True(t, errors.As(err, &serr))
		assert.Contains(t, serr.Error(), "single character")
	})

	t.Run("should reject unknown fields", func(t *testing.T) {
		_, err := ParseScript([]byte(`
rules:
  - name: typo
    replace: { find: a, with: b }
    scoep: { marker: m }
`))
		var serr *ScriptError
		require.True(t, errors.As(err, &serr))
	})
}

func Test_LoadScript(t *testing.T) {
	t.Run("should load a script from disk", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "patch.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
target: main.rs
rules:
  - name: r
    replace: { find: a, with: b }
`), 0o644))

		script, err := LoadScript(path)
		require.NoError(t, err)
		assert.Equal(t, "main.rs", script.Target)
	})

	t.Run("should annotate script errors with the path", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("rules:\n  - name: r\n"), 0o644))

		_, err := LoadScript(path)
		var serr *ScriptError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, path, serr.Path)
		assert.Contains(t, serr.Error(), "broken.yaml")
	})

	t.Run("should fail on a missing file", func(t *testing.T) {
		_, err := LoadScript(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}
