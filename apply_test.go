package patchweaver

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func writeTarget(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.rs")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func Test_Apply(t *testing.T) {
	t.Run("should rewrite the file and report the change", func(t *testing.T) {
		path := writeTarget(t, "fn old() {}\n")
		rules := []Rule{ReplaceRule{RuleName: "rename", Find: "old", With: "new"}}

		report, err := Apply(path, rules)
		require.NoError(t, err)
		assert.True(t, report.Changed())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "fn new() {}\n", string(data))
	})

	t.Run("should preserve permission bits across the rewrite", func(t *testing.T) {
		path := writeTarget(t, "content x\n")
		require.NoError(t, os.Chmod(path, 0o600))

		_, err := Apply(path, []Rule{ReplaceRule{RuleName: "r", Find: "x", With: "y"}})
		require.NoError(t, err)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("should leave the file byte-identical when every rule misses", func(t *testing.T) {
		content := "mixed line endings\r\nand a trailing tab\t\nno final newline"
		path := writeTarget(t, content)

		report, err := Apply(path, []Rule{ReplaceRule{RuleName: "gone", Find: "zzz", With: "?"}})
		require.NoError(t, err)
		assert.False(t, report.Changed())
		assert.Equal(t, []string{"gone"}, report.Missed())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
	})

	t.Run("should not touch the file in dry-run mode and carry a diff", func(t *testing.T) {
		path := writeTarget(t, "before\n")
		report, err := Apply(path, []Rule{ReplaceRule{RuleName: "r", Find: "before", With: "after"}}, WithDryRun())
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "before\n", string(data))

		assert.True(t, report.Changed())
		assert.Contains(t, report.Diff, "-before")
		assert.Contains(t, report.Diff, "+after")
	})

	t.Run("should keep an xz backup of the pre-patch contents", func(t *testing.T) {
		original := "original contents\n"
		path := writeTarget(t, original)

		_, err := Apply(path, []Rule{ReplaceRule{RuleName: "r1", Find: "original", With: "patched"}}, WithBackup())
		require.NoError(t, err)

		// a second run must not displace the first backup
		_, err = Apply(path, []Rule{ReplaceRule{RuleName: "r2", Find: "patched", With: "patched twice"}}, WithBackup())
		require.NoError(t, err)

		f, err := os.Open(path + ".orig.xz")
		require.NoError(t, err)
		defer f.Close()
		r, err := xz.NewReader(f)
		require.NoError(t, err)
		restored, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, original, string(restored))
	})

	t.Run("should fail on an unreadable target", func(t *testing.T) {
		_, err := Apply(filepath.Join(t.TempDir(), "missing.rs"), nil)
		require.Error(t, err)
	})
}

func Test_Load(t *testing.T) {
	t.Run("should round-trip bytes exactly", func(t *testing.T) {
		content := "utf-8 ✓ and \r\n and \x00 bytes"
		path := writeTarget(t, content)
		src, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, content, src.Text())
		assert.Equal(t, path, src.Path())
	})
}

func Test_Report_WriteJSON(t *testing.T) {
	path := writeTarget(t, "alpha beta\n")
	report, err := Apply(path, []Rule{
		ReplaceRule{RuleName: "hit", Find: "alpha", With: "gamma"},
		ReplaceRule{RuleName: "miss", Find: "zzz", With: "?"},
	})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, report.WriteJSON(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, report.RunID, decoded.RunID)
	assert.Equal(t, report.InputDigest, decoded.InputDigest)
	require.Len(t, decoded.Results, 2)
	assert.Equal(t, StatusApplied, decoded.Results[0].Status)
	assert.Equal(t, StatusMissed, decoded.Results[1].Status)
}
