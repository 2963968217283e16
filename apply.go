package patchweaver

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/ulikunitz/xz"
)

type applyConfig struct {
	dryRun bool
	backup bool
	policy MissPolicy
	sink   EventSink
}

// ApplyOption configures Apply.
type ApplyOption func(*applyConfig)

// WithDryRun runs the pipeline but never writes; the report carries a unified
// diff of what would change.
func WithDryRun() ApplyOption {
	return func(c *applyConfig) { c.dryRun = true }
}

// WithBackup archives the original file as <path>.orig.xz before the first
// overwrite. An existing backup is never replaced, so the backup always holds
// the pre-patch-series contents.
func WithBackup() ApplyOption {
	return func(c *applyConfig) { c.backup = true }
}

// WithPolicy sets the pipeline's miss policy.
func WithPolicy(policy MissPolicy) ApplyOption {
	return func(c *applyConfig) { c.policy = policy }
}

// WithEvents directs pipeline progress events to s.
func WithEvents(s EventSink) ApplyOption {
	return func(c *applyConfig) { c.sink = s }
}

// Load reads the file at path into a snapshot. Bytes pass through untouched;
// there is no encoding transformation, so an unmodified run writes back
// byte-identical contents.
func Load(path string) (SourceText, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SourceText{}, fmt.Errorf("load %s: %w", path, err)
	}
	return NewSourceText(path, string(data)), nil
}

// Apply loads path, runs the rules in order, and commits the result in a
// single atomic write at the end of the run. Rule misses are recorded in the
// report, not returned as errors; only I/O failures (and script-level misuse)
// are errors, and they abort the run.
func Apply(path string, rules []Rule, opts ...ApplyOption) (*Report, error) {
	var cfg applyConfig
	for _, o := range opts {
		o(&cfg)
	}

	src, err := Load(path)
	if err != nil {
		return nil, err
	}

	pipe := NewPipeline(rules, WithMissPolicy(cfg.policy), WithSink(cfg.sink))
	final, report := pipe.Run(src)

	if cfg.dryRun {
		report.Diff = unifiedDiff(path, src.Text(), final.Text())
		return report, nil
	}
	if !report.Changed() {
		return report, nil
	}
	if cfg.backup {
		if err := writeBackup(path, []byte(src.Text())); err != nil {
			return report, fmt.Errorf("backup %s: %w", path, err)
		}
	}
	if err := commit(path, []byte(final.Text())); err != nil {
		return report, fmt.Errorf("save %s: %w", path, err)
	}
	return report, nil
}

// commit replaces path with data atomically: a temp file in the destination
// directory, synced, then renamed over the original. A failed run can
// therefore never leave a half-written target behind.
func commit(path string, data []byte) error {
	perm := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// writeBackup stores the original contents as path+".orig.xz". If the backup
// already exists it is kept as-is.
func writeBackup(path string, data []byte) error {
	backupPath := path + ".orig.xz"
	f, err := os.OpenFile(backupPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	w, err := xz.NewWriter(f)
	if err != nil {
		f.Close()
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		f.Close()
		return err
	}
	if err := w.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// unifiedDiff renders old vs new as a unified diff, or "" when identical.
func unifiedDiff(path string, old, new string) string {
	if old == new {
		return ""
	}
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(old),
		B:        difflib.SplitLines(new),
		FromFile: path,
		ToFile:   path + " (patched)",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return ""
	}
	return text
}
