// Command patchweaver applies declarative textual patch scripts to source
// files: ordered literal/regex/balanced-block rules, one atomic write-back.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/grahms/patchweaver"
)

const version = "0.1.0"

// CLI defines the command-line interface for patchweaver.
var CLI struct {
	Verbose bool `short:"v" help:"Enable debug logging"`
	JSONLog bool `name:"json-log" help:"Emit logs as JSON"`

	Apply   ApplyCmd   `cmd:"" help:"Apply a patch script to its target file"`
	Check   CheckCmd   `cmd:"" help:"Report which rules would apply, without writing"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// ApplyCmd runs a script against its target and writes the result back.
type ApplyCmd struct {
	Script   string `arg:"" help:"Patch script (YAML)" type:"existingfile"`
	File     string `help:"Target file; overrides the script's target" type:"path"`
	DryRun   bool   `name:"dry-run" help:"Run the pipeline but do not write; print the diff"`
	Backup   bool   `help:"Keep the original as <file>.orig.xz before the first overwrite"`
	Report   string `help:"Write a JSON run report to this path" type:"path"`
	FailFast bool   `name:"fail-fast" help:"Stop at the first missed rule"`
}

func (c *ApplyCmd) Run(logger *slog.Logger) error {
	script, target, err := loadScript(c.Script, c.File)
	if err != nil {
		return err
	}

	opts := []patchweaver.ApplyOption{patchweaver.WithEvents(logSink(logger))}
	if c.DryRun {
		opts = append(opts, patchweaver.WithDryRun())
	}
	if c.Backup {
		opts = append(opts, patchweaver.WithBackup())
	}
	if c.FailFast {
		opts = append(opts, patchweaver.WithPolicy(patchweaver.MissFail))
	}

	report, err := patchweaver.Apply(target, script.Rules, opts...)
	if report != nil && c.Report != "" {
		if werr := report.WriteJSON(c.Report); werr != nil {
			logger.Error("write report", "path", c.Report, "error", werr)
		}
	}
	if err != nil {
		return err
	}

	if c.DryRun && report.Diff != "" {
		fmt.Print(report.Diff)
	}
	logger.Info("run finished",
		"run_id", report.RunID,
		"target", target,
		"applied", len(report.Applied()),
		"satisfied", len(report.Satisfied()),
		"missed", len(report.Missed()),
		"changed", report.Changed(),
	)
	if c.FailFast && !report.Clean() {
		return fmt.Errorf("stopped: not every rule applied")
	}
	return nil
}

// CheckCmd is a read-only run: it prints the status each rule would get and
// exits non-zero if any rule would miss. Useful for asking "has this patch
// series already been applied?" without probing the file by hand.
type CheckCmd struct {
	Script string `arg:"" help:"Patch script (YAML)" type:"existingfile"`
	File   string `help:"Target file; overrides the script's target" type:"path"`
}

func (c *CheckCmd) Run(logger *slog.Logger) error {
	script, target, err := loadScript(c.Script, c.File)
	if err != nil {
		return err
	}

	report, err := patchweaver.Apply(target, script.Rules, patchweaver.WithDryRun())
	if err != nil {
		return err
	}
	for _, res := range report.Results {
		if res.Reason != "" {
			fmt.Printf("%-9s %s (%s)\n", res.Status, res.Rule, res.Reason)
		} else {
			fmt.Printf("%-9s %s\n", res.Status, res.Rule)
		}
	}
	if !report.Clean() {
		return fmt.Errorf("%d of %d rules would not apply", len(report.Missed()), len(report.Results))
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (VersionCmd) Run() error {
	fmt.Println("patchweaver " + version)
	return nil
}

func loadScript(scriptPath, fileOverride string) (*patchweaver.Script, string, error) {
	script, err := patchweaver.LoadScript(scriptPath)
	if err != nil {
		return nil, "", err
	}
	target := fileOverride
	if target == "" {
		target = script.Target
	}
	if target == "" {
		return nil, "", fmt.Errorf("%s declares no target; pass --file", scriptPath)
	}
	return script, target, nil
}

// logSink bridges pipeline events to structured logs.
func logSink(logger *slog.Logger) patchweaver.EventSink {
	return patchweaver.EventSinkFunc(func(ev patchweaver.Event) {
		switch e := ev.(type) {
		case patchweaver.RuleAppliedEvent:
			logger.Info("applied rule", "rule", e.Rule)
		case patchweaver.RuleSatisfiedEvent:
			logger.Debug("rule already satisfied", "rule", e.Rule)
		case patchweaver.RuleMissedEvent:
			logger.Warn("target not found", "rule", e.Rule, "reason", e.Reason)
		case patchweaver.RuleFailedEvent:
			logger.Error("rule failed", "rule", e.Rule, "error", e.Err)
		}
	})
}

func newLogger(verbose, jsonLog bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	var handler slog.Handler
	if jsonLog {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("patchweaver"),
		kong.Description("Apply sequential textual patch scripts to source files."),
		kong.UsageOnError(),
	)
	logger := newLogger(CLI.Verbose, CLI.JSONLog)
	ctx.FatalIfErrorf(ctx.Run(logger))
}
