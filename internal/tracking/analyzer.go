package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"clipper/internal/services"
)

// Options tunes the analyzer invocation.
type Options struct {
	// Sensitivity is passed through to the analyzer (0..1).
	Sensitivity float64
	// Timeout bounds the analysis run.
	Timeout time.Duration
}

// Analyzer produces a subject-tracking timeline for a source video.
type Analyzer interface {
	Analyze(ctx context.Context, sourcePath string, opts Options) (Timeline, error)
}

// CommandAnalyzer shells out to an external analyzer binary that prints a
// JSON timeline on stdout.
type CommandAnalyzer struct {
	binary string
	args   []string
	runner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewCommandAnalyzer builds an analyzer around the configured binary.
// Extra args are passed before the source path.
func NewCommandAnalyzer(binary string, args ...string) *CommandAnalyzer {
	return &CommandAnalyzer{
		binary: strings.TrimSpace(binary),
		args:   args,
		runner: runCommand,
	}
}

// Analyze invokes the external analyzer and decodes its timeline.
func (a *CommandAnalyzer) Analyze(ctx context.Context, sourcePath string, opts Options) (Timeline, error) {
	if a.binary == "" {
		return Timeline{}, services.Wrap(services.ErrConfiguration, "tracking", "analyze", "no analyzer binary configured", nil)
	}

	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	args := append([]string{}, a.args...)
	if opts.Sensitivity > 0 {
		args = append(args, "--sensitivity", strconv.FormatFloat(opts.Sensitivity, 'f', 2, 64))
	}
	args = append(args, sourcePath)

	output, err := a.runner(runCtx, a.binary, args...)
	if err != nil {
		if runCtx.Err() != nil {
			return Timeline{}, services.Wrap(services.ErrTimeout, "tracking", "analyze", "analyzer did not finish in time", runCtx.Err())
		}
		return Timeline{}, services.Wrap(services.ErrExternalTool, "tracking", "analyze", "analyzer exited with error", err)
	}

	var timeline Timeline
	if err := json.Unmarshal(bytes.TrimSpace(output), &timeline); err != nil {
		return Timeline{}, services.Wrap(services.ErrExternalTool, "tracking", "decode timeline", "analyzer produced invalid JSON", err)
	}
	return timeline.Normalize(), nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}
