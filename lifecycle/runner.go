package lifecycle

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"

	"ember/emberr"
)

// ExecRunner runs external tools through os/exec. Every invocation takes
// the caller's context so the boot engine's timeout race is never blocked
// behind a wedged mount or archive process.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner creates the production runner.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{logger: logger}
}

// Run executes name with args and returns stdout. Non-zero exits are
// reported as ExternalToolFailure with the captured stderr in the message.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running tool", "tool", name, "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), emberr.NewToolFailure("exec."+name, name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
