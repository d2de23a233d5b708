package engine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tbonner/vaultd/internal/errors"
	"github.com/tbonner/vaultd/internal/logging"
)

// DefaultTimeout bounds a single engine invocation.
const DefaultTimeout = 5 * time.Minute

// ExecEngine runs an external CLI in prompt mode for each item. The command
// is invoked as `<command> [args...] -p <prompt>` in the request's working
// directory, under a context deadline.
type ExecEngine struct {
	command string
	args    []string
	timeout time.Duration
	log     *logging.Logger
}

// NewExecEngine creates an ExecEngine for the given command. Extra args are
// placed before the prompt flag. A zero timeout means DefaultTimeout.
func NewExecEngine(command string, args []string, timeout time.Duration, log *logging.Logger) *ExecEngine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logging.Nop()
	}
	return &ExecEngine{command: command, args: args, timeout: timeout, log: log}
}

// Process runs the CLI once for the request's item and classifies the
// result.
func (e *ExecEngine) Process(ctx context.Context, req Request) (*Outcome, error) {
	if e.command == "" {
		return nil, fmt.Errorf("engine: no command configured")
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = BuildPrompt(req.Record)
	}

	itemID := ""
	if req.Record != nil {
		itemID = req.Record.ID
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append(append([]string{}, e.args...), "-p", prompt)
	cmd := exec.CommandContext(ctx, e.command, args...)
	cmd.Dir = req.WorkDir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	runErr := cmd.Run()
	e.log.Debug("engine invocation finished",
		"item", itemID, "command", e.command, "duration", time.Since(start), "error", runErr)

	output := out.String()
	if runErr != nil {
		return e.classifyFailure(ctx, itemID, output, runErr)
	}
	return ParseOutcome(itemID, output)
}

// classifyFailure maps a failed invocation onto the error taxonomy. Auth
// failures surface as errors so the loop halts; everything else becomes a
// retryable or permanent Outcome.
func (e *ExecEngine) classifyFailure(ctx context.Context, itemID, output string, runErr error) (*Outcome, error) {
	lower := strings.ToLower(output)

	if containsAny(lower, authMarkers) {
		return nil, errors.NewAuthError("engine invocation", fmt.Errorf("%v: %s", runErr, firstLine(output)))
	}
	if ctx.Err() == context.DeadlineExceeded || containsAny(lower, transientMarkers) {
		return &Outcome{Class: ClassTransient, Detail: firstLine(output)}, nil
	}
	if err := ctx.Err(); err != nil {
		// Cancellation means shutdown, not a verdict on the item. Surface
		// the context error so the claim stays put for the stale sweep.
		return nil, err
	}
	return &Outcome{
		Class:  ClassPermanent,
		Detail: fmt.Sprintf("%v: %s", runErr, firstLine(output)),
	}, nil
}

var transientMarkers = []string{
	"rate limit",
	"rate_limit",
	"overloaded",
	"too many requests",
	"429",
	"timeout",
	"timed out",
	"connection reset",
	"temporarily unavailable",
	"503",
	"529",
}

var authMarkers = []string{
	"authentication",
	"unauthorized",
	"invalid api key",
	"api key",
	"credential",
	"permission denied",
	"forbidden",
	"401",
	"403",
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 200
	if len(s) > max {
		s = s[:max]
	}
	return s
}
