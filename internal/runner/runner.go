package runner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/kplau1128/tools-n-utilies/internal/model"
)

// waitGrace bounds how long a finished or killed run may keep its merged
// output stream open before the wait is forced to return.
const waitGrace = time.Second

// Run spawns the script's command with one argument combination as a child
// process, waits for completion and captures stdout and stderr merged into a
// single stream, preserving emission order as the OS delivers it.
//
// There is no implicit timeout. A positive timeout wraps the wait with
// context.WithTimeout; a process still running at the deadline is killed and
// its exit status recorded as the OS reports it.
//
// A command that cannot be launched at all produces a record with
// model.LaunchFailureExitCode and a diagnostic string in Output instead of an
// error, a single unlaunchable script must not abort the batch.
func Run(ctx context.Context, spec model.ScriptSpec, combination []string, timeout time.Duration) model.ExecutionRecord {
	argv := spec.Argv(combination)
	rec := model.ExecutionRecord{
		Script: spec.ID,
		Args:   argv,
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, spec.Command, argv...)
	cmd.Env = environ(spec.Env)
	// Killing the direct child does not release the merged output pipe when a
	// grandchild inherited it. WaitDelay bounds the wait after the child exits
	// or the context fires, so a shell wrapper leaving a process behind cannot
	// block the batch.
	cmd.WaitDelay = waitGrace

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	slog.DebugContext(ctx, "script started", "script", spec.ID, "command", spec.Command, "args", argv)

	rec.StartedAt = time.Now().UTC()
	err := cmd.Run()
	rec.Duration = time.Since(rec.StartedAt)

	switch {
	case err == nil:
		rec.ExitCode = 0
		rec.Output = buf.String()
	case cmd.ProcessState != nil:
		// started, but exited non-zero or was killed
		rec.ExitCode = cmd.ProcessState.ExitCode()
		rec.Output = buf.String()
	default:
		rec.ExitCode = model.LaunchFailureExitCode
		rec.LaunchFailure = true
		rec.Output = fmt.Sprintf("launching %s: %v", spec.Command, err)
		slog.WarnContext(ctx, "script launch failed", "script", spec.ID, "command", spec.Command, "error", err)
	}

	slog.DebugContext(ctx, "script finished",
		"script", spec.ID,
		"exit_code", rec.ExitCode,
		"elapsed", rec.Duration.String(),
	)
	return rec
}

// environ extends the current process environment with the per script
// overrides. Values starting with $ are expanded from the environment. Keys
// are sorted so repeated runs see an identical environment.
func environ(extra map[string]string) []string {
	env := os.Environ()
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		v := extra[k]
		if strings.HasPrefix(v, "$") {
			v = os.ExpandEnv(v)
		}
		env = append(env, k+"="+v)
	}
	return env
}
