package main

import (
	"os"
	"os/exec"
	"strconv"

	"github.com/pimalaya/timerd/config"
	"github.com/pimalaya/timerd/pkg/hook"
	"github.com/pimalaya/timerd/pkg/timer"
)

// commandHook runs c.Command with c.Args whenever its registered event
// fires. The snapshot that triggered it is passed via environment
// variables rather than argv, so a fixed set of configured args can be
// reused across every firing.
func commandHook(c config.HookCommand) hook.Func[timer.Snapshot] {
	return func(snap timer.Snapshot) error {
		cmd := exec.Command(c.Command, c.Args...)
		cmd.Env = append(os.Environ(),
			"TIMERD_STATE="+snap.State.String(),
			"TIMERD_CYCLE="+snap.Cycle.Name,
			"TIMERD_ELAPSED_SECONDS="+strconv.FormatUint(uint64(snap.ElapsedSeconds), 10),
			"TIMERD_CYCLE_DURATION_SECONDS="+strconv.FormatUint(uint64(snap.Cycle.DurationSeconds), 10),
		)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return hook.Recoverablef("hook command %q: %w", c.Command, err)
		}
		return nil
	}
}
