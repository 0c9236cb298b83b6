package hook_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pimalaya/timerd/pkg/hook"
)

type snapshot struct {
	ElapsedSeconds int
}

func TestRegistryFiresInInsertionOrder(t *testing.T) {
	var reg hook.Registry[snapshot]
	var order []int

	reg.Register(hook.Started, hook.Func[snapshot](func(snapshot) error {
		order = append(order, 1)
		return nil
	}))
	reg.Register(hook.Started, hook.Func[snapshot](func(snapshot) error {
		order = append(order, 2)
		return nil
	}))

	for _, h := range reg.For(hook.Started) {
		require.NoError(t, h.Call(snapshot{}))
	}

	assert.Equal(t, []int{1, 2}, order)
}

func TestRegistryForUnregisteredEventReturnsNil(t *testing.T) {
	var reg hook.Registry[snapshot]
	assert.Nil(t, reg.For(hook.Paused))
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "Started", hook.StartedEvent().String())
	assert.Equal(t, "BeginCycle{work}", hook.BeginCycleEvent("work").String())
	assert.Equal(t, "EndCycle{rest}", hook.EndCycleEvent("rest").String())
}

func TestErrorSeverity(t *testing.T) {
	err := hook.Recoverablef("bad input: %w", errors.New("oops"))
	assert.Equal(t, hook.Recoverable, err.Severity)
	assert.ErrorContains(t, err, "oops")

	fatal := hook.Fatalf("disk full")
	assert.Equal(t, hook.Fatal, fatal.Severity)
}
