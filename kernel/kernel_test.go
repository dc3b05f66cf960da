package kernel

import (
	"testing"

	"nucleus/hal/sim"
)

// newTestKernel boots a Kernel over a fresh sim.Machine with a trivial init
// program registered as "init", the way every mechanism test in
// this package gets a clean starting state.
func newTestKernel(t *testing.T, frames, terminals int) (*Kernel, *sim.Machine) {
	t.Helper()
	m := sim.New(frames, terminals, 16)
	m.RegisterProgram("init", sim.TrivialProgram(0))
	k, err := Boot(m, nil, BootConfig{InitProgram: "init", KernelTextPages: 4})
	if err != nil {
		t.Fatalf("boot: %v", err)
	}
	return k, m
}
