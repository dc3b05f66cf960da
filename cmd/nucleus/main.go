// Command nucleus boots the teaching kernel against either the
// deterministic simulated machine or the real host machine, per the flags
// and optional YAML manifest described in.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"nucleus/hal/config"
	"nucleus/hal/host"
	"nucleus/hal/sim"
	"nucleus/kernel"
	"nucleus/kernel/mm"
)

const tickInterval = 10 * time.Millisecond

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "nucleus:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to a YAML boot manifest")
		initProg   = flag.String("init", "", "initial program path/name (overrides manifest)")
		memBytes   = flag.Uint64("mem", 0, "total simulated physical memory in bytes (overrides manifest)")
		terminals  = flag.Int("terminals", 0, "number of terminals (overrides manifest)")
		useSim     = flag.Bool("sim", false, "run against the deterministic simulated machine instead of the host")
	)
	flag.Parse()

	manifest := config.Manifest{
		TotalMemory: 8 << 20,
		Terminals:   1,
		InitProgram: "test/init",
		Backend:     "host",
	}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		manifest = config.MergeDefaults(loaded, manifest)
	}
	if *initProg != "" {
		manifest.InitProgram = *initProg
	}
	if *memBytes != 0 {
		manifest.TotalMemory = *memBytes
	}
	if *terminals != 0 {
		manifest.Terminals = *terminals
	}
	if *useSim {
		manifest.Backend = "sim"
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "nucleus")
	frames := int(manifest.TotalMemory / uint64(mm.PageSize))

	bootCfg := kernel.BootConfig{
		InitProgram:     manifest.InitProgram,
		InitArgv:        manifest.InitArgv,
		KernelTextPages: 64,
		KernelHeapPages: 16,
	}

	if manifest.Backend == "sim" {
		return runSim(log, frames, manifest.Terminals, bootCfg)
	}
	return runHost(log, frames, manifest.Terminals, bootCfg)
}

func runSim(log *slog.Logger, frames, terminalCount int, cfg kernel.BootConfig) (err error) {
	m := sim.New(frames, terminalCount, 64)
	m.RegisterProgram(cfg.InitProgram, sim.TrivialProgram(0))
	k, bootErr := kernel.Boot(m, log, cfg)
	if bootErr != nil {
		return fmt.Errorf("boot: %s", bootErr.Error())
	}
	defer func() {
		if r := recover(); r != nil {
			if aborted, msg := m.Aborted(); aborted {
				log.Info("machine halted", "msg", msg)
				err = nil
				return
			}
			panic(r)
		}
	}()
	driveLoop(k, terminalCount)
	return nil
}

func runHost(log *slog.Logger, frames, terminalCount int, cfg kernel.BootConfig) error {
	m := host.New(frames, 64, terminalCount)
	if err := m.EnterRawMode(); err != nil {
		return err
	}
	defer m.RestoreTerminal()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	g := m.PumpStdin(ctx)

	k, err := kernel.Boot(m, log, cfg)
	if err != nil {
		return fmt.Errorf("boot: %s", err.Error())
	}
	driveLoop(k, terminalCount)
	return g.Wait()
}

// driveLoop is the host-side stand-in for "the simulated hardware clock and
// trap lines": since nothing in this repository emulates real user-mode
// instruction execution, the loop's job is only to fire the clock, drain
// any buffered terminal input, and complete any in-flight transmit -- every
// trap that actually changes kernel state (syscalls) arrives through
// HandleSyscall, invoked by whatever produces user traps in a given
// backend. It runs until the machine aborts: the host backend's Abort exits
// the process, and the sim backend's Abort panics, which runSim recovers.
func driveLoop(k *kernel.Kernel, terminalCount int) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for range ticker.C {
		k.Clock()
		for tty := 0; tty < terminalCount; tty++ {
			k.HandleTTYReceive(tty)
			k.HandleTTYTransmit(tty)
		}
	}
}
