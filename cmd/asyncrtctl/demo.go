package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gowhirl/asyncrt"
)

func demoCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run timers, a pipe-readiness race, and a guarded failure through the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := asyncrt.LevelWarn
			if verbose {
				level = asyncrt.LevelDebug
			}
			return runDemo(level)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every subsystem event at debug level")
	return cmd
}

func runDemo(level asyncrt.LogLevel) error {
	sched, err := asyncrt.NewScheduler(
		asyncrt.WithLogger(asyncrt.NewDefaultLogger(level)),
		asyncrt.WithMetrics(true),
	)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("creating pipe: %w", err)
	}
	readFd := sched.CreateFd(asyncrt.KindFifo, int(r.Fd()), "demo.read")

	asyncrt.Upon(asyncrt.TryWith(sched, func() struct{} {
		raceWithTimer(sched, readFd)
		return struct{}{}
	}), func(result asyncrt.Result[struct{}]) {
		if result.Err != nil {
			fmt.Fprintf(os.Stderr, "guarded block failed: %v\n", result.Err)
		}
	})

	go func() {
		time.Sleep(30 * time.Millisecond)
		_, _ = w.Write([]byte("x"))
		_ = w.Close()
	}()

	sched.AtShutdown(func() asyncrt.Deferred[struct{}] {
		return asyncrt.Map(readFd.Close(), func(struct{}) struct{} {
			fmt.Println("demo.read closed")
			return struct{}{}
		})
	})

	asyncrt.Upon(sched.Clock().After(200*time.Millisecond), func(struct{}) {
		m := sched.Metrics()
		fmt.Printf("poll count: %d, jobs run: %d, open fds: %d, jobs/sec: %.1f\n", m.PollCount, m.JobsTotal, m.OpenFds, m.JobsPerSec)
		sched.Shutdown(0)
	})

	return sched.Run()
}

// raceWithTimer demonstrates Choice between a pipe becoming readable and a
// timeout, printing whichever settles first.
func raceWithTimer(sched *asyncrt.Scheduler, fd *asyncrt.Fd) {
	ready := asyncrt.Map(fd.ReadyTo(asyncrt.DirRead), func(r asyncrt.ReadyToResult) string {
		return fmt.Sprintf("pipe: %s", r.Readiness)
	})
	timeout := asyncrt.Map(sched.Clock().After(2*time.Second), func(struct{}) string {
		return "pipe: timed out"
	})
	asyncrt.Upon(asyncrt.Choice(sched, []asyncrt.Deferred[string]{ready, timeout}), func(outcome string) {
		fmt.Println(outcome)
	})
}
