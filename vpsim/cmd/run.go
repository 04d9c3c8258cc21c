package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/pkg/browser"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/vpsim/datarecording"
	"github.com/sarchlab/vpsim/examples/countdown"
	"github.com/sarchlab/vpsim/launcher"
	"github.com/sarchlab/vpsim/monitoring"
	"github.com/sarchlab/vpsim/sim/timing"
	"github.com/sarchlab/vpsim/tracing"
)

type runOptions struct {
	period   int64
	count    int
	exitCode int

	until      int64
	step       int64
	async      bool
	signalStop bool

	monitor     bool
	port        int
	openMonitor bool
	hold        bool

	record string
	trace  bool
	vcd       string
	stats     bool
	logEvents bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the countdown demo platform.",
	Long: "Run the countdown demo platform. Without --until or --step the " +
		"simulation runs until the program exits.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		code, err := runSimulation(cmd.Context(), runOpts,
			cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		exitCode = code

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.Int64Var(&runOpts.period, "period", 1000, "Time between two timer ticks")
	f.IntVar(&runOpts.count, "count", 10, "Number of ticks before the program exits")
	f.IntVar(&runOpts.exitCode, "exit-code", 0, "Exit code of the simulated program")
	f.Int64Var(&runOpts.until, "until", -1, "Stop at this time instead of running to the end")
	f.Int64Var(&runOpts.step, "step", 0, "Advance in steps of this length")
	f.BoolVar(&runOpts.async, "async", envBool("VPSIM_ASYNC"),
		"Queue requests without waiting for them")
	f.BoolVar(&runOpts.signalStop, "signal-stop", false, "Stop the engine on interrupt")
	f.BoolVar(&runOpts.monitor, "monitor", false, "Serve the monitoring API")
	f.IntVar(&runOpts.port, "port", envInt("VPSIM_MONITOR_PORT", 0),
		"Port of the monitoring server")
	f.BoolVar(&runOpts.openMonitor, "open-monitor", false,
		"Open the monitor in a browser")
	f.BoolVar(&runOpts.hold, "hold", false,
		"Keep the monitor serving until interrupted")
	f.StringVar(&runOpts.record, "record", envString("VPSIM_RECORD_DB", ""),
		"Record the execution into this SQLite database (without extension)")
	f.BoolVar(&runOpts.trace, "trace", envBool("VPSIM_TRACE"),
		"Print a span per engine request")
	f.StringVar(&runOpts.vcd, "vcd", "",
		"Print the events of the components whose path matches this regexp")
	f.BoolVar(&runOpts.stats, "stats", false,
		"Print the number of events each component handled")
	f.BoolVar(&runOpts.logEvents, "log-events", envBool("VPSIM_LOG_EVENTS"),
		"Log every dispatched event and every halt to stderr")
}

func (o runOptions) validate() error {
	if o.period <= 0 {
		return errors.Errorf("--period must be positive, got %d", o.period)
	}

	if o.step < 0 {
		return errors.Errorf("--step must not be negative, got %d", o.step)
	}

	return nil
}

// runSimulation builds the platform, drives it as the options say, and
// returns the exit code of the simulated program.
func runSimulation(
	ctx context.Context,
	opts runOptions,
	stdout, stderr io.Writer,
) (int, error) {
	if err := opts.validate(); err != nil {
		return 0, err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	tp, shutdown, err := newTracerProvider(ctx, opts.trace, stderr)
	if err != nil {
		return 0, errors.Wrap(err, "failed to set up tracing")
	}
	defer func() { _ = shutdown(context.Background()) }()

	platform := countdown.MakeBuilder().
		WithPeriod(timing.VTime(opts.period)).
		WithCount(opts.count).
		WithExitCode(opts.exitCode).
		WithLogger(log.New(stdout, "", 0)).
		Build()

	metrics := monitoring.NewMetrics()
	b := launcher.MakeBuilder().
		WithPlatform(platform).
		WithLogger(log.New(stderr, "vpsim: ", log.LstdFlags)).
		WithTracerProvider(tp).
		WithHook(metrics).
		WithNotifier(metrics)

	stats := tracing.NewStepCountTracer()
	if opts.stats {
		b = b.WithHook(stats)
	}

	if opts.logEvents {
		b = b.WithHook(timing.NewEventLogger(log.New(stderr, "", 0)))
	}

	if opts.async {
		b = b.WithAsync()
	}

	if opts.signalStop {
		b = b.WithSignalStop()
	}

	if opts.record != "" {
		recorder := datarecording.New(opts.record)
		defer recorder.Close()

		b = b.WithNotifier(datarecording.NewHaltRecorder(recorder))
	}

	l := b.Build()
	if err := l.Open(); err != nil {
		return 0, err
	}
	defer l.Close()

	if opts.vcd != "" {
		if err := l.EventAdd(opts.vcd, true); err != nil {
			return 0, err
		}

		if err := l.VCDBind(&eventPrinter{w: stdout}); err != nil {
			return 0, err
		}
	}

	if err := l.Start(); err != nil {
		return 0, err
	}

	if opts.monitor {
		m := monitoring.NewMonitor(l).
			WithPortNumber(opts.port).
			WithMetrics(metrics)

		url, err := m.StartServer()
		if err != nil {
			return 0, err
		}
		defer m.Shutdown(context.Background())

		if opts.openMonitor {
			if err := browser.OpenURL(url); err != nil {
				fmt.Fprintf(stderr, "cannot open browser: %v\n", err)
			}
		}

		bar := m.CreateProgressBar("ticks", uint64(max(opts.count, 0)))
		reported := uint64(0)
		err = l.RegisterExecNotifier(timing.NotifierFunc(func(timing.VTime) error {
			fired := uint64(len(platform.Logger.Entries()))
			bar.IncrementFinished(fired - reported)
			reported = fired

			return nil
		}))
		if err != nil {
			return 0, err
		}

		if opts.hold {
			defer holdUntilInterrupted(ctx, stderr)
		}
	}

	if err := drive(l, opts); err != nil {
		return 0, err
	}

	if opts.stats {
		printStats(stdout, stats)
	}

	if l.State() != launcher.StateFinished {
		fmt.Fprintf(stdout, "stopped at %d\n", l.CurrentTime())
		return 0, nil
	}

	code, err := l.Join()
	if err != nil {
		return 0, err
	}

	fmt.Fprintf(stdout, "exited with code %d at %d\n", code, l.CurrentTime())

	return code, nil
}

func drive(l *launcher.Launcher, opts runOptions) error {
	target := timing.VTime(opts.until)

	switch {
	case opts.step > 0:
		for l.State() != launcher.StateFinished {
			if target >= 0 && l.CurrentTime() >= target {
				return nil
			}

			if err := wait(l)(l.Step(timing.VTime(opts.step))); err != nil {
				return err
			}
		}

		return nil
	case target >= 0:
		return wait(l)(l.StepUntil(target))
	default:
		if err := l.Run(); err != nil {
			return err
		}

		_, err := l.WaitStopped()

		return err
	}
}

// wait completes a step request. In async mode the outcome is collected with
// WaitStopped.
func wait(l *launcher.Launcher) func(timing.VTime, error) error {
	return func(_ timing.VTime, err error) error {
		if err != nil {
			return err
		}

		_, err = l.WaitStopped()

		return err
	}
}

func holdUntilInterrupted(ctx context.Context, w io.Writer) {
	fmt.Fprintln(w, "Simulation done, monitor still serving. Press Ctrl+C to exit.")

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	<-ctx.Done()
}

type eventPrinter struct {
	w io.Writer
}

func (p *eventPrinter) Trace(now timing.VTime, path string, payload any) {
	fmt.Fprintf(p.w, "%d, %T -> %s\n", now, payload, path)
}

func printStats(w io.Writer, stats *tracing.StepCountTracer) {
	for _, name := range stats.GetStepNames() {
		fmt.Fprintf(w, "%-12s %8d events %12s\n",
			name, stats.GetStepCount(name), stats.BusyTime(name))
	}
}
