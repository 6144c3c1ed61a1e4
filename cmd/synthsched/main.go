package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"tasksched/internal/logx"
	"tasksched/internal/sched"
)

var (
	configPath string
	duration   float64
	tracePath  string
	logLevel   string
	clockKind  string

	rootCmd = &cobra.Command{
		Use:   "synthsched",
		Short: "Run the synth task set on the cooperative scheduler",
		Long: "Registers the audio, MIDI, UI and storage tasks of the synth on a TaskManager " +
			"and runs it for a fixed time, logging per-task statistics at the end.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yml", "scheduler config file")
	rootCmd.Flags().Float64VarP(&duration, "duration", "d", 5, "seconds to run, 0 runs until interrupted")
	rootCmd.Flags().StringVar(&tracePath, "trace", "", "write scheduler events to this CSV file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	rootCmd.Flags().StringVar(&clockKind, "clock", "system", "time source: system, sim or tick")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logx.NewConsole("error").Error("synthsched failed", logx.Err(err))
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	// Read the configuration
	cfg, err := sched.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log := logx.NewConsole(cfg.LogLevel)
	log.Debug("config loaded", logx.Any("config", cfg))

	opts := []sched.Option{sched.WithLogger(log.With(logx.String("component", "sched")))}

	src, err := newClockSource(clockKind, cfg)
	if err != nil {
		return err
	}
	defer src.stop()
	opts = append(opts, sched.WithClock(src.clock))

	var trace *sched.CSVTrace
	if tracePath != "" {
		trace, err = sched.OpenCSVTrace(tracePath)
		if err != nil {
			return err
		}
		opts = append(opts, sched.WithObserver(trace.Observe))
	}

	m := sched.New(cfg, opts...)
	if n := registerTasks(m, src.sim); n > 0 {
		log.Warn("some tasks were not registered", logx.Int("rejected", n))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		m.Stop()
	}()

	m.Start(sched.Time(duration))
	m.PrintStats()
	printSummary(cmd, m)

	if trace != nil {
		if err := trace.Close(); err != nil {
			return fmt.Errorf("trace: %w", err)
		}
	}
	return nil
}

func printSummary(cmd *cobra.Command, m *sched.TaskManager) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-4s %-28s %-9s %12s\n", "pri", "task", "state", "avg_us")
	for _, t := range m.Snapshot() {
		fmt.Fprintf(out, "%-4d %-28s %-9s %12.3f\n",
			t.Schedule.Priority, t.Name, t.State, 1e6*float64(t.Duration.Average))
	}
}
