package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gocarina/gocsv"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/swimsim/internal/config"
	"github.com/san-kum/swimsim/internal/dynamo"
	"github.com/san-kum/swimsim/internal/metrics"
	"github.com/san-kum/swimsim/internal/sim"
	"github.com/san-kum/swimsim/internal/storage"
	"github.com/san-kum/swimsim/internal/viz"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	outputDir string
	fromStdin bool
	resume    bool
	progress  bool
	siUnits   bool
	logLevel  string

	logger = logrus.New()
)

// main registers the commands and flags and executes the root command. It
// exits with status 1 if the command returns an error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "swimsim <parameter_file>",
		Short:         "Fokker-Planck simulation of magnetic microswimmers",
		Args:          cobra.ExactArgs(1),
		RunE:          runSimulation,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Flags().StringVarP(&outputDir, "output_directory", "o", ".", "directory for the run output")
	rootCmd.Flags().BoolVarP(&fromStdin, "init", "i", false, "read the initial particles from stdin")
	rootCmd.Flags().BoolVarP(&resume, "resume", "r", false, "resume from environment.init_file")
	rootCmd.Flags().BoolVarP(&progress, "progress", "p", false, "show a progress display")
	rootCmd.Flags().BoolVar(&siUnits, "si", false, "parameter file is in SI units")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override environment.log_level")
	rootCmd.MarkFlagsMutuallyExclusive("init", "resume")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("available presets:")
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
		},
	}

	writePresetCmd := &cobra.Command{
		Use:   "write-preset <name> <file>",
		Short: "write a preset as a parameter file",
		Args:  cobra.ExactArgs(2),
		RunE:  writePreset,
	}

	plotCmd := &cobra.Command{
		Use:   "plot <metrics.csv>",
		Short: "plot the order parameters of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotMetrics,
	}

	indexCmd := &cobra.Command{
		Use:   "index <index.csv>",
		Short: "list the records of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  listIndex,
	}

	rootCmd.AddCommand(presetsCmd, writePresetCmd, plotCmd, indexCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.WithError(err).Error("swimsim failed")
		os.Exit(1)
	}
}

func setupLogger(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return &dynamo.ConfigError{Field: "environment.log_level", Reason: err.Error()}
	}
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if siUnits {
		return config.LoadSI(path)
	}
	return config.Load(path)
}

func initType(cfg *config.Config) (sim.InitType, error) {
	switch {
	case fromStdin:
		return sim.InitStdin, nil
	case resume && cfg.Environment.InitFile == "":
		return 0, &dynamo.ConfigError{Field: "environment.init_file", Reason: "--resume needs a snapshot"}
	case resume:
		return sim.InitResume, nil
	case cfg.Environment.InitFile == "":
		return sim.InitDistribution, nil
	}
	return sim.InitFile, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Environment.LogLevel = logLevel
	}
	if err := setupLogger(cfg.Environment.LogLevel); err != nil {
		return err
	}
	it, err := initType(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := sim.Options{
		Config:    cfg,
		Init:      it,
		OutputDir: outputDir,
		Input:     os.Stdin,
		Logger:    logger,
	}

	var res *sim.Result
	if progress {
		res, err = runWithProgress(ctx, opts)
	} else {
		res, err = sim.Run(ctx, opts)
	}
	if res != nil {
		printSummary(res)
	}
	return err
}

// runWithProgress runs the simulation in the background while the progress
// display owns the terminal. Log output goes to swimsim.log in the output
// directory meanwhile.
func runWithProgress(ctx context.Context, opts sim.Options) (*sim.Result, error) {
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	logFile, err := os.OpenFile(filepath.Join(opts.OutputDir, "swimsim.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	defer logFile.Close()
	logger.SetOutput(logFile)
	defer logger.SetOutput(os.Stderr)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := opts.Config
	m := viz.NewProgressModel(cfg.Environment.Prefix, uint64(cfg.Simulation.NumberOfTimesteps), cfg.Simulation.BoxSize, cancel)
	var teaOpts []tea.ProgramOption
	if opts.Init == sim.InitStdin {
		// stdin carries the particles
		teaOpts = append(teaOpts, tea.WithInput(nil))
	}
	p := tea.NewProgram(m, teaOpts...)

	opts.OnProgress = func(pr sim.Progress) { p.Send(viz.ProgressMsg(pr)) }

	var (
		res    *sim.Result
		runErr error
		done   = make(chan struct{})
	)
	go func() {
		defer close(done)
		res, runErr = sim.Run(ctx, opts)
		p.Send(viz.DoneMsg{Result: res, Err: runErr})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return res, fmt.Errorf("progress display: %w", err)
	}
	<-done
	return res, runErr
}

func printSummary(res *sim.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "output:\t%s\n", res.Layout.Dir)
	fmt.Fprintf(w, "init:\t%s\n", res.Init)
	fmt.Fprintf(w, "timesteps:\t%d -> %d (%d steps)\n", res.FirstTimestep, res.FinalTimestep, res.StepsTaken())
	fmt.Fprintf(w, "elapsed:\t%s\n", res.Elapsed.Round(time.Millisecond))
	if secs := res.Elapsed.Seconds(); secs > 0 {
		fmt.Fprintf(w, "throughput:\t%.1f steps/s\n", float64(res.StepsTaken())/secs)
	}
	fmt.Fprintf(w, "blobs written:\t%d (%d bytes)\n", res.Stats.Written, res.Stats.BytesWritten)
	fmt.Fprintf(w, "queue blocked:\t%d times, %s\n", res.Stats.Blocked, res.Stats.BlockedFor.Round(time.Millisecond))
	if res.Metrics.Timestep > 0 {
		fmt.Fprintf(w, "polar order:\t%.4f at timestep %d\n", res.Metrics.PolarOrder, res.Metrics.Timestep)
	}
	if res.Interrupted {
		fmt.Fprintf(w, "interrupted:\tyes, snapshot %s\n", res.Layout.Snapshot(res.FinalTimestep))
	}
	w.Flush()
}

func writePreset(cmd *cobra.Command, args []string) error {
	cfg := config.GetPreset(args[0])
	if cfg == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
	}
	if err := config.Save(args[1], cfg); err != nil {
		return err
	}
	fmt.Printf("wrote preset %s to %s\n", args[0], args[1])
	return nil
}

func plotMetrics(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	var rows []metrics.Row
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return err
	}
	if len(rows) < 2 {
		return fmt.Errorf("need at least two rows to plot, got %d", len(rows))
	}

	series := []struct {
		caption string
		value   func(metrics.Row) float64
	}{
		{"polar order", func(r metrics.Row) float64 { return r.PolarOrder }},
		{"nematic order", func(r metrics.Row) float64 { return r.NematicOrder }},
		{"mean cos(theta)", func(r metrics.Row) float64 { return r.MeanAlignment }},
		{"mean theta", func(r metrics.Row) float64 { return r.MeanTheta }},
	}

	fmt.Printf("rows: %d (timestep %d to %d)\n\n", len(rows), rows[0].Timestep, rows[len(rows)-1].Timestep)
	data := make([]float64, len(rows))
	for _, s := range series {
		for i, r := range rows {
			data[i] = s.value(r)
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(s.caption),
		))
		fmt.Println()
	}
	return nil
}

func listIndex(cmd *cobra.Command, args []string) error {
	entries, err := storage.ReadIndex(args[0])
	if err != nil {
		return err
	}
	return writeIndex(os.Stdout, entries)
}

func writeIndex(out io.Writer, entries []storage.IndexEntry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTEP\tOFFSET\tSIZE\tKINDS")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\n", e.Timestep, e.Offset, e.Size, e.Kinds)
	}
	return w.Flush()
}
