package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/pendubot/internal/config"
	"github.com/san-kum/pendubot/internal/controllers"
	"github.com/san-kum/pendubot/internal/dynamo"
	"github.com/san-kum/pendubot/internal/integrators"
	"github.com/san-kum/pendubot/internal/mech"
	"github.com/san-kum/pendubot/internal/metrics"
	"github.com/san-kum/pendubot/internal/record"
	"github.com/san-kum/pendubot/internal/sandbox"
	"github.com/san-kum/pendubot/internal/sched"
	"github.com/san-kum/pendubot/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configFile string
	preset     string

	team       string
	controller string
	kp         float64
	kd         float64
	gain       float64
	tStep      float64
	duration   float64
	tauMax     float64
	delay      float64
	disturb    bool
	seed       int64
	fullSens   bool
	q1, q2     float64
	v1, v2     float64
	logFields  []string
	diagnostic bool

	moviePath    string
	snapshotPath string

	refType string
	refAmp  float64
	refFreq float64
	refVal  float64
	refAt   float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pendubot",
		Short: "two-link underactuated mechanism simulation lab",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".pendubot", "data directory")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a closed-loop simulation",
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run with live terminal visualization",
		RunE:  runLive,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().StringVar(&moviePath, "movie", "", "capture frames to file")
	liveCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "capture final frame to file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	compareCmd := &cobra.Command{
		Use:   "compare [integrator1] [integrator2] ...",
		Short: "compare integrators on the uncontrolled mechanism",
		Args:  cobra.MinimumNArgs(1),
		RunE:  compareIntegrators,
	}
	compareCmd.Flags().Float64Var(&tStep, "t-step", config.DefaultTStep, "control step")
	compareCmd.Flags().Float64Var(&duration, "time", config.DefaultTStop, "duration")
	compareCmd.Flags().Float64Var(&q1, "q1", 1.0, "initial first joint angle")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range config.ListPresets() {
				fmt.Println(p)
			}
		},
	}

	controllersCmd := &cobra.Command{
		Use:   "controllers",
		Short: "list builtin controllers",
		Run: func(cmd *cobra.Command, args []string) {
			for _, c := range controllers.NewRegistry().List() {
				fmt.Println(c)
			}
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, exportJSONCmd, exportCSVCmd, compareCmd, presetsCmd, controllersCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&team, "team", "", "team label for run metadata")
	cmd.Flags().StringVar(&controller, "controller", "none", "controller name")
	cmd.Flags().Float64Var(&kp, "kp", config.DefaultKp, "pd kp")
	cmd.Flags().Float64Var(&kd, "kd", config.DefaultKd, "pd kd")
	cmd.Flags().Float64Var(&gain, "gain", 2.0, "swingup gain")
	cmd.Flags().Float64Var(&tStep, "t-step", config.DefaultTStep, "control step")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultTStop, "stop time")
	cmd.Flags().Float64Var(&tauMax, "tau-max", config.DefaultTauMax, "actuator torque limit")
	cmd.Flags().Float64Var(&delay, "delay", 0, "sensor delay in control steps")
	cmd.Flags().BoolVar(&disturb, "disturb", false, "enable the passive joint disturbance")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().BoolVar(&fullSens, "full-sensors", true, "sense q1, v1, v2 in addition to t and q2")
	cmd.Flags().Float64Var(&q1, "q1", 0, "initial first joint angle")
	cmd.Flags().Float64Var(&q2, "q2", 0, "initial second joint angle")
	cmd.Flags().Float64Var(&v1, "v1", 0, "initial first joint velocity")
	cmd.Flags().Float64Var(&v2, "v2", 0, "initial second joint velocity")
	cmd.Flags().StringSliceVar(&logFields, "log-fields", nil, "controller data fields to log")
	cmd.Flags().BoolVar(&diagnostic, "diagnostics", false, "report run metrics")
	cmd.Flags().StringVar(&refType, "ref", "zero", "reference shape: zero, constant, step, sine")
	cmd.Flags().Float64Var(&refAmp, "ref-amp", 0, "sine reference amplitude")
	cmd.Flags().Float64Var(&refFreq, "ref-freq", 0, "sine reference frequency")
	cmd.Flags().Float64Var(&refVal, "ref-value", 0, "constant/step reference value")
	cmd.Flags().Float64Var(&refAt, "ref-at", 0, "step reference time")
}

// resolveConfig merges preset, config file, and flags; flags win where
// explicitly set.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("team") {
		cfg.Team = team
	}
	if f.Changed("controller") {
		cfg.Controller = controller
	}
	if f.Changed("t-step") {
		cfg.TStep = tStep
	}
	if f.Changed("time") {
		cfg.TStop = duration
	}
	if f.Changed("tau-max") {
		cfg.TauMax = tauMax
	}
	if f.Changed("delay") {
		cfg.Delay = delay
	}
	if f.Changed("disturb") {
		cfg.Disturb = disturb
	}
	if f.Changed("seed") {
		cfg.Seed = seed
	}
	if f.Changed("full-sensors") {
		cfg.FullSensors = fullSens
	}
	if f.Changed("q1") || f.Changed("q2") || f.Changed("v1") || f.Changed("v2") {
		cfg.Init = config.InitConfig{Q1: q1, Q2: q2, V1: v1, V2: v2}
	}
	if f.Changed("log-fields") {
		cfg.LogFields = logFields
	}
	if f.Changed("diagnostics") {
		cfg.Diagnostics = diagnostic
	}
	if f.Changed("ref") || f.Changed("ref-amp") || f.Changed("ref-freq") || f.Changed("ref-value") || f.Changed("ref-at") {
		cfg.Reference = config.ReferenceConfig{
			Type: refType, Amplitude: refAmp, Frequency: refFreq, Value: refVal, At: refAt,
		}
	}
	if cfg.Gains == nil {
		cfg.Gains = map[string]float64{}
	}
	if f.Changed("kp") {
		cfg.Gains["kp"] = kp
	}
	if f.Changed("kd") {
		cfg.Gains["kd"] = kd
	}
	if f.Changed("gain") {
		cfg.Gains["gain"] = gain
	}

	return cfg, nil
}

// setup builds the full simulation stack from a resolved configuration.
func setup(cfg *config.Config, display bool) (*sched.Scheduler, *mech.Model, error) {
	params := cfg.Params()
	ev, err := mech.LoadOrDerive(filepath.Join(dataDir, "cache"), params)
	if err != nil {
		return nil, nil, err
	}
	model := mech.NewFromEvaluators(params, ev)

	ctrl, err := controllers.NewRegistry().Get(cfg.Controller, cfg.Gains)
	if err != nil {
		return nil, nil, err
	}
	rt := sandbox.NewRuntime(ctrl)

	scfg, err := cfg.SchedConfig()
	if err != nil {
		return nil, nil, err
	}
	scfg.Display = display
	if display {
		scfg.MoviePath = moviePath
		scfg.SnapshotPath = snapshotPath
	}

	s, err := sched.New(model, integrators.NewRK45(), rt, scfg)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Diagnostics {
		s.AddMetric(metrics.NewEnergyDrift(model))
		s.AddMetric(metrics.NewControlEffort())
	}

	return s, model, nil
}

func save(st *record.Store, s *sched.Scheduler) (string, error) {
	cfg := s.Config()
	meta := record.RunMetadata{
		Team:         cfg.Team,
		Controller:   s.Runtime().Name(),
		Timestamp:    time.Now(),
		TStep:        cfg.TStep,
		TStop:        cfg.TStop,
		Seed:         cfg.Seed,
		Disturbed:    cfg.Disturb,
		InitDuration: s.Runtime().InitDuration().Seconds(),
		Warnings:     s.Warnings(),
	}
	return st.Save(meta, s.Log())
}

func report(s *sched.Scheduler, runID string, elapsed time.Duration) {
	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", s.Log().Steps())
	fmt.Printf("controller: %s (%s)\n", s.Runtime().Name(), s.Runtime().Status())

	if warns := s.Warnings(); len(warns) > 0 {
		fmt.Println("\nwarnings:")
		for _, w := range warns {
			fmt.Printf("  %s\n", w)
		}
	}

	if s.Config().Diagnostics {
		fmt.Println("\nmetrics:")
		for name, val := range s.MetricValues() {
			fmt.Printf("  %s: %.6f\n", name, val)
		}
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	st := record.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	s, _, err := setup(cfg, false)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s controller for %.1fs...\n", cfg.Controller, cfg.TStop)
	start := time.Now()

	_, runErr := s.Run(ctx)
	elapsed := time.Since(start)

	runID, saveErr := save(st, s)
	if saveErr != nil {
		return saveErr
	}

	report(s, runID, elapsed)
	return runErr
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	st := record.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	s, model, err := setup(cfg, true)
	if err != nil {
		return err
	}

	if moviePath != "" || snapshotPath != "" {
		var opts []viz.RenderOption
		if moviePath != "" {
			opts = append(opts, viz.WithMovie(moviePath))
		}
		if snapshotPath != "" {
			opts = append(opts, viz.WithSnapshot(snapshotPath))
		}
		s.AddObserver(viz.NewRenderer(model.Evaluators(), opts...))
	}

	start := time.Now()
	runErr := viz.RunLive(s, model.Evaluators())
	elapsed := time.Since(start)

	runID, saveErr := save(st, s)
	if saveErr != nil {
		return saveErr
	}

	report(s, runID, elapsed)
	return runErr
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := record.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTEAM\tCTRL\tTIME\tT_STOP\tT_STEP\tSEED\tDISTURBED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2fs\t%.4fs\t%d\t%v\n",
			run.ID,
			run.Team,
			run.Controller,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.TStop,
			run.TStep,
			run.Seed,
			run.Disturbed,
		)
	}

	return w.Flush()
}

var plotCaptions = []string{
	"q1 (first joint angle)",
	"q2 (second joint angle)",
	"v1 (first joint velocity)",
	"v2 (second joint velocity)",
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := record.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	states, _, err := st.LoadProcess(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("controller: %s\n", meta.Controller)
	fmt.Printf("samples: %d\n\n", len(states))

	for varIdx := 0; varIdx < len(states[0]) && varIdx < len(plotCaptions); varIdx++ {
		data := make([]float64, len(states))
		for i := range states {
			if varIdx < len(states[i]) {
				data[i] = states[i][varIdx]
			}
		}

		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(plotCaptions[varIdx]),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := record.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	states, times, err := st.LoadProcess(runID)
	if err != nil {
		return err
	}

	log := record.NewLog(nil, nil)
	log.InitDuration = meta.InitDuration
	log.Time = times
	for _, s := range states {
		if len(s) < 4 {
			continue
		}
		log.Q1 = append(log.Q1, s[0])
		log.Q2 = append(log.Q2, s[1])
		log.V1 = append(log.V1, s[2])
		log.V2 = append(log.V2, s[3])
	}

	return record.ExportJSON(os.Stdout, *meta, log)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := record.New(dataDir)
	states, times, err := st.LoadProcess(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to export")
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if err := w.Write([]string{"time", "q1", "q2", "v1", "v2"}); err != nil {
		return err
	}

	for i := range states {
		row := []string{strconv.FormatFloat(times[i], 'f', 6, 64)}
		for _, val := range states[i] {
			row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	names := args

	params := mech.DefaultParams()
	// Frictionless so energy drift isolates integrator error.
	params.B1, params.B2 = 0, 0

	fmt.Printf("comparing integrators (t_step=%.4f, duration=%.1fs, q1=%.2f)\n\n", tStep, duration, q1)
	fmt.Printf("%-10s  %-12s  %-12s  %-12s\n", "integrator", "final_q1", "energy_drift", "time_ms")
	fmt.Println(strings.Repeat("-", 52))

	for _, name := range names {
		var integ dynamo.Advancer
		switch name {
		case "rk45":
			integ = integrators.NewRK45()
		case "rk4":
			integ = integrators.NewRK4()
		case "euler":
			integ = integrators.NewEuler()
		default:
			fmt.Printf("%-10s  error: unknown integrator\n", name)
			continue
		}

		model := mech.New(params)
		rt := sandbox.NewRuntime(controllers.NewZero())

		s, err := sched.New(model, integ, rt, sched.Config{
			TStep:  tStep,
			TStop:  duration,
			TauMax: config.DefaultTauMax,
			Init:   [4]float64{q1, 0, 0, 0},
		})
		if err != nil {
			return err
		}

		drift := metrics.NewEnergyDrift(model)
		s.AddMetric(drift)

		start := time.Now()
		log, err := s.Run(context.Background())
		elapsed := time.Since(start)

		if err != nil {
			fmt.Printf("%-10s  error: %v\n", name, err)
			continue
		}

		finalQ1 := 0.0
		if n := len(log.Q1); n > 0 {
			finalQ1 = log.Q1[n-1]
		}

		fmt.Printf("%-10s  %12.6f  %12.2e  %12.2f\n",
			name, finalQ1, drift.Value(), float64(elapsed.Microseconds())/1000)
	}

	return nil
}
