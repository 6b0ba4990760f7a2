package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/mvelasco/platoon/internal/analysis"
	"github.com/mvelasco/platoon/internal/config"
	"github.com/mvelasco/platoon/internal/controllers"
	"github.com/mvelasco/platoon/internal/episode"
	"github.com/mvelasco/platoon/internal/experiment"
	"github.com/mvelasco/platoon/internal/marl"
	"github.com/mvelasco/platoon/internal/optim"
	"github.com/mvelasco/platoon/internal/ring"
	"github.com/mvelasco/platoon/internal/storage"
	"github.com/mvelasco/platoon/internal/tui"
)

var (
	dataDir    string
	configFile string
	preset     string

	controller  string
	policy      string
	accel       float64
	noise       float64
	dt          float64
	horizon     int
	warmup      int
	seed        int64
	numRuns     int
	numVehicles int
	numRL       int
	ringLength  float64
	entryEvery  int
	exportPath  string

	sweepParams []string
	sweepMetric string
	maximize    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "platoon",
		Short: "mixed-autonomy ring road simulation lab",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".platoon", "data directory")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run an episode and store the result",
		RunE:  runEpisode,
	}
	addScenarioFlags(runCmd)
	runCmd.Flags().IntVar(&numRuns, "runs", 1, "independent runs with consecutive seeds")
	runCmd.Flags().StringVar(&exportPath, "export", "", "also write the run as json to this path")

	rolloutCmd := &cobra.Command{
		Use:   "rollout [base|qmix|maddpg]",
		Short: "roll out an environment adapter with random actions",
		Args:  cobra.ExactArgs(1),
		RunE:  rolloutEnv,
	}
	addScenarioFlags(rolloutCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "watch an episode in the terminal",
		RunE:  runLive,
	}
	addScenarioFlags(liveCmd)

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

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "wave analysis of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list scenario presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := config.PresetNames()
			sort.Strings(names)
			for _, name := range names {
				cfg := config.Presets[name]()
				fmt.Printf("  %-10s %d vehicles (%d rl), %s on a %.0f m ring\n",
					name, cfg.Scenario.NumVehicles, cfg.Scenario.NumRL,
					cfg.Controller.Name, cfg.Scenario.Length)
			}
			return nil
		},
	}

	lawsCmd := &cobra.Command{
		Use:   "laws",
		Short: "list car-following laws and rollout policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := experiment.NewRegistry()
			laws := reg.ListLaws()
			sort.Strings(laws)
			fmt.Println("laws:")
			for _, name := range laws {
				fmt.Printf("  %s\n", name)
			}
			policies := reg.ListPolicies()
			sort.Strings(policies)
			fmt.Println("policies:")
			for _, name := range policies {
				fmt.Printf("  %s\n", name)
			}
			return nil
		},
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "grid search over controller gains",
		RunE:  sweepGains,
	}
	addScenarioFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepParams, "param", nil, "sweep spec name=lo:hi:n (repeatable)")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "mean_speed", "objective metric")
	sweepCmd.Flags().BoolVar(&maximize, "max", true, "maximize instead of minimize")

	rootCmd.AddCommand(runCmd, rolloutCmd, liveCmd, listCmd, plotCmd, analyzeCmd, exportCmd, presetsCmd, lawsCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addScenarioFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "scenario preset")
	cmd.Flags().StringVar(&controller, "controller", "idm", "car-following law for human vehicles")
	cmd.Flags().StringVar(&policy, "policy", "none", "rollout policy for rl vehicles")
	cmd.Flags().Float64Var(&accel, "accel", 0.5, "constant policy acceleration")
	cmd.Flags().Float64Var(&noise, "noise", 0, "gaussian acceleration noise stddev")
	cmd.Flags().Float64Var(&dt, "dt", 0.1, "timestep")
	cmd.Flags().IntVar(&horizon, "horizon", 1000, "episode length in steps")
	cmd.Flags().IntVar(&warmup, "warmup", 0, "steps before the policy acts")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano()%100000, "random seed")
	cmd.Flags().IntVar(&numVehicles, "vehicles", 22, "total vehicle count")
	cmd.Flags().IntVar(&numRL, "rl", 1, "rl vehicle count")
	cmd.Flags().Float64Var(&ringLength, "length", 230, "ring circumference in meters")
	cmd.Flags().IntVar(&entryEvery, "entry-interval", 0, "steps between staggered vehicle entries")
}

// buildConfig layers preset, config file and explicit CLI flags, the
// flags winning.
func buildConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		build, ok := config.Presets[preset]
		if !ok {
			return cfg, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.PresetNames())
		}
		cfg = build()
	}

	if configFile != "" {
		loaded, err := config.LoadConfig(configFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("controller") {
		cfg.Controller = config.ControllerConfig{Name: controller}
	}
	if cmd.Flags().Changed("noise") {
		cfg.Controller.Noise = noise
	}
	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("horizon") {
		cfg.Horizon = horizon
	}
	if cmd.Flags().Changed("warmup") {
		cfg.Warmup = warmup
	}
	if cmd.Flags().Changed("seed") || cfg.Seed == 0 {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("vehicles") {
		cfg.Scenario.NumVehicles = numVehicles
	}
	if cmd.Flags().Changed("rl") {
		cfg.Scenario.NumRL = numRL
	}
	if cmd.Flags().Changed("length") {
		cfg.Scenario.Length = ringLength
	}
	if cmd.Flags().Changed("entry-interval") {
		cfg.Scenario.EntryInterval = entryEvery
	}

	return cfg, cfg.Validate()
}

func buildPolicy(reg *experiment.Registry, seed int64) (episode.Policy, error) {
	return reg.GetPolicy(policy, map[string]float64{"accel": accel}, seed)
}

func runEpisode(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	reg := experiment.NewRegistry()
	pol, err := buildPolicy(reg, cfg.Seed)
	if err != nil {
		return err
	}

	if numRuns > 1 {
		return runEnsemble(cfg, reg)
	}

	exp := experiment.New(cfg)
	if err := exp.Setup(reg, pol, reg.DefaultMetrics()); err != nil {
		return err
	}

	fmt.Printf("running %s on a %.0f m ring, %d vehicles (%d rl)...\n",
		cfg.Controller.Name, cfg.Scenario.Length, cfg.Scenario.NumVehicles, cfg.Scenario.NumRL)
	start := time.Now()

	result, err := exp.Run(context.Background())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(cfg, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.Steps)
	if result.Crashed {
		fmt.Println("episode ended in a collision")
	}
	fmt.Println("\nmetrics:")
	printMetrics(result.Metrics)

	if exportPath != "" {
		if err := storage.ExportJSONFile(exportPath, cfg, result); err != nil {
			return err
		}
		fmt.Printf("\nexported to %s\n", exportPath)
	}

	return nil
}

func runEnsemble(cfg config.Config, reg *experiment.Registry) error {
	build := func(seed int64) (*episode.Runner, episode.Config, error) {
		runCfg := cfg
		runCfg.Seed = seed
		pol, err := buildPolicy(reg, seed)
		if err != nil {
			return nil, episode.Config{}, err
		}
		exp := experiment.New(runCfg)
		if err := exp.Setup(reg, pol, reg.DefaultMetrics()); err != nil {
			return nil, episode.Config{}, err
		}
		return exp.Runner(), episode.Config{
			Dt:      runCfg.Dt,
			Horizon: runCfg.Horizon,
			Warmup:  runCfg.Warmup,
			Seed:    seed,
		}, nil
	}

	fmt.Printf("running %d episodes with seeds %d..%d\n", numRuns, cfg.Seed, cfg.Seed+int64(numRuns)-1)
	start := time.Now()

	results, err := episode.NewEnsemble(build, numRuns, cfg.Seed).Run(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("completed in %v\n\n", time.Since(start))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tSTEPS\tCRASHED\tMEAN_SPEED\tMIN_HEADWAY")
	finals := make([]float64, 0, len(results))
	for i, res := range results {
		fmt.Fprintf(w, "%d\t%d\t%v\t%.3f\t%.3f\n",
			cfg.Seed+int64(i), res.Steps, res.Crashed,
			res.Metrics["mean_speed"], res.Metrics["min_headway"])
		finals = append(finals, res.Metrics["mean_speed"])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nmean speed across runs: %.3f ± %.3f m/s\n",
		stat.Mean(finals, nil), stat.StdDev(finals, nil))
	return nil
}

func rolloutEnv(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	cfg.EnvKind = args[0]
	cfg.Env.Horizon = cfg.Horizon
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg := experiment.NewRegistry()
	law, err := reg.GetLaw(cfg.Controller.Name, cfg.Controller.Params())
	if err != nil {
		return err
	}
	road := newRing(cfg, law)

	switch cfg.EnvKind {
	case "base":
		return rolloutBase(cfg, road, reg)
	case "qmix":
		return rolloutQMIX(cfg, road)
	case "maddpg":
		return rolloutMADDPG(cfg, road)
	}
	return fmt.Errorf("unknown env kind %q", cfg.EnvKind)
}

func rolloutBase(cfg config.Config, road *ring.Ring, reg *experiment.Registry) error {
	env := marl.New(road, cfg.Env)
	pol, err := buildPolicy(reg, cfg.Seed)
	if err != nil {
		return err
	}
	if pol == nil {
		pol = episode.Uniform(-cfg.Env.MaxDecel, cfg.Env.MaxAccel, cfg.Seed)
	}

	runner := episode.New(env, pol)
	result, err := runner.Run(context.Background(), episode.Config{
		Dt:      cfg.Dt,
		Horizon: cfg.Horizon,
		Warmup:  cfg.Warmup,
		Seed:    cfg.Seed,
	})
	if err != nil {
		return err
	}

	fmt.Printf("base rollout: %d steps, crashed=%v\n", result.Steps, result.Crashed)
	fmt.Printf("final reward: %.4f\n", last(result.Rewards))
	fmt.Printf("final mean speed: %.3f m/s\n", last(result.MeanSpeeds))
	return nil
}

func rolloutQMIX(cfg config.Config, road *ring.Ring) error {
	env := marl.NewQMIX(road, cfg.Env, cfg.QMIX)
	rng := rand.New(rand.NewSource(cfg.Seed))

	obs := env.Reset(cfg.Seed)
	var rewardSum float64
	steps := 0
	for step := 0; step < cfg.Horizon; step++ {
		actions := make(map[int]int, len(obs))
		for slot, mo := range obs {
			actions[slot] = sampleMasked(rng, mo.Mask)
		}
		env.ApplyActions(actions)
		road.Advance(cfg.Dt)
		obs = env.State()
		env.AdditionalCommand()

		rewards := env.Reward(actions, road.Crashed())
		rewardSum += rewards[0]
		steps++
		if road.Crashed() {
			break
		}
	}

	fmt.Printf("qmix rollout: %d steps, %d slots, crashed=%v\n", steps, cfg.QMIX.MaxAgents, road.Crashed())
	fmt.Printf("accumulated shared reward: %.4f\n", rewardSum)
	return nil
}

func rolloutMADDPG(cfg config.Config, road *ring.Ring) error {
	env := marl.NewMADDPG(road, cfg.Env, cfg.QMIX.MaxAgents)
	rng := rand.New(rand.NewSource(cfg.Seed))

	obs := env.Reset(cfg.Seed)
	steps := 0
	for step := 0; step < cfg.Horizon; step++ {
		actions := make(map[int][]float64, len(obs))
		for slot := range obs {
			a := -cfg.Env.MaxDecel + rng.Float64()*(cfg.Env.MaxDecel+cfg.Env.MaxAccel)
			actions[slot] = []float64{a}
		}
		env.ApplyActions(actions)
		road.Advance(cfg.Dt)
		obs = env.State()
		env.AdditionalCommand()
		steps++
		if road.Crashed() {
			break
		}
	}

	fmt.Printf("maddpg rollout: %d steps, %d slots, crashed=%v\n", steps, cfg.QMIX.MaxAgents, road.Crashed())
	return nil
}

// sampleMasked picks uniformly among the actions the mask allows.
func sampleMasked(rng *rand.Rand, mask []float64) int {
	allowed := make([]int, 0, len(mask))
	for i, m := range mask {
		if m > 0 {
			allowed = append(allowed, i)
		}
	}
	if len(allowed) == 0 {
		return 0
	}
	return allowed[rng.Intn(len(allowed))]
}

func newRing(cfg config.Config, law *controllers.Law) *ring.Ring {
	sc := cfg.Scenario
	return ring.New(ring.Params{
		Length:        sc.Length,
		NumVehicles:   sc.NumVehicles,
		NumRL:         sc.NumRL,
		VehLength:     sc.VehLength,
		MaxSpeed:      sc.MaxSpeed,
		EntryInterval: sc.EntryInterval,
		PosJitter:     sc.PosJitter,
		Law: func() *controllers.Law {
			l := *law
			return &l
		},
	}, cfg.Seed)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	reg := experiment.NewRegistry()
	pol, err := buildPolicy(reg, cfg.Seed)
	if err != nil {
		return err
	}

	exp := experiment.New(cfg)
	if err := exp.Setup(reg, pol, nil); err != nil {
		return err
	}

	m := tui.NewLive(cfg, exp.Ring(), exp.Env(), pol)
	p := tea.NewProgram(m)
	_, err = p.Run()
	return err
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCONTROLLER\tTIME\tVEHICLES\tRL\tSTEPS\tCRASHED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%v\n",
			run.ID,
			run.Controller,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Vehicles,
			run.RLVehicles,
			run.Steps,
			run.Crashed,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	series, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}
	if len(series.MeanSpeeds) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("controller: %s, %d vehicles (%d rl)\n", meta.Controller, meta.Vehicles, meta.RLVehicles)
	fmt.Printf("samples: %d\n\n", len(series.MeanSpeeds))

	fmt.Println(asciigraph.Plot(series.MeanSpeeds,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("mean speed (m/s)")))
	fmt.Println()
	fmt.Println(asciigraph.Plot(series.Rewards,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("reward")))

	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	series, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}
	if len(series.MeanSpeeds) < 4 {
		return fmt.Errorf("not enough data")
	}

	fmt.Printf("wave analysis: %s\n", meta.ID)
	fmt.Printf("controller: %s\n\n", meta.Controller)

	ps := analysis.PowerSpectrum(analysis.Detrend(series.MeanSpeeds))
	plotData := ps
	if len(plotData) > len(ps)/4 && len(ps) >= 16 {
		plotData = ps[:len(ps)/4]
	}
	fmt.Println(asciigraph.Plot(plotData,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption("power spectrum of mean speed")))
	fmt.Println()

	period := analysis.DominantPeriod(series.MeanSpeeds, meta.Dt)
	if period > 0 {
		fmt.Printf("dominant wave period: %.2f s\n", period)
	} else {
		fmt.Println("no dominant oscillation found")
	}
	fmt.Printf("wave amplitude: %.3f m/s\n", analysis.WaveAmplitude(series.MeanSpeeds))

	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func sweepGains(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if len(sweepParams) == 0 {
		return fmt.Errorf("at least one --param name=lo:hi:n is required")
	}

	names := make([]string, 0, len(sweepParams))
	ranges := make([][]float64, 0, len(sweepParams))
	for _, spec := range sweepParams {
		name, vals, err := parseSweepSpec(spec)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}

	reg := experiment.NewRegistry()
	build := func(params map[string]float64) (*experiment.Experiment, error) {
		runCfg := cfg
		runCfg.Controller = withGains(runCfg.Controller, params)

		exp := experiment.New(runCfg)
		pol, err := buildPolicy(reg, runCfg.Seed)
		if err != nil {
			return nil, err
		}
		if err := exp.Setup(reg, pol, reg.DefaultMetrics()); err != nil {
			return nil, err
		}
		return exp, nil
	}

	total := 1
	for _, r := range ranges {
		total *= len(r)
	}
	fmt.Printf("sweeping %v over %d combinations, objective %s\n", names, total, sweepMetric)
	start := time.Now()

	gs := optim.NewGridSearch(names, ranges)
	gs.Maximize = maximize
	best, val, err := gs.Search(context.Background(), build, sweepMetric)
	if err != nil {
		return err
	}
	fmt.Printf("completed in %v\n\n", time.Since(start))

	if best == nil {
		return fmt.Errorf("no combination produced the metric %q", sweepMetric)
	}
	fmt.Printf("best %s: %.4f\n", sweepMetric, val)
	for _, name := range names {
		fmt.Printf("  %s = %.4f\n", name, best[name])
	}
	return nil
}

// withGains overwrites the named gains on a controller config.
func withGains(c config.ControllerConfig, params map[string]float64) config.ControllerConfig {
	for name, val := range params {
		switch name {
		case "kd":
			c.KD = val
		case "kv":
			c.KV = val
		case "kc":
			c.KC = val
		case "v_des":
			c.VDes = val
		case "k1":
			c.K1 = val
		case "k2":
			c.K2 = val
		case "h":
			c.H = val
		case "tau":
			c.Tau = val
		case "alpha":
			c.Alpha = val
		case "beta":
			c.Beta = val
		case "h_st":
			c.HSt = val
		case "h_go":
			c.HGo = val
		case "v_max":
			c.VMax = val
		case "adaptation":
			c.Adaptation = val
		case "v0":
			c.V0 = val
		case "t":
			c.T = val
		case "a":
			c.A = val
		case "b":
			c.B = val
		case "delta":
			c.Delta = val
		case "s0":
			c.S0 = val
		}
	}
	return c
}

// parseSweepSpec parses "name=lo:hi:n" into n evenly spaced values.
func parseSweepSpec(spec string) (string, []float64, error) {
	name, rest, ok := strings.Cut(spec, "=")
	if !ok {
		return "", nil, fmt.Errorf("bad sweep spec %q, want name=lo:hi:n", spec)
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 3 {
		return "", nil, fmt.Errorf("bad sweep range %q, want lo:hi:n", rest)
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return "", nil, fmt.Errorf("bad sweep low %q: %w", parts[0], err)
	}
	hi, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", nil, fmt.Errorf("bad sweep high %q: %w", parts[1], err)
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil || n < 1 {
		return "", nil, fmt.Errorf("bad sweep count %q", parts[2])
	}
	return name, optim.Range(lo, hi, n), nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

func last(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}
