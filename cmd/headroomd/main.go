package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/headroom/headroom/internal/config"
	"github.com/headroom/headroom/internal/logging"
	"github.com/headroom/headroom/internal/metrics"
	"github.com/headroom/headroom/internal/mock"
	"github.com/headroom/headroom/internal/monitor"
	"github.com/headroom/headroom/internal/sampler"
	"github.com/headroom/headroom/internal/snapshot"
	"github.com/headroom/headroom/internal/ws"
	"github.com/spf13/cobra"
)

const (
	defaultConfigPath = "headroom.yaml"
	defaultMockLimit  = 1 << 30
	healthPollPeriod  = time.Second
)

// errNoHeadroom makes check exit non-zero without printing usage.
var errNoHeadroom = errors.New("insufficient headroom")

var rootCmd = &cobra.Command{
	Use:           "headroomd",
	Short:         "headroomd - memory severity monitor",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel == "" {
			return nil
		}
		l, ok := logging.ParseLevel(logLevel)
		if !ok {
			return fmt.Errorf("unknown log level %q", logLevel)
		}
		logging.SetLevel(l)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitor with its HTTP and WebSocket surface",
	RunE:  runServe,
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Print one snapshot as JSON",
	RunE:  runSample,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Exit 0 if --bytes fits in the current headroom, 1 otherwise",
	RunE:  runCheck,
}

var (
	configPath  string
	logLevel    string
	pidFlag     int
	portFlag    int
	mockPattern string
	checkBytes  uint64
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().IntVar(&pidFlag, "pid", 0, "Process to watch (overrides monitor.pid)")
	rootCmd.PersistentFlags().StringVar(&mockPattern, "mock", "", fmt.Sprintf("Use a synthetic sampler %v", mock.Patterns()))
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Override server port")
	checkCmd.Flags().Uint64Var(&checkBytes, "bytes", 0, "Allocation size to check")
	checkCmd.MarkFlagRequired("bytes")
	rootCmd.AddCommand(serveCmd, sampleCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errNoHeadroom) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadConfig reads --config. The default path may be absent; an explicit
// one must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath, !cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}
	if pidFlag > 0 {
		cfg.Monitor.PID = pidFlag
	}
	if portFlag > 0 {
		cfg.Server.Port = portFlag
	}
	return cfg, nil
}

// buildOptions turns cfg into monitor options, swapping in a synthetic
// sampler when pattern is set. The returned generator is nil unless mocking.
func buildOptions(cfg *config.Config, pattern string) (monitor.Options, *mock.Generator, error) {
	opts, err := monitor.OptionsFromConfig(cfg)
	if err != nil {
		return opts, nil, err
	}
	if pattern == "" {
		return opts, nil, nil
	}
	limit := cfg.Limit.LimitBytes
	if limit == 0 {
		limit = defaultMockLimit
	}
	gen, err := mock.NewGenerator(pattern, limit)
	if err != nil {
		opts.Pressure.Close()
		return opts, nil, err
	}
	opts.Sampler = gen
	return opts, gen, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, gen, err := buildOptions(cfg, mockPattern)
	if err != nil {
		return err
	}
	opts.Observer = metrics.NewMonitorObserver()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if gen != nil {
		logging.Info("Starting with mock sampler %q", gen.Name())
		gen.Start(ctx)
	} else {
		logging.Info("Watching pid %d", cfg.Monitor.PID)
	}

	m := monitor.New(opts)
	monitor.SetDefault(m)
	defer monitor.SetDefault(nil)

	broadcaster := ws.NewBroadcaster(m, cfg.Monitor.SnapshotInterval, healthPollPeriod, cfg.Server.MaxConnections)
	defer broadcaster.Stop()

	server := ws.NewServer(cfg.Server, m, broadcaster)
	if err := ws.ListenAndServe(ctx, cfg.Server.Host, cfg.Server.Port, server.Handler()); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logging.Info("Shutting down...")
	return nil
}

// oneShot builds a monitor for a single reading and closes it afterwards.
func oneShot(cmd *cobra.Command, fn func(m *monitor.Monitor) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, _, err := buildOptions(cfg, mockPattern)
	if err != nil {
		return err
	}
	m := monitor.New(opts)
	defer m.Close()
	return fn(m)
}

type sampleOutput struct {
	Snapshot snapshot.Snapshot    `json:"snapshot"`
	Health   sampler.HealthReport `json:"health"`
}

func runSample(cmd *cobra.Command, args []string) error {
	return oneShot(cmd, func(m *monitor.Monitor) error {
		return writeSample(cmd.OutOrStdout(), m)
	})
}

func writeSample(w io.Writer, m *monitor.Monitor) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sampleOutput{Snapshot: m.CurrentSnapshot(), Health: m.Health()})
}

func runCheck(cmd *cobra.Command, args []string) error {
	return oneShot(cmd, func(m *monitor.Monitor) error {
		return check(cmd.OutOrStdout(), m, checkBytes)
	})
}

func check(w io.Writer, m *monitor.Monitor, bytes uint64) error {
	if m.CanAllocate(bytes) {
		fmt.Fprintf(w, "ok: %s fits\n", sampler.FormatBytes(bytes))
		return nil
	}
	fmt.Fprintf(w, "no: %s does not fit\n", sampler.FormatBytes(bytes))
	return errNoHeadroom
}
