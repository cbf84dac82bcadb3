package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lithammer/shortuuid/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/cortex/engine/orchestrator"
	"github.com/hrygo/cortex/engine/registry"
	"github.com/hrygo/cortex/internal/profile"
	"github.com/hrygo/cortex/internal/version"
	"github.com/hrygo/cortex/metrics"
	"github.com/hrygo/cortex/store"
)

var rootCmd = &cobra.Command{
	Use:   "cortex [request]",
	Short: `A cognitive task orchestration engine. Decomposes a request into a task DAG and executes it across a pool of specialized agents.`,
	Args:  cobra.MinimumNArgs(1),
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Try to load .env file from current directory (ignore error if file doesn't exist)
		_ = godotenv.Load()

		level := slog.LevelInfo
		if viper.GetString("mode") != "prod" && viper.GetBool("verbose") {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
	RunE: func(_ *cobra.Command, args []string) error {
		instanceProfile := &profile.Profile{
			Mode:         viper.GetString("mode"),
			Data:         viper.GetString("data"),
			MaxWorkers:   viper.GetInt("max-workers"),
			MetricsAddr:  viper.GetString("metrics-addr"),
			AgentsConfig: viper.GetString("agents-config"),
			Version:      version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			return err
		}

		return run(instanceProfile, strings.Join(args, " "))
	},
}

func run(p *profile.Profile, request string) error {
	reg := registry.New()
	if p.AgentsConfig != "" {
		if err := reg.LoadCatalog(p.AgentsConfig); err != nil {
			return err
		}
	}

	memory := store.NewMemory()
	snapshot := p.SnapshotFile()
	if err := memory.Load(snapshot); err != nil {
		slog.Warn("failed to load memory snapshot, starting fresh",
			"path", snapshot, "error", err)
	}

	opts := []orchestrator.Option{
		orchestrator.WithSnapshotPath(snapshot),
	}
	if p.MaxWorkers > 0 {
		opts = append(opts, orchestrator.WithMaxWorkers(p.MaxWorkers))
	}

	var exporter *metrics.Exporter
	if p.MetricsAddr != "" {
		exporter = metrics.NewExporter(metrics.DefaultConfig())
		opts = append(opts, orchestrator.WithExporter(exporter))

		mux := http.NewServeMux()
		mux.Handle("/metrics", exporter.Handler())
		go func() {
			if err := http.ListenAndServe(p.MetricsAddr, mux); err != nil {
				slog.Error("metrics server stopped", "addr", p.MetricsAddr, "error", err)
			}
		}()
		slog.Info("metrics exposed", "addr", p.MetricsAddr)
	}

	engine := orchestrator.New(reg, memory, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), terminationSignals...)
	defer stop()

	var callback orchestrator.EventCallback
	if viper.GetBool("verbose") {
		callback = func(eventType, eventData string) {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", eventType, eventData)
		}
	}

	result, err := engine.Execute(ctx, request, orchestrator.ExecContext{
		Session:  shortuuid.New(),
		Callback: callback,
	})
	if err != nil {
		return err
	}

	fmt.Println(result.Output)
	if viper.GetBool("verbose") {
		stats := engine.Pool().Stats()
		fmt.Fprintf(os.Stderr, "\nintent=%s complexity=%s strategy=%s waves=%d agents=%d duration=%dms pool_executed=%d\n",
			result.Pipeline.Intent.Type,
			result.Metrics.ComplexityLevel,
			result.Pipeline.Allocation.Strategy,
			result.Pipeline.Execution.Waves,
			result.Metrics.AgentsUsed,
			result.Metrics.Duration.Milliseconds(),
			stats.TotalExecuted)
	}
	return nil
}

func init() {
	viper.SetDefault("mode", "dev")

	rootCmd.Version = version.String()

	rootCmd.PersistentFlags().String("mode", "dev", `mode, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("data", "", "data directory for memory snapshots")
	rootCmd.PersistentFlags().Int("max-workers", 0, "maximum concurrent workers (0 uses the default)")
	rootCmd.PersistentFlags().String("metrics-addr", "", "address to expose Prometheus metrics on, e.g. :9090")
	rootCmd.PersistentFlags().String("agents-config", "", "path to a YAML agent catalog extending the built-in agents")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "print pipeline events to stderr")

	for _, flag := range []string{"mode", "data", "max-workers", "metrics-addr", "agents-config", "verbose"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("cortex")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
