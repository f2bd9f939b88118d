package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clinic-sim/clinic-sim/sim/replication"
)

var (
	// CLI flags shared by every command
	logLevel   string // Log verbosity level
	configPath string // YAML configuration file; built-in defaults when empty

	// CLI flags for run control
	seed         int64   // Base seed; replication k derives its streams from (seed, k)
	replications int     // Number of independent replications
	runTime      float64 // Measured run length after warmup
	warmupTime   float64 // Warmup cutoff; statistics before it are discarded
	workers      int     // Concurrent replications, <= 0 means GOMAXPROCS
	confidence   float64 // Confidence level of the reported intervals
	ciMethod     string  // normal or student-t
	outputFormat string  // table or json
	traceLevel   string  // none, routing or events
)

// envPrefix namespaces environment overrides, e.g. CLINICSIM_REPLICATIONS=20.
const envPrefix = "CLINICSIM"

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "clinic-sim",
	Short: "Discrete-event simulator for clinic patient flow",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runCmd executes the replications using the configuration and CLI overrides
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run independent replications of the clinic network",
	Run: func(cmd *cobra.Command, args []string) {
		settings, err := resolveRunSettings(viper.GetViper())
		if err != nil {
			logrus.Fatalf("Invalid run configuration: %v", err)
		}

		logrus.Infof("Starting simulation: arrival_rate=%v, p_lab=%v, run_time=%v, warmup=%v, replications=%d",
			settings.Params.ArrivalRate(), settings.Params.PLab(), settings.Params.RunTime(),
			settings.Params.WarmupTime(), settings.Options.Replications)

		runner, err := replication.NewRunner(settings.Params, settings.Options)
		if err != nil {
			logrus.Fatalf("Invalid run configuration: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		res, runErr := runner.Run(ctx)
		if res != nil && res.Summary != nil {
			if err := writeReport(os.Stdout, settings, res); err != nil {
				logrus.Fatalf("Writing report: %v", err)
			}
		}
		if runErr != nil {
			logrus.Fatalf("Simulation failed: %v", runErr)
		}
		logrus.Info("Simulation complete.")
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags, environment binding and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML configuration (built-in defaults when empty)")

	runCmd.Flags().Int64Var(&seed, "seed", 42, "Base seed for the replications")
	runCmd.Flags().IntVar(&replications, "replications", 0, "Number of replications (overrides default_replications)")
	runCmd.Flags().Float64Var(&runTime, "run-time", 0, "Measured run length (overrides default_run_time)")
	runCmd.Flags().Float64Var(&warmupTime, "warmup", 0, "Warmup cutoff (overrides default_warmup_time)")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Concurrent replications (0 = GOMAXPROCS)")
	runCmd.Flags().Float64Var(&confidence, "confidence", replication.DefaultConfidence, "Confidence level of the intervals")
	runCmd.Flags().StringVar(&ciMethod, "ci-method", string(replication.CIMethodNormal), "Interval quantile: normal or student-t")
	runCmd.Flags().StringVar(&outputFormat, "output", "table", "Report format: table or json")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Per-replication trace: none, routing or events")

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	for _, name := range []string{"seed", "replications", "run-time", "warmup", "workers", "confidence", "ci-method", "output", "trace"} {
		_ = viper.BindPFlag(name, runCmd.Flags().Lookup(name))
	}

	// Attach subcommands to `root`
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(defaultsCmd)
}
