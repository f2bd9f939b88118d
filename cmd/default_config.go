package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clinic-sim/clinic-sim/sim"
	"github.com/clinic-sim/clinic-sim/sim/replication"
	"github.com/clinic-sim/clinic-sim/sim/trace"
)

// runSettings is everything `run` needs after config loading and overrides.
type runSettings struct {
	ConfigPath string
	Params     *sim.Params
	Options    replication.Options
	Output     string
}

// loadConfig returns the configuration file at path, or the built-in defaults
// when path is empty. The result is not validated.
func loadConfig(path string) (sim.Config, error) {
	if path == "" {
		return sim.DefaultConfig(), nil
	}
	return sim.LoadConfig(path)
}

// resolveRunSettings merges the configuration with flag and environment
// overrides. Run-control values from the file are replaced only when the
// matching key was explicitly set, and the merged set is validated again.
func resolveRunSettings(v *viper.Viper) (*runSettings, error) {
	path := v.GetString("config")
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	params, err := sim.NewParams(cfg)
	if err != nil {
		return nil, err
	}

	rt, wu, reps := params.RunTime(), params.WarmupTime(), params.Replications()
	if v.IsSet("run-time") {
		rt = v.GetFloat64("run-time")
	}
	if v.IsSet("warmup") {
		wu = v.GetFloat64("warmup")
	}
	if v.IsSet("replications") {
		reps = v.GetInt("replications")
		if reps < 1 {
			return nil, fmt.Errorf("%w: replications must be >= 1, got %d", sim.ErrInvalidParameter, reps)
		}
	}
	if rt != params.RunTime() || wu != params.WarmupTime() || reps != params.Replications() {
		if params, err = params.WithRunControl(rt, wu, reps); err != nil {
			return nil, err
		}
	}

	output := strings.ToLower(v.GetString("output"))
	if output == "" {
		output = formatTable
	}
	if output != formatTable && output != formatJSON {
		return nil, fmt.Errorf("unknown output format %q (want %s or %s)", output, formatTable, formatJSON)
	}
	level := v.GetString("trace")
	if !trace.IsValidTraceLevel(level) {
		return nil, fmt.Errorf("unknown trace level %q", level)
	}

	return &runSettings{
		ConfigPath: path,
		Params:     params,
		Output:     output,
		Options: replication.Options{
			BaseSeed:     v.GetInt64("seed"),
			Replications: params.Replications(),
			Workers:      v.GetInt("workers"),
			Confidence:   v.GetFloat64("confidence"),
			Method:       replication.CIMethod(v.GetString("ci-method")),
			TraceLevel:   trace.TraceLevel(level),
		},
	}, nil
}

// validateConfigFile checks the configuration at path and writes either a
// confirmation or one line per problem to w.
func validateConfigFile(path string, w io.Writer) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		var verr *sim.ValidationError
		if errors.As(err, &verr) {
			for _, p := range verr.Problems {
				fmt.Fprintf(w, "  - %s\n", p)
			}
		}
		return err
	}
	fmt.Fprintln(w, "configuration OK")
	return nil
}

// validateCmd checks a configuration file without running it
var validateCmd = &cobra.Command{
	Use:   "validate [config.yaml]",
	Short: "Validate a configuration file and list every problem",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := viper.GetString("config")
		if len(args) == 1 {
			path = args[0]
		}
		if err := validateConfigFile(path, os.Stdout); err != nil {
			logrus.Fatalf("Configuration invalid: %v", err)
		}
	},
}

// defaultsCmd prints the built-in configuration as YAML
var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the built-in default configuration",
	Run: func(cmd *cobra.Command, args []string) {
		if err := sim.DefaultConfig().Encode(os.Stdout); err != nil {
			logrus.Fatalf("Failed to encode defaults: %v", err)
		}
	},
}
