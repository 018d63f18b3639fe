// Command n4x answers one-off questions about a saved game: mission plans,
// terraforming forecasts, pointer lookups and the watchboard.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/persistence/snapshot"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/tuning"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries the resolved configuration to every subcommand.
type app struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:           "n4x",
		Short:         "Inspect Nebula4X saves",
		Long:          "n4x plans ship orders, forecasts terraforming and evaluates watchboard pins against a saved game.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default .n4x.yaml)")
	pf.String("snapshot", "", "snapshot file (default: latest in <data>/snapshots)")
	pf.String("data", "./data", "runtime data directory")
	pf.String("tuning", "", "tuning.yaml (defaults when empty)")
	pf.String("pins", "./configs/watchboard.toml", "watchboard pin file")
	pf.Bool("json", false, "print JSON instead of a table")
	pf.BoolP("verbose", "v", false, "log to stderr")
	for _, k := range []string{"snapshot", "data", "tuning", "pins", "json", "verbose"} {
		_ = a.v.BindPFlag(k, pf.Lookup(k))
	}

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return a.initConfig(cmd)
	}

	root.AddCommand(
		a.planCmd(),
		a.terraformCmd(),
		a.resolveCmd(),
		a.queryCmd(),
		a.completeCmd(),
		a.watchCmd(),
		a.inboxCmd(),
	)
	return root
}

func (a *app) initConfig(cmd *cobra.Command) error {
	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		a.v.SetConfigName(".n4x")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home)
		}
	}
	a.v.SetEnvPrefix("N4X")
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

func (a *app) snapshot() (snapshot.Snapshot, error) {
	path := strings.TrimSpace(a.v.GetString("snapshot"))
	if path == "" {
		latest, err := snapshot.LatestSnapshot(filepath.Join(a.v.GetString("data"), "snapshots"))
		if err != nil {
			return snapshot.Snapshot{}, fmt.Errorf("find snapshot: %w", err)
		}
		path = latest
	}
	return snapshot.ReadSnapshot(path)
}

func (a *app) tuning() (tuning.SimConfig, error) {
	path := strings.TrimSpace(a.v.GetString("tuning"))
	if path == "" {
		return tuning.Defaults(), nil
	}
	cfg, err := tuning.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("tuning: %w", err)
	}
	return cfg, nil
}

func (a *app) asJSON() bool { return a.v.GetBool("json") }

func (a *app) logger(cmd *cobra.Command) zerolog.Logger {
	if !a.v.GetBool("verbose") {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}).
		Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
