package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/AaronLay10/LockStep/internal/config"
	"github.com/AaronLay10/LockStep/internal/version"
)

// flags holds command-line overrides for the config file.
type flags struct {
	config    string
	bind      string
	port      int
	prefix    string
	publicURL string
	tlsCert   string
	tlsKey    string
	scenarios []string
	postgres  bool
	mqttURL   string
	logLevel  string
	logFormat string
	verbose   bool
}

// load reads the config file (or defaults) and applies every flag that
// was set on the command line or through the environment.
func (f *flags) load(fs *pflag.FlagSet) (*config.ServerConfig, error) {
	cfg := config.Defaults()
	if f.config != "" {
		var err error
		if cfg, err = config.LoadServerConfig(f.config); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f.config, err)
		}
	}

	if fs.Changed("bind") {
		cfg.Server.Bind = f.bind
	}
	if fs.Changed("port") {
		cfg.Server.Port = f.port
	}
	if fs.Changed("prefix") {
		cfg.Server.Prefix = f.prefix
	}
	if fs.Changed("public-url") {
		cfg.Server.PublicURL = f.publicURL
	}
	if fs.Changed("tls-cert") {
		cfg.Server.TLSCert = f.tlsCert
	}
	if fs.Changed("tls-key") {
		cfg.Server.TLSKey = f.tlsKey
	}
	if fs.Changed("scenarios") {
		cfg.Scenarios.Dirs = append(cfg.Scenarios.Dirs, f.scenarios...)
	}
	if fs.Changed("postgres") {
		cfg.Scenarios.Postgres = f.postgres
	}
	if fs.Changed("mqtt-url") {
		cfg.MQTT.URL = f.mqttURL
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if f.verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newCmd() *cobra.Command {
	return newRootCmd(&flags{})
}

func newRootCmd(f *flags) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("LOCKSTEP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "lockstep",
		Short:         "Server for cooperative node-graph puzzle games.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd.Flags())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&f.config, "config", "c", "", "path to lockstep.yaml (env: LOCKSTEP_CONFIG)")
	fs.StringVarP(&f.bind, "bind", "b", "0.0.0.0", "address to bind to (env: LOCKSTEP_BIND)")
	fs.IntVarP(&f.port, "port", "p", 3001, "port to listen on (env: LOCKSTEP_PORT)")
	fs.StringVar(&f.prefix, "prefix", "/", "path to prepend to all URLs, for use behind reverse proxy (env: LOCKSTEP_PREFIX)")
	fs.StringVar(&f.publicURL, "public-url", "", "base URL encoded in join QR codes (env: LOCKSTEP_PUBLIC_URL)")
	fs.StringVar(&f.tlsCert, "tls-cert", "", "path to tls certificate (env: LOCKSTEP_TLS_CERT)")
	fs.StringVar(&f.tlsKey, "tls-key", "", "path to tls keyfile (env: LOCKSTEP_TLS_KEY)")
	fs.StringSliceVar(&f.scenarios, "scenarios", nil, "extra scenario directories (env: LOCKSTEP_SCENARIOS)")
	fs.BoolVar(&f.postgres, "postgres", false, "load published scenarios from postgres, see PG* variables (env: LOCKSTEP_POSTGRES)")
	fs.StringVar(&f.mqttURL, "mqtt-url", "", "broker to republish room events to (env: LOCKSTEP_MQTT_URL)")
	fs.StringVar(&f.logLevel, "log-level", "info", "debug, info, warn or error (env: LOCKSTEP_LOG_LEVEL)")
	fs.StringVar(&f.logFormat, "log-format", "console", "console or json (env: LOCKSTEP_LOG_FORMAT)")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "shorthand for --log-level debug (env: LOCKSTEP_VERBOSE)")

	fs.VisitAll(func(fl *pflag.Flag) {
		_ = v.BindPFlag(fl.Name, fl)
		_ = v.BindEnv(fl.Name)
		if !fl.Changed && v.IsSet(fl.Name) {
			_ = fs.Set(fl.Name, fmt.Sprintf("%v", v.Get(fl.Name)))
		}
	})

	cmd.AddCommand(newCheckCmd())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("lockstep v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
