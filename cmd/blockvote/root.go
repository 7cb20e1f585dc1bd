package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/salahayoub/blockvote/pkg/archive"
	"github.com/salahayoub/blockvote/pkg/logging"
	"github.com/salahayoub/blockvote/pkg/transport"
)

const rootCmdLongDesc = `blockvote is a client for a local cluster of blockchain voting nodes.

It scans a port range for nodes, follows their live status, lists the
elections they hold and tallies them by Borda count or instant runoff. It
can create elections and cast ballots with the signing keys a node issues.

Run without a subcommand to open the dashboard.`

// cli carries the state shared by every subcommand.
type cli struct {
	v       *viper.Viper
	cfgFile string
	cfg     *Config
}

// newRootCmd builds the command tree over its own viper instance.
func newRootCmd() *cobra.Command {
	root, _ := buildRoot()
	return root
}

func buildRoot() (*cobra.Command, *cli) {
	c := &cli{v: viper.New()}
	setDefaults(c.v)

	root := &cobra.Command{
		Use:           "blockvote",
		Short:         "Client for a local blockchain voting cluster",
		Long:          rootCmdLongDesc,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDashboard()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.blockvote.yaml)")
	flags.String(keyHost, transport.DefaultHost, "host running the cluster")
	flags.Int(keyBasePort, c.v.GetInt(keyBasePort), "first port of the scanned range")
	flags.Int(keyPortCount, c.v.GetInt(keyPortCount), "number of ports scanned")
	flags.Int(keyStreamOffset, c.v.GetInt(keyStreamOffset), "offset from a node's HTTP port to its snapshot stream port")
	flags.Int(keyKeyLength, c.v.GetInt(keyKeyLength), "length of signing keys in hex characters")
	flags.Duration(keySettleDelay, c.v.GetDuration(keySettleDelay), "time the refresh flag stays up after the last probe")
	flags.Duration(keyBatchInterval, c.v.GetDuration(keyBatchInterval), "spacing between ballots of a batch")
	flags.Duration(keyHTTPTimeout, 0, "per-request HTTP timeout (0 for none)")
	flags.String(keyLogLevel, "info", "log level ('debug', 'info', 'warn', 'error')")
	flags.Bool(keyLogJSON, false, "encode logs as JSON")
	flags.String(keyLogFile, defaultLogFile, "dashboard log file")
	flags.String(keyArchive, "", "record fetched ledgers and created elections in a bbolt file")
	flags.Lookup(keyArchive).NoOptDefVal = archive.DefaultLocation

	if err := c.v.BindPFlags(flags); err != nil {
		panic(err)
	}

	root.AddCommand(
		newDashboardCmd(c),
		newScanCmd(c),
		newElectionsCmd(c),
		newResultsCmd(c),
		newVoteCmd(c),
		newBatchVoteCmd(c),
		newNewElectionCmd(c),
		newArchiveCmd(c),
	)
	return root, c
}

// initConfig reads in the config file and ENV variables if set.
func (c *cli) initConfig() error {
	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return err
		}
		c.v.AddConfigPath(home)
		c.v.SetConfigName(".blockvote")
		c.v.SetConfigType("yaml")
	}

	c.v.SetEnvPrefix("BLOCKVOTE")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := LoadConfig(c.v)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// logger builds a stderr logger for one-shot commands.
func (c *cli) logger() (*zap.Logger, error) {
	return logging.New(c.cfg.LogLevel, c.cfg.LogJSON)
}

// fileLogger builds a logger writing to the configured log file.
func (c *cli) fileLogger() (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(c.cfg.LogFile), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return logging.New(c.cfg.LogLevel, c.cfg.LogJSON, c.cfg.LogFile)
}

// dialer returns a dialer for the configured host.
func (c *cli) dialer(logger *zap.Logger) transport.Dialer {
	return transport.NewDialer(c.cfg.Transport(logger))
}

// openArchive opens the archive when enabled. The returned archive is nil
// when archiving is off.
func (c *cli) openArchive() (*archive.Archive, error) {
	if c.cfg.Archive == "" {
		return nil, nil
	}
	return archive.Open(c.cfg.Archive)
}
