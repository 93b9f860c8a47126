package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// cliOptions holds the global flags values.
type cliOptions struct {
	configFile string
	envFile    string
	config     *Config
}

// loadConfig reads the configuration once for the running command.
func (o *cliOptions) loadConfig() (*Config, error) {
	if o.config != nil {
		return o.config, nil
	}
	config, err := LoadAndInitConfigs(o.configFile, o.envFile, GitCommit, GitTag, BuildTime)
	if err != nil {
		return nil, err
	}
	o.config = config
	return config, nil
}

// NewRootCommand builds the bookrecords command tree.
func NewRootCommand() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:   "bookrecords",
		Short: "Validated storage of book records",
		Long: `bookrecords keeps a collection of books where every record holds a name,
an author, a publication year and a type. It serves them over http or
manages them directly from the command line.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "./config.yml", "path to the yaml configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "./config.env", "optional dotenv file loaded before the environment")

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newBookCommand(opts))
	root.AddCommand(newVersionCommand())
	return root
}

func newServeCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the http api server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("application failed to initialized: %w", err)
			}
			app, err := NewApp(config)
			if err != nil {
				return fmt.Errorf("application failed to initialized: %w", err)
			}
			if err = app.Run(); err != nil {
				return fmt.Errorf("application exited. check logs for more details: %w", err)
			}
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build details",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bookrecords tag=%s commit=%s built=%s\n", GitTag, GitCommit, BuildTime)
		},
	}
}
