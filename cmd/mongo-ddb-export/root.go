package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/baldanca/mongo-ddb-export/config"
)

// NewRootCmd builds the command tree. Running the root without a
// subcommand performs an export.
func NewRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mongo-ddb-export",
		Short: "Export MongoDB collections as DynamoDB-style JSON records",
		Long: `Export every collection of every non-system database into one
newline-delimited JSON file per collection ("<db>_<collection>.json").
Each line is {"Item": {...}} with values tagged N, S, BOOL, NULL, L or M.

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (MDE_*, plus MONGODB_URI)
3. Config file (--config, or ./mongo-ddb-export.yaml)
4. Defaults`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, v)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String(config.KeyConfig, "", "config file (yaml or json)")
	cmd.PersistentFlags().String(config.KeyLogLevel, "info", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().String(config.KeyLogFormat, "text", "log format (text|json)")
	_ = v.BindPFlags(cmd.PersistentFlags())

	addExportFlags(cmd, v)

	cmd.AddCommand(newExportCmd(v))
	cmd.AddCommand(newVerifyCmd(v))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the command tree with args.
func Execute(ctx context.Context, args []string) error {
	v := viper.New()
	config.SetDefaults(v)
	if err := config.BindEnv(v); err != nil {
		return err
	}

	cmd := NewRootCmd(v)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}
