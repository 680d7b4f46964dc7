package main

import (
	"context"
	"fmt"

	swb "github.com/haxdai/SWBPlatform-sub000"
	"github.com/haxdai/SWBPlatform-sub000/internal/config"
	"github.com/haxdai/SWBPlatform-sub000/internal/platform"
	"github.com/haxdai/SWBPlatform-sub000/internal/status"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config string
	Debug  bool
	Quiet  bool
}

// NewRootCommand creates the root command of swbctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	var legal bool
	cmd := &cobra.Command{
		Use:           "swbctl",
		Short:         "swbctl manages platform models and schemas",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if legal {
				fmt.Fprint(cmd.OutOrStdout(), swb.LegalText())
				return nil
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to a YAML configuration file")
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "do not log progress")
	cmd.Flags().BoolVar(&legal, "legal", false, "display legal notices and exit")

	cmd.AddCommand(NewDDLCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewConvertCommand(opts))
	cmd.AddCommand(NewClassesCommand(opts))

	return cmd
}

// status creates the status that progress of cmd is logged to
func (opts *RootOptions) status(cmd *cobra.Command) *status.Status {
	if opts.Quiet {
		return nil
	}
	return status.New(cmd.ErrOrStderr(), opts.Debug)
}

// open loads the configuration and opens the platform it describes
func (opts *RootOptions) open(ctx context.Context, st *status.Status) (*platform.Platform, error) {
	var cfg *config.Config
	if err := st.DoStage(status.StageConfig, func() (err error) {
		cfg, err = config.Load(opts.Config, st.Logger())
		return
	}); err != nil {
		return nil, err
	}

	// commands are one-shot, so they never join the cluster
	cfg.Messages.Transport = config.TransportNone

	return platform.Open(ctx, cfg, st)
}
