package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datenlord/datenlord_sdk_go/pkg/datenlord_sdk"
	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	cfg    string
	client *dlfs.Client
	mode   string
	theme  *theme
}

func newRootCmd() *cobra.Command {
	a := &app{theme: newTheme()}

	root := &cobra.Command{
		Use:   "dlfs",
		Short: "Operate on a DatenLord namespace",
		Long: `dlfs runs single filesystem operations through the DatenLord SDK.

The --config string uses the SDK grammar, for example:
  dlfs --config "endpoint=http://127.0.0.1:8765" ls /
  dlfs --config "root=/srv/data" stat /reports
  dlfs demo`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			c, mode, err := datenlord_sdk.Init(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			a.client = c
			a.mode = mode
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if a.client == nil {
				return nil
			}
			err := a.client.Close()
			a.client = nil
			if errors.Is(err, dlfs.ErrClosed) {
				return nil
			}
			return err
		},
	}
	root.PersistentFlags().StringVarP(&a.cfg, "config", "c", "", "SDK configuration string")

	root.AddCommand(
		a.existsCmd(),
		a.mkdirCmd(),
		a.touchCmd(),
		a.putCmd(),
		a.catCmd(),
		a.statCmd(),
		a.lsCmd(),
		a.mvCmd(),
		a.rmCmd(),
		a.rmdirCmd(),
		a.cpInCmd(),
		a.cpOutCmd(),
		a.statfsCmd(),
		a.demoCmd(),
	)
	return root
}

func (a *app) ok(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintln(cmd.OutOrStdout(), a.theme.SuccessStyle.Render(fmt.Sprintf(format, args...)))
}
