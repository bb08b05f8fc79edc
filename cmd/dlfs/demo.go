package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	demoDir     = "example_dir/"
	demoFile    = "example_dir/example_file.txt"
	demoRenamed = "example_dir/renamed_file.txt"
	demoText    = "Hello, Datenlord!"
)

func (a *app) demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the create, write, read, rename and delete walkthrough",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c := a.client
			t := a.theme
			out := cmd.OutOrStdout()
			step := func(name, detail string) {
				fmt.Fprintln(out, t.row(name, detail))
			}

			fmt.Fprintln(out, t.Title.Render("dlfs demo ("+a.mode+")"))

			ok, err := c.Exists(ctx, demoDir)
			if err != nil {
				return err
			}
			if ok {
				return fmt.Errorf("%s already exists", demoDir)
			}
			if err := c.Mkdir(ctx, demoDir); err != nil {
				return err
			}
			step("mkdir", demoDir)

			if err := c.CreateFile(ctx, demoFile); err != nil {
				return err
			}
			step("create", demoFile)

			if err := c.WriteFile(ctx, demoFile, []byte(demoText)); err != nil {
				return err
			}
			step("write", fmt.Sprintf("%d bytes", len(demoText)))

			data, err := c.ReadFile(ctx, demoFile)
			if err != nil {
				return err
			}
			step("read", t.Highlight.Render(string(data)))

			st, err := c.Stat(ctx, demoFile)
			if err != nil {
				return err
			}
			step("stat", fmt.Sprintf("size=%d perm=%s", st.Size, st.Perm))

			if err := c.Rename(ctx, demoFile, demoRenamed); err != nil {
				return err
			}
			step("rename", demoRenamed)

			if err := c.DeleteDir(ctx, demoDir, true); err != nil {
				return err
			}
			step("deldir", demoDir)

			a.ok(cmd, "demo complete")
			return nil
		},
	}
}
