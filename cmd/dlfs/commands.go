package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
)

func (a *app) existsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <path>",
		Short: "Report whether a path exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.client.Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatBool(ok))
			return nil
		},
	}
}

func (a *app) mkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Mkdir(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.ok(cmd, "created %s", args[0])
			return nil
		},
	}
}

func (a *app) touchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "touch <path>",
		Short: "Create an empty file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.CreateFile(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.ok(cmd, "created %s", args[0])
			return nil
		},
	}
}

func (a *app) putCmd() *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "put <path>",
		Short: "Write a file from --data or standard input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := []byte(data)
			if !cmd.Flags().Changed("data") {
				var err error
				if payload, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			}
			if err := a.client.WriteFile(cmd.Context(), args[0], payload); err != nil {
				return err
			}
			a.ok(cmd, "wrote %d bytes to %s", len(payload), args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "file contents")
	return cmd
}

func (a *app) catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.client.ReadFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func (a *app) statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Show the attributes of a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.client.Stat(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			t := a.theme
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, t.Title.Render(st.Path))
			fmt.Fprintln(out, t.row("kind", string(st.Kind)))
			fmt.Fprintln(out, t.row("size", strconv.FormatInt(st.Size, 10)))
			fmt.Fprintln(out, t.row("blocks", strconv.FormatInt(st.Blocks, 10)))
			fmt.Fprintln(out, t.row("perm", st.Perm.String()))
			fmt.Fprintln(out, t.row("nlink", strconv.FormatUint(uint64(st.Nlink), 10)))
			fmt.Fprintln(out, t.row("ino", strconv.FormatUint(st.Ino, 10)))
			fmt.Fprintln(out, t.row("uid/gid", fmt.Sprintf("%d/%d", st.UID, st.GID)))
			fmt.Fprintln(out, t.row("mtime", st.MTime.Format(time.RFC3339)))
			fmt.Fprintln(out, t.row("ctime", st.CTime.Format(time.RFC3339)))
			return nil
		},
	}
}

func (a *app) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "/"
			if len(args) == 1 {
				dir = args[0]
			}
			entries, err := a.client.ReadDir(cmd.Context(), dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				if e.Kind == dlfs.KindDir {
					fmt.Fprintln(out, a.theme.Highlight.Render(e.Name+"/"))
					continue
				}
				fmt.Fprintln(out, e.Name)
			}
			return nil
		},
	}
}

func (a *app) mvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <from> <to>",
		Short: "Rename a file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Rename(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			a.ok(cmd, "renamed %s -> %s", args[0], args[1])
			return nil
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Remove a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteFile(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.ok(cmd, "removed %s", args[0])
			return nil
		},
	}
}

func (a *app) rmdirCmd() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rmdir <path>",
		Short: "Remove a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteDir(cmd.Context(), args[0], recursive); err != nil {
				return err
			}
			a.ok(cmd, "removed %s", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "remove the directory and its contents")
	return cmd
}

func (a *app) cpInCmd() *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "cp-in <local> <path>",
		Short: "Copy a host file into the namespace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.CopyFromLocalFile(cmd.Context(), overwrite, args[0], args[1]); err != nil {
				return err
			}
			a.ok(cmd, "copied %s -> %s", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing destination")
	return cmd
}

func (a *app) cpOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cp-out <path> <local>",
		Short: "Copy a namespace file to the host",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.CopyToLocalFile(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			a.ok(cmd, "copied %s -> %s", args[0], args[1])
			return nil
		},
	}
}

func (a *app) statfsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "statfs",
		Short: "Show filesystem capacity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.client.StatFs(cmd.Context())
			if err != nil {
				return err
			}
			t := a.theme
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, t.Title.Render(a.mode))
			fmt.Fprintln(out, t.row("bsize", strconv.FormatUint(uint64(st.BSize), 10)))
			fmt.Fprintln(out, t.row("blocks", strconv.FormatUint(st.Blocks, 10)))
			fmt.Fprintln(out, t.row("bfree", strconv.FormatUint(st.BFree, 10)))
			fmt.Fprintln(out, t.row("bavail", strconv.FormatUint(st.BAvail, 10)))
			fmt.Fprintln(out, t.row("files", strconv.FormatUint(st.Files, 10)))
			fmt.Fprintln(out, t.row("ffree", strconv.FormatUint(st.FFree, 10)))
			fmt.Fprintln(out, t.row("namelen", strconv.FormatUint(uint64(st.NameLen), 10)))
			return nil
		},
	}
}
