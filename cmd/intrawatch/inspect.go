package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"intrawatch/client"
	"intrawatch/internal/diff"
	"intrawatch/internal/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect the persisted snapshot",
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show [project]",
	Short: "Print the projects and files recorded so far",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if snapshotAddr != "" {
			return showRemoteProject(cmd, snapshotAddr, args)
		}

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		store, db, err := openStore(cfg, false)
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		snap, err := store.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("loading snapshot: %w", err)
		}

		keys := snap.Keys()
		if len(args) == 1 {
			keys = []string{snapshot.NormalizeKey(args[0])}
		}
		return printSnapshot(cmd.OutOrStdout(), snap, keys)
	},
}

var snapshotAddr string

// showRemoteProject asks a running instance for one project instead of
// opening the store, which a running badger backend keeps locked.
func showRemoteProject(cmd *cobra.Command, addr string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("--addr needs a project name")
	}
	p, err := client.New(addr).Project(args[0])
	if err != nil {
		return fmt.Errorf("querying %s: %w", addr, err)
	}
	snap := snapshot.New()
	snap.Put(p)
	return printSnapshot(cmd.OutOrStdout(), snap, snap.Keys())
}

func printSnapshot(out io.Writer, snap *snapshot.Snapshot, keys []string) error {
	if snap.Empty() {
		fmt.Fprintln(out, "No projects recorded yet")
		return nil
	}

	title := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.FgHiBlack)
	for _, key := range keys {
		p, ok := snap.Project(key)
		if !ok {
			return fmt.Errorf("project not found: %s", key)
		}
		title.Fprintf(out, "%s", p.Title)
		if p.Module != "" {
			dim.Fprintf(out, "  [%s]", p.Module)
		}
		fmt.Fprintln(out)
		for _, f := range p.Files {
			fmt.Fprintf(out, "  %-40s %10d  %s\n", f.Title, f.Size, f.ModifiedAt.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

var diffContext int

var diffCmd = &cobra.Command{
	Use:   "diff <old> <new>",
	Short: "Diff two local files the way change notifications do",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldData, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		newData, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[1], err)
		}

		differ := diff.NewDiffer(nil, diffContext)
		res := differ.DiffBytes(args[0], oldData, args[1], newData)

		out := cmd.OutOrStdout()
		switch {
		case !res.Comparable:
			return fmt.Errorf("cannot compare: %w", res.Err)
		case res.Identical:
			fmt.Fprintln(out, "Files are identical")
			return nil
		}

		printColoredDiff(out, res.Payload)
		fmt.Fprintf(out, "\n%s, %s (%s)\n",
			color.GreenString("+%d", res.Stats.Additions),
			color.RedString("-%d", res.Stats.Deletions),
			res.SizeClass)
		return nil
	},
}

func init() {
	diffCmd.Flags().IntVarP(&diffContext, "context", "U", 3, "lines of context")
}

func printColoredDiff(out io.Writer, payload string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(strings.TrimSuffix(payload, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			header.Fprintln(out, line)
		case strings.HasPrefix(line, "+"):
			added.Fprintln(out, line)
		case strings.HasPrefix(line, "-"):
			removed.Fprintln(out, line)
		default:
			fmt.Fprintln(out, line)
		}
	}
}

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Ask a running intrawatch for its last cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := statusAddr
		if addr == "" {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			addr = cfg.Status.Addr
		}
		if addr == "" {
			return fmt.Errorf("no status address: pass --addr or set status.addr")
		}

		c := client.New(addr)
		if err := c.Health(); err != nil {
			return fmt.Errorf("%s is not answering: %w", addr, err)
		}
		status, err := c.Status()
		if err != nil {
			return fmt.Errorf("querying %s: %w", addr, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "state: %s\n", status.State)
		if status.LastReport == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "no cycle has completed yet")
			return nil
		}
		printReport(cmd, status.LastReport)
		return nil
	},
}

func init() {
	snapshotShowCmd.Flags().StringVar(&snapshotAddr, "addr", "", "read the project from a running instance's status server")
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "status server address (default status.addr from config)")
}
