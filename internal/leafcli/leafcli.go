// Package leafcli implements the leaf's interactive commands
// (s/o/r/q/f/l/m/d) as a cobra command tree, one Execute per line read
// by cmd/leaf's REPL loop. The terminal reader itself stays an external
// collaborator; this package only defines what each single-letter
// command does once a line has been tokenized, generalizing a
// RunE-per-subcommand shape to a line-oriented dispatch instead of a
// process-lifetime CLI invocation.
package leafcli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rsjudka/overlay/internal/leaf"
	"github.com/rsjudka/overlay/internal/wire"
)

// ErrQuit is returned by Dispatch when the user issued "q"/"Q"; callers
// should exit 0.
var ErrQuit = errors.New("leafcli: quit")

// ResolveLeafAddr resolves a leaf id to its dialable obtain/poll
// address, the same shape leaf.ResolveLeafFunc uses.
type ResolveLeafAddr func(leafID int32) (string, bool)

// Deps wires a leaf process's catalogs and super-peer link into the
// command tree.
type Deps struct {
	Sess        *leaf.Session
	Local       *leaf.LocalCatalog
	Remote      *leaf.RemoteCatalog
	RemoteDir   string
	ResolveLeaf ResolveLeafAddr
	Out         io.Writer
	Now         func() time.Time
}

// New builds the root command for one leaf process. Dispatch should be
// called once per input line rather than reusing a single Execute
// across lines, since cobra commands are not meant to be re-entered
// concurrently; a fresh root is cheap enough to build per line.
func New(deps *Deps) *cobra.Command {
	root := &cobra.Command{Use: "leaf", SilenceUsage: true, SilenceErrors: true}
	root.SetOut(deps.Out)

	root.AddCommand(
		searchCmd(deps),
		obtainCmd(deps, "o"),
		obtainCmd(deps, "r"),
		filesCmd(deps),
		inspectCmd(deps, "l", wire.ReqInspectIndex),
		inspectCmd(deps, "m", wire.ReqInspectMessageIDs),
		inspectCmd(deps, "d", wire.ReqInspectPending),
		quitCmd(),
	)
	return root
}

// Dispatch tokenizes line and runs it against a fresh command tree. The
// command letter is case-insensitive (s/S, o/O, ...); the remaining
// arguments are passed through unchanged. An empty line is a no-op.
func Dispatch(deps *Deps, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	fields[0] = strings.ToLower(fields[0])
	root := New(deps)
	root.SetArgs(fields)
	return root.Execute()
}

func searchCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:  "s <filename>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := leaf.Search(deps.Sess, args[0])
			if err != nil {
				fmt.Fprintf(deps.Out, "unexpected connection issue: no search performed (%s)\n", err)
				return nil
			}
			if len(ids) == 0 {
				fmt.Fprintf(deps.Out, "file %q not found\n", args[0])
				return nil
			}
			fmt.Fprintf(deps.Out, "node(s) with file %q: %v\n", args[0], ids)
			return nil
		},
	}
}

// obtainCmd builds both "o" (obtain) and "r" (refresh), which share
// the same dialog: the alias exists only so a cached file can be
// re-pulled on demand without waiting for the registration tick.
func obtainCmd(deps *Deps, use string) *cobra.Command {
	return &cobra.Command{
		Use:  use + " <leaf_id> <filename>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			leafID, err := strconv.Atoi(args[0])
			if err != nil {
				fmt.Fprintf(deps.Out, "invalid leaf id %q\n", args[0])
				return nil
			}
			filename := args[1]

			addr, ok := deps.ResolveLeaf(int32(leafID))
			if !ok {
				fmt.Fprintf(deps.Out, "node %q is not valid: no retrieval performed\n", args[0])
				return nil
			}

			now := deps.Now
			if now == nil {
				now = time.Now
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			rf, err := leaf.Obtain(ctx, addr, filename, deps.RemoteDir, deps.Remote, now)
			if err != nil {
				fmt.Fprintf(deps.Out, "%s: no retrieval performed\n", err)
				return nil
			}
			fmt.Fprintf(deps.Out, "file %q downloaded as %q (version %d)\n", filename, rf.LocalName, rf.Version)
			return nil
		},
	}
}

func filesCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:  "f",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(deps.Out, "__________LOCAL FILES__________")
			for name, lf := range deps.Local.Snapshot() {
				fmt.Fprintf(deps.Out, "%s...%d\n", name, lf.Version)
			}
			fmt.Fprintln(deps.Out, "_______________________________")
			fmt.Fprintln(deps.Out, "__________REMOTE FILES__________")
			for _, rf := range deps.Remote.Snapshot() {
				fmt.Fprintf(deps.Out, "%s...%s...%d...%t...%d\n", rf.LocalName, rf.OriginName, rf.OriginLeafID, rf.Valid, rf.Version)
			}
			fmt.Fprintln(deps.Out, "_______________________________")
			return nil
		},
	}
}

func inspectCmd(deps *Deps, use string, reqType byte) *cobra.Command {
	return &cobra.Command{
		Use:  use,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := leaf.Inspect(deps.Sess, reqType)
			if err != nil {
				fmt.Fprintf(deps.Out, "unexpected connection issue: no report returned (%s)\n", err)
				return nil
			}
			fmt.Fprintln(deps.Out, report)
			return nil
		},
	}
}

func quitCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "q",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ErrQuit
		},
	}
}
