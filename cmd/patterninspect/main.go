// Command patterninspect is a demo host embedding the pattern language
// runtime, grounded on the teacher's demo/cmd/main.go cobra structure:
// a root command plus subcommands that exercise the library against real
// byte sources and print the resulting pattern tree.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/patterncore/patternlang/internal/pattern"
	"github.com/patterncore/patternlang/internal/patchaudit"
	"github.com/patterncore/patternlang/internal/provider"
	"github.com/patterncore/patternlang/internal/runtime"
	"github.com/patterncore/patternlang/internal/runtimeconfig"
)

var (
	flagRecursionLimit int
	flagPatternLimit   int
	flagBigEndian      bool
	flagAuditDB        string
	flagPointerBase    uint64
)

func main() {
	cfg := runtimeconfig.Load()

	rootCmd := &cobra.Command{
		Use:   "patterninspect",
		Short: "Pattern language runtime demo host",
		Long:  "Evaluate a pattern-language source file against a binary file and print the resulting pattern tree.",
	}
	rootCmd.PersistentFlags().IntVar(&flagRecursionLimit, "recursion-limit", cfg.RecursionLimit, "maximum user-function call depth")
	rootCmd.PersistentFlags().IntVar(&flagPatternLimit, "pattern-limit", cfg.PatternLimit, "maximum patterns a run may produce")
	rootCmd.PersistentFlags().BoolVar(&flagBigEndian, "big-endian", false, "default byte order when no le/be prefix is active")
	rootCmd.PersistentFlags().StringVar(&flagAuditDB, "audit-db", "", "optional SQLite/libSQL DSN recording every patch applied (auditing is off when empty)")
	rootCmd.PersistentFlags().Uint64Var(&flagPointerBase, "pointer-base", 0, "base address absolute pointer fields are offset from")

	rootCmd.AddCommand(newRunCmd(), newDescribeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <pattern-file> <data-file>",
		Short: "Evaluate a pattern source file against a data file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(args[0], args[1])
		},
	}
}

func runInspect(patternPath, dataPath string) error {
	prov, err := provider.OpenFileProvider(dataPath, false)
	if err != nil {
		return fmt.Errorf("opening data file: %w", err)
	}
	defer prov.Close()

	rt := runtime.New()
	rt.SetRecursionLimit(flagRecursionLimit)
	rt.SetPatternLimit(flagPatternLimit)
	rt.SetPointerBase(flagPointerBase)
	if flagBigEndian {
		rt.SetDefaultEndian(pattern.EndianBig)
	}

	var rec *patchaudit.Recorder
	if flagAuditDB != "" {
		db, err := patchaudit.Connect(flagAuditDB, false)
		if err != nil {
			return fmt.Errorf("opening audit database: %w", err)
		}
		rec, err = patchaudit.NewRecorder(db, dataPath, nil)
		if err != nil {
			return fmt.Errorf("opening audit session: %w", err)
		}
		defer rec.Close()
	}

	patterns, runErr := rt.ExecuteFile(prov, patternPath, nil, nil)

	for _, entry := range rt.ConsoleLog() {
		fmt.Printf("[%s] %s\n", entry.Level, entry.Message)
	}

	if rec != nil {
		if edits := patchEdits(prov); len(edits) > 0 {
			if err := rec.RecordSnapshot(edits); err != nil {
				fmt.Fprintf(os.Stderr, "audit: %v\n", err)
			}
		}
	}

	if runErr != nil {
		return runErr
	}

	for _, p := range patterns {
		printPattern(p, 0)
	}
	return nil
}

// patchEdits snapshots the provider's currently pending patches as
// before/after byte pairs for the audit recorder. Raw bytes are read
// through RawRead so the "before" value reflects the unpatched source.
func patchEdits(prov *provider.FileProvider) map[uint64][2]byte {
	edits := map[uint64][2]byte{}
	for addr, after := range prov.Patches() {
		var buf [1]byte
		before := byte(0)
		if n, err := prov.RawRead(addr, buf[:]); err == nil && n == 1 {
			before = buf[0]
		}
		edits[addr] = [2]byte{before, after}
	}
	return edits
}

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <pattern-file>",
		Short: "Run a pattern source with no data source, reporting compile errors only",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prov := provider.NewMemoryProvider("empty", nil)
			rt := runtime.New()
			rt.SetRecursionLimit(flagRecursionLimit)
			rt.SetPatternLimit(flagPatternLimit)
			rt.SetPointerBase(flagPointerBase)
			if flagBigEndian {
				rt.SetDefaultEndian(pattern.EndianBig)
			}
			_, err := rt.ExecuteFile(prov, args[0], nil, nil)
			if err != nil {
				return err
			}
			fmt.Println("source compiled and evaluated successfully")
			return nil
		},
	}
}

// printPattern renders one pattern and its descendants as indented lines.
func printPattern(p *pattern.Pattern, depth int) {
	indent := strings.Repeat("  ", depth)
	if len(p.Children) == 0 && p.Pointee == nil {
		fmt.Printf("%s%-12s %-10s offset=0x%x size=%d value=%s\n",
			indent, p.Name, p.Kind, p.Offset, p.Size, scalarString(p))
		return
	}
	fmt.Printf("%s%-12s %-10s offset=0x%x size=%d\n", indent, p.Name, p.Kind, p.Offset, p.Size)
	for _, c := range p.Children {
		printPattern(c, depth+1)
	}
	if p.Pointee != nil {
		printPattern(p.Pointee, depth+1)
	}
}

func scalarString(p *pattern.Pattern) string {
	switch p.Kind {
	case pattern.KindSigned:
		return fmt.Sprintf("%d", p.IntValue)
	case pattern.KindFloat:
		return fmt.Sprintf("%g", p.FloatVal)
	case pattern.KindBool:
		return fmt.Sprintf("%t", p.BoolVal)
	case pattern.KindString:
		return p.StrVal
	default:
		return fmt.Sprintf("%d", p.UintValue)
	}
}
