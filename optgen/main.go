// optgen compiles udis86 instruction definitions into the decoder's opcode
// tables.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/TechLord-Forever/udis86/optable"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"zombiezen.com/go/log"
)

func main() {
	rootCommand := &cobra.Command{
		Use:           "optgen",
		Short:         "udis86 opcode table generator",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	showDebug := rootCommand.PersistentFlags().Bool("debug", false, "show debugging output")
	rootCommand.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initLogging(*showDebug)
		return nil
	}

	rootCommand.AddCommand(
		newGenCommand(),
		newDumpCommand(),
		newCheckCommand(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCommand.ExecuteContext(ctx)
	cancel()
	if err != nil {
		initLogging(*showDebug)
		log.Errorf(context.Background(), "%v", err)
		os.Exit(1)
	}
}

type genOptions struct {
	inputs  []string
	logFile string
	outDir  string
	pkg     string
}

func newGenCommand() *cobra.Command {
	c := &cobra.Command{
		Use:                   "gen [options] FILE [...]",
		Short:                 "compile definitions and write itab.go",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MinimumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(genOptions)
	c.Flags().StringVar(&opts.logFile, "log", "opcodeTables.log", "write table statistics and dump to `path`")
	c.Flags().StringVarP(&opts.outDir, "out", "o", ".", "write itab.go into `dir`")
	c.Flags().StringVar(&opts.pkg, "package", "", "package `name` of itab.go (default from --out)")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		opts.inputs = args
		return runGen(cmd.Context(), opts)
	}
	return c
}

func runGen(ctx context.Context, opts *genOptions) error {
	coll, err := loadAndCompile(ctx, opts.inputs)
	if err != nil {
		return err
	}

	if opts.logFile != "" {
		if err := writeLogFile(opts.logFile, coll); err != nil {
			return fmt.Errorf("failed to write log: %w", err)
		}
	}

	pkg := opts.pkg
	if pkg == "" {
		abs, err := filepath.Abs(opts.outDir)
		if err != nil {
			return err
		}
		pkg = makeIdentLower(filepath.Base(abs))
	}
	if err := generateItab(ctx, opts.outDir, pkg, coll); err != nil {
		return fmt.Errorf("failed to generate tables: %w", err)
	}

	s := coll.Stats()
	log.Infof(ctx, "%d tables, %d definitions of %d mnemonics, %d%% packed", s.Tables, s.InsnDefs, s.Mnemonics, s.PackingRatio())
	return nil
}

func writeLogFile(filename string, coll *optable.Collection) error {
	w, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := coll.WriteLog(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

type dumpOptions struct {
	inputs []string
	raw    bool
}

func newDumpCommand() *cobra.Command {
	c := &cobra.Command{
		Use:                   "dump [options] FILE [...]",
		Short:                 "print the compiled tables as a tree",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MinimumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(dumpOptions)
	c.Flags().BoolVar(&opts.raw, "raw", false, "print the loaded records instead")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		opts.inputs = args
		return runDump(cmd.Context(), opts)
	}
	return c
}

func runDump(ctx context.Context, opts *dumpOptions) error {
	if opts.raw {
		records, err := loadRecords(opts.inputs)
		if err != nil {
			return err
		}
		spew.Dump(records)
		return nil
	}
	coll, err := loadAndCompile(ctx, opts.inputs)
	if err != nil {
		return err
	}
	fmt.Print(coll.Dump())
	return nil
}

type checkOptions struct {
	inputs []string
	mode   int
}

func newCheckCommand() *cobra.Command {
	c := &cobra.Command{
		Use:                   "check [options] FILE [...]",
		Short:                 "compare definitions against the x86asm disassembler",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MinimumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(checkOptions)
	c.Flags().IntVar(&opts.mode, "mode", 64, "decode in 32 or 64-bit `mode`")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		opts.inputs = args
		return runCheck(cmd.Context(), opts)
	}
	return c
}

func runCheck(ctx context.Context, opts *checkOptions) error {
	if opts.mode != 32 && opts.mode != 64 {
		return fmt.Errorf("unsupported mode %d", opts.mode)
	}
	coll, err := loadAndCompile(ctx, opts.inputs)
	if err != nil {
		return err
	}
	checked, mismatches := crossCheck(ctx, coll, opts.mode)
	for _, m := range mismatches {
		log.Warnf(ctx, "%v", m)
	}
	log.Infof(ctx, "%d of %d checked definitions agree with x86asm", checked-len(mismatches), checked)
	return nil
}

func loadAndCompile(ctx context.Context, inputs []string) (*optable.Collection, error) {
	records, err := loadRecords(inputs)
	if err != nil {
		return nil, err
	}
	log.Debugf(ctx, "Loaded %d records", len(records))
	coll, err := optable.Compile(ctx, records)
	if err != nil {
		reportCompileError(ctx, err)
		return nil, err
	}
	return coll, nil
}

func reportCompileError(ctx context.Context, err error) {
	var compileErr *optable.CompileError
	if !errors.As(err, &compileErr) {
		return
	}
	log.Errorf(ctx, "tables at failure:\n%s", compileErr.Dump)

	var collision *optable.CollisionError
	if errors.As(err, &collision) {
		cfg := spew.ConfigState{Indent: "  ", MaxDepth: 3}
		log.Debugf(ctx, "existing entry:\n%s", cfg.Sdump(collision.Existing))
		log.Debugf(ctx, "incoming entry:\n%s", cfg.Sdump(collision.Incoming))
	}
}

var initLogOnce sync.Once

func initLogging(showDebug bool) {
	initLogOnce.Do(func() {
		minLogLevel := log.Info
		if showDebug {
			minLogLevel = log.Debug
		}
		log.SetDefault(&log.LevelFilter{
			Min:    minLogLevel,
			Output: log.New(os.Stderr, "optgen: ", log.StdFlags, nil),
		})
	})
}
