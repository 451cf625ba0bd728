package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/spf13/cobra"

	"github.com/chtl-lang/compiler/internal/cmod"
	"github.com/chtl-lang/compiler/internal/dispatcher"
	"github.com/chtl-lang/compiler/internal/loc"
)

// Exit codes per the CLI contract.
const (
	exitOK         = 0
	exitDiagErrors = 1
	exitIO         = 2
	exitInvalid    = 3
	exitCancelled  = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	var verbose bool

	root := &cobra.Command{
		Use:           "chtl",
		Short:         "CHTL source-to-source compiler",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(compileCmd(), packCmd(), unpackCmd(), analyzeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "chtl:", err)
		var ec *exitError
		if ok := asExitError(err, &ec); ok {
			return ec.code
		}
		return exitInvalid
	}
	return exitOK
}

type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func asExitError(err error, target **exitError) bool {
	if ee, ok := err.(*exitError); ok {
		*target = ee
		return true
	}
	return false
}

func compileCmd() *cobra.Command {
	var (
		outDir   string
		minify   bool
		parallel bool
		strict   bool
		target   string
		jsonOut  bool
	)
	cmd := &cobra.Command{
		Use:   "compile <input>",
		Short: "Compile one CHTL source file into HTML, CSS, and JS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			source, err := os.ReadFile(input)
			if err != nil {
				return &exitError{code: exitIO, msg: fmt.Sprintf("cannot read %s: %v", input, err)}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			cfg := dispatcher.Config{
				Filename:    input,
				Parallel:    parallel,
				Strict:      strict,
				Minify:      minify,
				TargetES6:   target == "es6",
				FS:          os.DirFS(filepath.Dir(input)),
				SearchPaths: []string{"."},
			}
			result := dispatcher.Compile(ctx, string(source), cfg)

			if jsonOut {
				data, jerr := json.Marshal(result)
				if jerr != nil {
					return &exitError{code: exitIO, msg: jerr.Error()}
				}
				fmt.Println(string(data))
			} else {
				printDiagnostics(result.Diagnostics)
			}

			if outDir != "" {
				if err := writeOutputs(outDir, input, result); err != nil {
					return &exitError{code: exitIO, msg: err.Error()}
				}
			} else if !jsonOut {
				fmt.Println(result.HTML)
			}

			for _, d := range result.Diagnostics {
				if d.Code == loc.ERROR_CANCELLED {
					return &exitError{code: exitCancelled, msg: "cancelled"}
				}
			}
			if !result.Succeeded() {
				return &exitError{code: exitDiagErrors, msg: "compilation finished with errors"}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory")
	cmd.Flags().BoolVar(&minify, "minify", false, "minify generated output")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "compile fragment batches in parallel")
	cmd.Flags().BoolVar(&strict, "strict", false, "stop at the first error")
	cmd.Flags().StringVar(&target, "target", "es5", "JS target: es5 or es6")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the full result as JSON")
	return cmd
}

func writeOutputs(outDir, input string, result *dispatcher.CompilationResult) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if err := os.WriteFile(filepath.Join(outDir, base+".html"), []byte(result.HTML), 0o644); err != nil {
		return err
	}
	if result.CSS != "" {
		if err := os.WriteFile(filepath.Join(outDir, base+".css"), []byte(result.CSS), 0o644); err != nil {
			return err
		}
	}
	if result.JS != "" {
		if err := os.WriteFile(filepath.Join(outDir, base+".js"), []byte(result.JS), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func printDiagnostics(diags []loc.Diagnostic) {
	for _, d := range diags {
		if d.Location != nil {
			fmt.Fprintf(os.Stderr, "%s:%d:%d: %s: %s\n", d.Location.File, d.Location.Line, d.Location.Column, d.Severity, d.Text)
		} else {
			fmt.Fprintf(os.Stderr, "%s: %s\n", d.Severity, d.Text)
		}
	}
}

func packCmd() *cobra.Command {
	var level string
	cmd := &cobra.Command{
		Use:   "pack <src-dir> <out.cmod>",
		Short: "Package a module directory into a CMOD archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			srcDir, outPath := args[0], args[1]
			name := filepath.Base(filepath.Clean(srcDir))
			structure, err := cmod.Analyze(os.DirFS(srcDir), name)
			if err != nil {
				return &exitError{code: exitIO, msg: err.Error()}
			}
			if errs := structure.Validate(os.DirFS(srcDir)); len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintln(os.Stderr, "error:", e)
				}
				return &exitError{code: exitDiagErrors, msg: "invalid module structure"}
			}
			if err := cmod.PackDir(srcDir, outPath, parseLevel(level)); err != nil {
				return &exitError{code: exitIO, msg: err.Error()}
			}
			slog.Info("packaged module", "module", name, "archive", outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "compression", "normal", "compression level: none, fast, normal, best")
	return cmd
}

func parseLevel(s string) cmod.CompressionLevel {
	switch s {
	case "none":
		return cmod.CompressionNone
	case "fast":
		return cmod.CompressionFast
	case "best":
		return cmod.CompressionBest
	}
	return cmod.CompressionNormal
}

func unpackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpack <in.cmod> <out-dir>",
		Short: "Unpack a CMOD archive into a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmod.UnpackFile(args[0], args[1]); err != nil {
				return &exitError{code: exitIO, msg: err.Error()}
			}
			return nil
		},
	}
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <path>",
		Short: "Dump a CMOD module's structure and info",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			var structure *cmod.Structure
			var err error
			if fi, statErr := os.Stat(path); statErr == nil && fi.IsDir() {
				structure, err = cmod.Analyze(os.DirFS(path), filepath.Base(filepath.Clean(path)))
			} else {
				structure, err = cmod.AnalyzeArchive(path)
			}
			if err != nil {
				return &exitError{code: exitIO, msg: err.Error()}
			}
			data, jerr := json.Marshal(structure, json.Deterministic(true))
			if jerr != nil {
				return &exitError{code: exitIO, msg: jerr.Error()}
			}
			fmt.Println(string(data))
			return nil
		},
	}
}
