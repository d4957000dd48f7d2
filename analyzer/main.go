// Command analyzer statically extracts template render calls, their data
// variables and template func maps from a Go module, and prints them as JSON.
package main

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/abiiranathan/gotpl-analyzer/analyzer/ast"
	"github.com/abiiranathan/gotpl-analyzer/analyzer/logger"
	"github.com/abiiranathan/gotpl-analyzer/analyzer/store"
)

// defaultConfigFile is picked up from the analyzed directory when --config
// is not given.
const defaultConfigFile = ".gotpl-analyzer.yaml"

var (
	flagDir         string
	flagContextFile string
	flagConfig      string
	flagCompress    bool
	flagSQLite      string
	flagLogLevel    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "analyzer",
		Short:         "Extract template render calls and variables from Go source",
		Long:          "Loads and type-checks the Go packages under --dir, finds every template render call, resolves the variables passed to it with their full field trees, and prints the result as JSON on stdout.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          runAnalyze,
	}

	f := cmd.Flags()
	f.StringVar(&flagDir, "dir", ".", "Go source directory to analyze")
	f.StringVar(&flagContextFile, "context-file", "", "JSON file with additional template variables")
	f.StringVar(&flagConfig, "config", "", "YAML config file (default: <dir>/"+defaultConfigFile+" if present)")
	f.BoolVar(&flagCompress, "compress", false, "gzip the JSON output")
	f.StringVar(&flagSQLite, "sqlite", "", "also export the result to this SQLite database")
	f.StringVar(&flagLogLevel, "log-level", "warn", "log level: debug|info|warn|error|none")

	f.String("render-func", ast.DefaultConfig.RenderFunctionName, "render function or method name")
	f.String("execute-func", ast.DefaultConfig.ExecuteTemplateFunctionName, "alternate render function name, e.g. ExecuteTemplate")
	f.String("set-func", ast.DefaultConfig.SetFunctionName, "context method that sets a template variable")
	f.String("context-type", ast.DefaultConfig.ContextTypeName, "receiver type name of the set method")
	f.String("global-key", ast.DefaultConfig.GlobalTemplateName, "context-file key merged into every template")
	f.Int("max-depth", ast.DefaultConfig.MaxDepth, "maximum field expansion depth")

	return cmd
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	level, err := logger.ParseLevel(flagLogLevel)
	if err != nil {
		return err
	}
	logger.SetupLogger(level)

	absDir, err := filepath.Abs(flagDir)
	if err != nil {
		return fmt.Errorf("resolve --dir: %w", err)
	}

	config, err := resolveConfig(absDir, flagConfig, cmd.Flags())
	if err != nil {
		return err
	}
	slog.Debug("config resolved",
		"render", config.RenderFunctionName,
		"execute", config.ExecuteTemplateFunctionName,
		"set", config.SetFunctionName,
		"contextType", config.ContextTypeName,
		"maxDepth", config.MaxDepth,
	)

	result := ast.AnalyzeDir(absDir, flagContextFile, config)
	result.Errors = filterImportErrors(result.Errors)
	for _, e := range result.Errors {
		slog.Warn("analysis", "error", e)
	}

	if flagSQLite != "" {
		if err := exportSQLite(flagSQLite, result); err != nil {
			return err
		}
		slog.Info("sqlite export written", "path", flagSQLite)
	}

	return encodeJSON(cmd.OutOrStdout(), result, flagCompress)
}

// resolveConfig layers the defaults, the config file and the flags set on
// the command line, in that order.
func resolveConfig(dir, configPath string, flags *pflag.FlagSet) (ast.AnalysisConfig, error) {
	config := ast.DefaultConfig

	if configPath == "" {
		candidate := filepath.Join(dir, defaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			configPath = candidate
		} else if !errors.Is(err, fs.ErrNotExist) {
			return config, fmt.Errorf("stat %s: %w", candidate, err)
		}
	}

	if configPath != "" {
		loaded, err := ast.LoadConfigFile(configPath, config)
		if err != nil {
			return config, err
		}
		config = loaded
	}

	return applyFlagOverrides(config, flags)
}

// applyFlagOverrides applies only the flags the user actually set, so flag
// defaults never mask values from the config file.
func applyFlagOverrides(config ast.AnalysisConfig, flags *pflag.FlagSet) (ast.AnalysisConfig, error) {
	strFlags := map[string]*string{
		"render-func":  &config.RenderFunctionName,
		"execute-func": &config.ExecuteTemplateFunctionName,
		"set-func":     &config.SetFunctionName,
		"context-type": &config.ContextTypeName,
		"global-key":   &config.GlobalTemplateName,
	}
	for name, dst := range strFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return config, fmt.Errorf("flag --%s: %w", name, err)
		}
		*dst = v
	}

	if flags.Changed("max-depth") {
		depth, err := flags.GetInt("max-depth")
		if err != nil {
			return config, fmt.Errorf("flag --max-depth: %w", err)
		}
		if depth <= 0 {
			return config, fmt.Errorf("flag --max-depth: must be positive, got %d", depth)
		}
		config.MaxDepth = depth
	}

	return config, nil
}

func exportSQLite(path string, result ast.AnalysisResult) error {
	s, err := store.NewStore(path)
	if err != nil {
		return fmt.Errorf("sqlite export: %w", err)
	}
	defer s.Close()

	if err := s.Migrate(); err != nil {
		return fmt.Errorf("sqlite export: %w", err)
	}
	if err := s.WriteResult(result); err != nil {
		return fmt.Errorf("sqlite export: %w", err)
	}
	return nil
}

// encodeJSON writes output as unindented JSON, gzip-compressed if compress
// is set.
func encodeJSON(w io.Writer, output any, compress bool) error {
	if !compress {
		if err := json.NewEncoder(w).Encode(output); err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
		return nil
	}

	gz := gzip.NewWriter(w)
	if err := json.NewEncoder(gz).Encode(output); err != nil {
		gz.Close()
		return fmt.Errorf("encode JSON: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip writer: %w", err)
	}
	return nil
}

// filterImportErrors removes import-related errors from the analysis error
// list. They depend on the environment and are not actionable here.
func filterImportErrors(errs []string) []string {
	filtered := make([]string, 0, len(errs))
	for _, e := range errs {
		if !ast.IsImportRelatedError(e) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
