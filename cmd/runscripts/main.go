package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/kplau1128/tools-n-utilies/internal/log"
	"github.com/kplau1128/tools-n-utilies/internal/model"
	"github.com/kplau1128/tools-n-utilies/internal/service"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var (
	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
	flagScriptsFile    string
	flagPatternsFile   string
	flagOutputFile     string
	flagTimeout        time.Duration
	flagJournal        string

	settings service.Settings
)

func main() {
	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Settings file to load - default is runscripts.yaml in the current directory")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagScriptsFile, "scripts_file", "", "file with the scripts and argument combinations to run (required)")
	rootCmd.PersistentFlags().StringVar(&flagPatternsFile, "patterns_file", "", "file with result and error patterns (required)")
	rootCmd.Flags().StringVarP(&flagOutputFile, "output_file", "o", "", "output CSV file path (default "+service.DefaultOutputFile+")")
	rootCmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "optional per-script timeout, 0 means none")
	rootCmd.Flags().StringVar(&flagJournal, "journal", "", "optional sqlite journal recording finished batches")

	// never print messages
	rootCmd.SilenceErrors = true

	// load settings, setup logging
	rootCmd.PersistentPreRunE = initRunscripts

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("runscripts failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "runscripts",
	Short:        "Run scripts with various arguments and collect their console output into CSV",
	SilenceUsage: true,
	RunE:         doRun,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "validate loads both configuration files and runs nothing",
	RunE:  doValidate,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "init writes starter scripts.yaml and patterns.yaml files",
	RunE:  doInit,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provides the version of runscripts",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("runscripts: version info not available")
			return
		}

		fmt.Printf("runscripts: %s\n", info.Main.Version)
		fmt.Printf("go:         %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:     %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:       %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:      %s\n", s.Value)
			}
		}
	},
}

func doRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ctx = log.ContextAttrs(ctx,
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	)

	scripts, patterns, err := loadConfigs(ctx)
	if err != nil {
		return err
	}

	batch, err := service.NewBatch(scripts, patterns, settings.Timeout)
	if err != nil {
		return err
	}

	journal, batchID := beginJournal(ctx, len(scripts.Scripts))
	if journal != nil {
		defer func() {
			_ = journal.Close()
		}()
	}

	builder, err := batch.Do(ctx)
	if err != nil {
		return err
	}

	writeErr := builder.Write(settings.OutputFile)
	if journal != nil {
		if err := journal.Finish(ctx, batchID, builder.Len(), settings.OutputFile, writeErr == nil); err != nil {
			slog.WarnContext(ctx, "updating journal failed", "error", err)
		}
	}
	if writeErr != nil {
		return fmt.Errorf("writing results: %w", writeErr)
	}

	slog.InfoContext(ctx, "batch finished",
		"rows", builder.Len(),
		"output_file", settings.OutputFile,
	)
	return nil
}

func doValidate(cmd *cobra.Command, args []string) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.String("cmd", "validate"))
	scripts, patterns, err := loadConfigs(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("scripts:  %d (%d combinations)\n", len(scripts.Scripts), scripts.TotalCombinations())
	fmt.Printf("patterns: %d (%d result fields)\n", len(patterns.Rules), len(patterns.FieldNames()))
	return nil
}

// starter configuration written by the init command, the classic ping example
var (
	starterScripts = model.ScriptSet{
		Scripts: []model.ScriptSpec{{
			ID:          "ping",
			Command:     "ping",
			DefaultArgs: []string{"-c", "1"},
			Combinations: [][]string{
				{"localhost"},
				{"invalid.host"},
			},
		}},
	}
	starterPatterns = model.PatternSet{
		Rules: []model.PatternRule{
			{
				Name:   "packet_loss",
				Kind:   model.KindResult,
				Regex:  `(\d+)% packet loss`,
				Fields: []string{"loss_pct"},
			},
			{
				Name:  "unknown_host",
				Kind:  model.KindError,
				Regex: `unknown host|Name or service not known`,
			},
		},
	}
)

func doInit(cmd *cobra.Command, args []string) error {
	if err := writeStarter("scripts.yaml", starterScripts); err != nil {
		return err
	}
	if err := writeStarter("patterns.yaml", starterPatterns); err != nil {
		return err
	}
	fmt.Println("wrote scripts.yaml and patterns.yaml")
	return nil
}

func writeStarter(path string, doc any) error {
	if exists(path) {
		return fmt.Errorf("refusing to overwrite %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	enc := yaml.NewEncoder(f)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("storing starter configuration: %w", err)
	}
	return enc.Close()
}

func loadConfigs(ctx context.Context) (*model.ScriptSet, *model.PatternSet, error) {
	if flagScriptsFile == "" || flagPatternsFile == "" {
		return nil, nil, errors.New("both --scripts_file and --patterns_file are required")
	}

	scripts, err := loadFile(ctx, flagScriptsFile, model.LoadScripts)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing scripts file %s: %w", flagScriptsFile, err)
	}
	patterns, err := loadFile(ctx, flagPatternsFile, model.LoadPatterns)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing patterns file %s: %w", flagPatternsFile, err)
	}
	return scripts, patterns, nil
}

func loadFile[T any](ctx context.Context, path string, load func(r io.Reader) (*T, error)) (*T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	out, err := load(f)
	if err != nil {
		var cfgErr *model.ConfigError
		if !errors.As(err, &cfgErr) {
			for _, d := range model.CueErrDetails(err) {
				slog.LogAttrs(ctx, slog.LevelError, "invalid configuration", d.Attr("detail"))
			}
		}
		return nil, err
	}
	return out, nil
}

// beginJournal opens the configured journal and registers the batch. The
// journal is an audit trail only, failures never stop the run.
func beginJournal(ctx context.Context, scripts int) (*service.Journal, string) {
	if settings.Journal == "" {
		return nil, ""
	}
	journal, err := service.OpenJournal(ctx, settings.Journal)
	if err != nil {
		slog.WarnContext(ctx, "opening journal failed, running without it", "error", err)
		return nil, ""
	}
	id, err := journal.Begin(ctx, scripts)
	if err != nil {
		slog.WarnContext(ctx, "registering batch in journal failed, running without it", "error", err)
		_ = journal.Close()
		return nil, ""
	}
	return journal, id
}

func initRunscripts(cmd *cobra.Command, _ []string) error {
	var err error
	settings, err = service.LoadSettings(flagConfigFilePath)
	if err != nil {
		return err
	}

	// flags have precedence over the settings file. verbose is checked via
	// Changed so an explicit --verbose=false overrides verbose: true in the
	// settings file.
	if cmd.Flags().Changed("verbose") {
		settings.Verbose = flagVerbose
	}
	if flagOutputFile != "" {
		settings.OutputFile = flagOutputFile
	}
	if flagTimeout > 0 {
		settings.Timeout = flagTimeout
	}
	if flagJournal != "" {
		settings.Journal = flagJournal
	}

	log.Setup(settings.Verbose)

	slog.Debug("runscripts", "settings", settings)
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
