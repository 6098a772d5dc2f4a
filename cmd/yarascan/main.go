package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"yarascan/cache"
	"yarascan/capture"
	"yarascan/config"
	"yarascan/hyperscan"
	"yarascan/logging"
	"yarascan/scan"
	"yarascan/yara"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// exitError carries the process exit code of a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type options struct {
	configFile string
	overrides  config.Main
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	opts := &options{}
	root := newRootCommand(opts, stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return scan.ExitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return scan.ExitInitFailure
}

func newRootCommand(opts *options, stdout io.Writer, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "yarascan",
		Short:         "Tags TCP sessions whose payload matches YARA rules",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.configFile, "config", "", "YAML config file")
	f.StringVar(&opts.overrides.Yara, "yara", "", "general rule file, overrides the config file")
	f.StringVar(&opts.overrides.EmailYara, "email-yara", "", "email rule file, overrides the config file")
	f.StringVar(&opts.overrides.Engine, "engine", config.EngineYara, "rule engine: yara or hyperscan")
	f.BoolVar(&opts.overrides.LegacyAlignment, "legacy-fragment-alignment", false, "trim already scanned bytes from continuation fragments like libyara 1.x required")
	f.StringVar(&opts.overrides.RulesCacheDir, "rules-cache-dir", "", "directory for cached compiled rules")
	f.StringVar(&opts.overrides.MatchLogDir, "match-log-dir", "", "if set, write JSON match logs to this directory instead of the console")
	f.StringVar(&opts.overrides.LogLevel, "loglevel", "info", "sets log level. Can be one of: debug, info, warn, error, fatal, panic.")

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Compile the configured rules and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			logger := logging.NewConsoleLogger(stderr, c.LogLevel)
			s, closeResults, err := newScanner(logger, c)
			if err != nil {
				return err
			}
			s.Close()
			closeResults()

			logger.Info().Msg("Rules compiled successfully")
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "scan FILE...",
		Short: "Replay pcap/pcapng files through the scanner and print tagged sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			logger := logging.NewConsoleLogger(stderr, c.LogLevel)
			s, closeResults, err := newScanner(logger, c)
			if err != nil {
				return err
			}
			defer closeResults()
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results, err := replayFiles(ctx, capture.NewReplayer(logger, s), args)
			if err != nil {
				return &exitError{code: scan.ExitInitFailure, err: err}
			}

			for i, sessions := range results {
				for _, session := range sessions {
					if tags := session.Tags(); len(tags) > 0 {
						fmt.Fprintf(stdout, "%s\t%s\t%s\n", args[i], session.ID(), strings.Join(tags, ","))
					}
				}
			}
			return nil
		},
	})

	return root
}

// loadConfig reads the config file, if any, and applies the flags that were set on the command line.
func loadConfig(cmd *cobra.Command, opts *options) (c *config.Main, err error) {
	c = config.Default()
	if opts.configFile != "" {
		c, err = config.Load(&config.FileSystemImpl{}, opts.configFile)
		if err != nil {
			return nil, &exitError{code: scan.ExitInitFailure, err: err}
		}
	}

	flags := cmd.Flags()
	o := opts.overrides
	if flags.Changed("yara") {
		c.Yara = o.Yara
	}
	if flags.Changed("email-yara") {
		c.EmailYara = o.EmailYara
	}
	if flags.Changed("engine") {
		c.Engine = o.Engine
	}
	if flags.Changed("legacy-fragment-alignment") {
		c.LegacyAlignment = o.LegacyAlignment
	}
	if flags.Changed("rules-cache-dir") {
		c.RulesCacheDir = o.RulesCacheDir
	}
	if flags.Changed("match-log-dir") {
		c.MatchLogDir = o.MatchLogDir
	}
	if flags.Changed("loglevel") {
		c.LogLevel = o.LogLevel
	}

	if err = c.Validate(); err != nil {
		return nil, &exitError{code: scan.ExitInitFailure, err: err}
	}
	return
}

// Dependency injection composition root
func newScanner(logger zerolog.Logger, c *config.Main) (s scan.Scanner, closeResults func(), err error) {
	var store cache.Store
	if c.RulesCacheDir != "" {
		store = cache.NewStore(logger, cache.NewFilesystem(), c.RulesCacheDir)
	}

	var engine scan.Engine
	switch c.Engine {
	case config.EngineHyperscan:
		engine = hyperscan.NewEngine(logger, store)
	default:
		engine = yara.NewEngine(logger, store)
	}

	var rl scan.ResultsLogger
	closeResults = func() {}
	if c.MatchLogDir != "" {
		var frl *logging.FileResultsLogger
		frl, err = logging.NewFileResultsLogger(&logging.LogFileSystemImpl{}, c.MatchLogDir, logger)
		if err != nil {
			engine.Close()
			err = &exitError{code: scan.ExitInitFailure, err: err}
			return
		}
		rl = frl
		closeResults = func() { frl.Close() }
	} else {
		rl = logging.NewZerologResultsLogger(logger)
	}

	s, err = scan.NewScanner(logger, engine, c, rl)
	if err != nil {
		closeResults()
		logger.Error().Err(err).Msg("Error while initializing content scanning")
		err = &exitError{code: scan.ExitCode(err), err: err}
		return
	}

	return
}

// replayFiles replays every file concurrently. Results are in the order of filenames.
func replayFiles(ctx context.Context, r *capture.Replayer, filenames []string) ([][]*capture.Session, error) {
	results := make([][]*capture.Session, len(filenames))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, filename := range filenames {
		i, filename := i, filename
		g.Go(func() (err error) {
			results[i], err = r.ReplayFile(ctx, filename)
			return
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
