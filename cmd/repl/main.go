package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/brunokim/prolog-wam/config"
	"github.com/brunokim/prolog-wam/metrics"
	"github.com/brunokim/prolog-wam/solver"
)

var (
	configFile   string
	consultFiles []string
	loadFiles    []string
	query        string
	interactive  bool
	watch        bool
	metricsAddr  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "repl",
		Short:        "Console for the Warren Abstract Machine",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}
	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "YAML configuration file")
	flags.StringArrayVar(&consultFiles, "consult", nil, "Prolog file to consult, in order; may be repeated")
	flags.StringArrayVar(&loadFiles, "load", nil, "WAM file to load, in order; may be repeated")
	flags.StringVar(&query, "query", "", "Initial query to issue")
	flags.BoolVar(&interactive, "interactive", isTerminal(), "Whether the REPL is interactive")
	flags.BoolVar(&watch, "watch", false, "Reconsult files when they change")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics")
	return cmd
}

func isTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			log.Fatal(err)
		}
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	return cfg
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn
	if cfg.Debug > 0 {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func run(cmd *cobra.Command, args []string) error {
	if !interactive && query == "" {
		log.Fatal("No query provided for non-interactive REPL")
	}
	cfg := loadConfig(cmd)
	logger := newLogger(cfg)
	out := cmd.OutOrStdout()

	var reader lineReader
	if interactive {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:                 "?- ",
			HistoryFile:            cfg.HistoryFile,
			DisableAutoSaveHistory: true,
		})
		if err != nil {
			log.Fatal(err)
		}
		defer rl.Close()
		reader = rl
	} else {
		reader = newScanReader(cmd.InOrStdin())
	}

	s := solver.New(
		solver.WithConfig(cfg),
		solver.WithOutput(out),
		solver.WithInput(&lineInput{r: reader}),
		solver.WithLogger(logger),
		solver.WithMetrics(metrics.Default()))
	for _, file := range consultFiles {
		if err := s.LoadProlog(file); err != nil {
			log.Print(err)
		}
	}
	for _, file := range loadFiles {
		if err := s.LoadWam(file); err != nil {
			log.Print(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}
	if watch && len(consultFiles) > 0 {
		w, err := newWatcher(s, consultFiles, logger)
		if err != nil {
			log.Fatal(err)
		}
		defer w.Close()
		go w.Run(ctx)
	}

	c := &console{solver: s, reader: reader, out: out}
	if !interactive {
		c.enumerate = true
		c.execute(query)
		return nil
	}
	fmt.Fprintln(out, "Welcome to Stu's mighty WAM!")
	fmt.Fprintln(out, `Type "help" to get some help.`)
	c.mainLoop(query)
	return nil
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("serving metrics", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", slog.Any("err", err))
	}
}
