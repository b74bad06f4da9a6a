package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jroosing/ringnode/internal/config"
	"github.com/jroosing/ringnode/internal/fsm"
	"github.com/jroosing/ringnode/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// cliFlags holds parsed command-line flag values.
type cliFlags struct {
	configPath string
	debug      bool
	jsonLogs   bool
	trackerIP  string
	trackerPt  int
}

// parseFlagsAndArgs parses the tracker positional arguments and ambient flags.
func parseFlagsAndArgs(args []string) (cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet("ringnode", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "Path to YAML config file")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&f.jsonLogs, "json-logs", false, "Enable JSON structured logging")
	if err := fs.Parse(args); err != nil {
		return f, err
	}

	rest := fs.Args()
	if len(rest) < 2 {
		return f, fmt.Errorf("usage: ringnode [flags] <tracker_ip> <tracker_port>")
	}
	f.trackerIP = rest[0]
	port, err := strconv.Atoi(rest[1])
	if err != nil {
		return f, fmt.Errorf("invalid tracker port %q: %w", rest[1], err)
	}
	f.trackerPt = port
	return f, nil
}

// applyCLIOverrides applies command-line overrides to the loaded config.
func applyCLIOverrides(cfg *config.Config, f cliFlags) {
	if f.jsonLogs {
		cfg.Logging.Structured = true
		cfg.Logging.StructuredFormat = "json"
	}
	if f.debug {
		cfg.Logging.Level = "DEBUG"
	}
}

func run() error {
	flags, err := parseFlagsAndArgs(os.Args[1:])
	if err != nil {
		return err
	}

	cfg, err := config.Load(config.ResolveConfigPath(flags.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyCLIOverrides(cfg, flags)

	logger := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
		IncludePID:       cfg.Logging.IncludePID,
		ExtraFields:      cfg.Logging.ExtraFields,
	}).With("instance_id", cfg.InstanceID)
	logger.Info("ringnode starting",
		"tracker", net.JoinHostPort(flags.trackerIP, strconv.Itoa(flags.trackerPt)),
	)

	timing, err := parseTiming(cfg)
	if err != nil {
		return fmt.Errorf("invalid timing config: %w", err)
	}

	trackerAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(flags.trackerIP, strconv.Itoa(flags.trackerPt)))
	if err != nil {
		return fmt.Errorf("resolving tracker address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	node := fsm.NewNode(logger, timing, trackerAddr)

	go func() {
		<-ctx.Done()
		node.RequestClose()
	}()

	if err := fsm.Run(ctx, node); err != nil {
		return fmt.Errorf("node exited with error: %w", err)
	}
	logger.Info("ringnode stopped")
	return nil
}

// parseTiming converts the string durations config.Load already validated
// into the fsm.Timing the state machine actually blocks on.
func parseTiming(cfg *config.Config) (fsm.Timing, error) {
	poll, err := time.ParseDuration(cfg.Timing.Poll)
	if err != nil {
		return fsm.Timing{}, err
	}
	keepAlive, err := time.ParseDuration(cfg.Timing.KeepAliveInterval)
	if err != nil {
		return fsm.Timing{}, err
	}
	bootstrap, err := time.ParseDuration(cfg.Timing.BootstrapTimeout)
	if err != nil {
		return fsm.Timing{}, err
	}
	return fsm.Timing{
		Poll:              poll,
		KeepAliveInterval: keepAlive,
		BootstrapTimeout:  bootstrap,
		BootstrapRetries:  cfg.Timing.BootstrapRetries,
	}, nil
}
