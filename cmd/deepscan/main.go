package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/common"
	"github.com/ternarybob/deepscan/internal/report"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	baseURL      = flag.String("base-url", "", "Detection service base URL (overrides config)")
	outputFormat = flag.String("format", "", "Report format: text, json, yaml, markdown (overrides config)")
	verbose      = flag.Bool("verbose", false, "Keep info logging for one-shot commands")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// Global state
	config *common.Config
	logger arbor.ILogger
	format report.Format
)

// command is one subcommand; it returns the process exit code
type command struct {
	summary string
	run     func(args []string) int
	oneShot bool // Quiet logging unless -verbose
}

var commands = map[string]command{
	"analyze": {"Upload a video, wait for the verdict and print the report", runAnalyze, true},
	"status":  {"Show the remote status of a job", runStatus, true},
	"results": {"Fetch and render the results of a completed job", runResults, true},
	"jobs":    {"List jobs known to the detection service", runJobs, true},
	"health":  {"Probe the detection service", runHealth, true},
	"history": {"List or show locally recorded analyses", runHistory, true},
	"serve":   {"Run the HTTP API and job stream", runServe, false},
	"version": {"Print version information", runVersion, true},
}

func init() {
	// Register custom flag for multiple config files
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
	flag.Usage = usage
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		os.Exit(runVersion(nil))
	}

	name := "serve"
	args := flag.Args()
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}
	if name == "version" {
		os.Exit(cmd.run(args))
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> .env -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner (serve only, one-shot output stays clean)
	if len(configFiles) == 0 {
		if _, err := os.Stat("deepscan.toml"); err == nil {
			configFiles = append(configFiles, "deepscan.toml")
		} else if _, err := os.Stat("deployments/local/deepscan.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/deepscan.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, *baseURL, *outputFormat)

	format, err = report.ParseFormat(config.Report.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if cmd.oneShot && !*verbose && config.Logging.Level != "debug" {
		config.Logging.Level = "warn"
	}
	logger = common.InitLogger(config)

	if !cmd.oneShot {
		common.InstallCrashHandler("")
		defer common.RecoverWithCrashFile()
		common.PrintBanner(config, logger)
	}

	logger.Debug().
		Strs("config_files", configFiles).
		Str("service", config.Service.BaseURL).
		Str("format", string(format)).
		Str("command", name).
		Msg("Resolved configuration")

	os.Exit(cmd.run(args))
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: deepscan [flags] <command> [args]\n\nCommands:\n")
	for _, name := range []string{"analyze", "status", "results", "jobs", "health", "history", "serve", "version"} {
		fmt.Fprintf(out, "  %-9s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(out, "\nFlags:\n")
	flag.PrintDefaults()
}

// fail reports a command error on stderr and returns the exit code
func fail(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}
