package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/PaulChelaru/petfinder-matching-service/internal/cli"
	"github.com/PaulChelaru/petfinder-matching-service/internal/config"
	"github.com/PaulChelaru/petfinder-matching-service/internal/logging"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "consume", "worker":
		return runConsume(args[1:])
	case "match":
		return runMatch(args[1:])
	case "publish":
		return runPublish(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "petmatch CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  petmatch <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health    Verify announcement store connectivity")
	fmt.Fprintln(os.Stderr, "  consume   Consume announcement-created events and match them")
	fmt.Fprintln(os.Stderr, "  worker    Alias for consume")
	fmt.Fprintln(os.Stderr, "  match     Run the matching pipeline once for one announcement")
	fmt.Fprintln(os.Stderr, "  publish   Publish one announcement-created event")
	fmt.Fprintln(os.Stderr, "  validate  Validate event JSON files against the event schema")
	fmt.Fprintln(os.Stderr, "  serve     Start the match API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"petmatch <command> -h\" for command-specific flags.")
}

// bootstrap loads the .env file, the configuration and the logger the same
// way for every command. A non-zero code means the command should exit.
func bootstrap(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, int) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, zerolog.Nop(), 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return nil, zerolog.Nop(), 1
	}
	return cfg, logger, 0
}
