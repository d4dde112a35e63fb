// Studycoach is a study assistant that answers questions over uploaded
// lecture material and remembers what each learner has worked on.
//
// Configuration is loaded from a single YAML file discovered automatically
// (see [config.DefaultSearchPaths]); without one the built-in defaults run
// fully offline against the mock model.
//
// Usage:
//
//	studycoach serve                   Start the HTTP and websocket server
//	studycoach chat                    Interactive chat on stdin
//	studycoach ask <question>          Ask a single question
//	studycoach index <root> [pattern]  Index lecture material (default: markdown, text, HTML and PDF)
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hupe1980/studycoach"
	"github.com/hupe1980/studycoach/config"
	"github.com/hupe1980/studycoach/logging"
)

// defaultIndexPattern selects every supported document below the root.
const defaultIndexPattern = "**/*.{md,markdown,txt,text,html,htm,pdf}"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the testable entry point. Logs go to stderr; answers go to stdout.
func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) error {
	var (
		configPath string
		command    string
		cmdArgs    []string
	)
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command == "" {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
			cmdArgs = append(cmdArgs, args[i])
		}
	}

	switch command {
	case "serve":
		return withCoach(ctx, stderr, configPath, func(c *studycoach.Coach) error {
			return runServe(ctx, c)
		})
	case "chat":
		return withCoach(ctx, stderr, configPath, func(c *studycoach.Coach) error {
			return runChat(ctx, c, stdin, stdout)
		})
	case "ask":
		if len(cmdArgs) == 0 {
			return errors.New("usage: studycoach ask <question>")
		}
		return withCoach(ctx, stderr, configPath, func(c *studycoach.Coach) error {
			return runAsk(ctx, c, stdout, strings.Join(cmdArgs, " "))
		})
	case "index":
		if len(cmdArgs) == 0 || len(cmdArgs) > 2 {
			return errors.New("usage: studycoach index <root> [pattern]")
		}
		pattern := defaultIndexPattern
		if len(cmdArgs) == 2 {
			pattern = cmdArgs[1]
		}
		return withCoach(ctx, stderr, configPath, func(c *studycoach.Coach) error {
			return runIndex(ctx, c, stdout, cmdArgs[0], pattern)
		})
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) error {
	_, err := fmt.Fprint(w, `Usage: studycoach [-config path] <command> [args]

Commands:
  serve                   Start the HTTP and websocket server
  chat                    Interactive chat on stdin
  ask <question>          Ask a single question
  index <root> [pattern]  Index lecture material below root
`)
	return err
}

// loadConfig finds and loads the configuration. An explicit path must exist;
// otherwise a missing file falls back to the defaults.
func loadConfig(explicit string) (*config.Config, string, error) {
	path, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		return config.Default(), "", nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, path, nil
}

func withCoach(ctx context.Context, stderr io.Writer, configPath string, fn func(c *studycoach.Coach) error) error {
	cfg, path, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	_, isFile := stderr.(*os.File)
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.LogFormat,
		Output:    stderr,
		NoColor:   !isFile,
		Component: "studycoach",
	})
	if path == "" {
		logger.Info("config.defaults", "reason", "no config file found")
	} else {
		logger.Debug("config.loaded", "path", path)
	}

	coach, err := studycoach.New(ctx, cfg, func(o *studycoach.Options) {
		o.Logger = logger
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := coach.Close(); cerr != nil {
			logger.Warn("studycoach.close_failed", "error", cerr.Error())
		}
	}()
	return fn(coach)
}
