package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/mzyy94/airbeagle/internal/config"
	"github.com/mzyy94/airbeagle/internal/logging"
)

const usage = `usage: airbeagle <command> [flags]

commands:
  info                             show device information
  ports                            list serial ports
  partner [--set ID | --generate]  show or set the partner id
  books                            list books on the device
  delete ID                        delete a book
  virgin --yes                     reset the device to factory state
  upload [--title T] [--author A] [--id ID] IMAGES...
                                   render images into a book and upload it
  utility --index N IMAGE          store a utility page
  preview --out FILE IMAGES...     write a PDF of the rendered pages
  serve                            run the HTTP API and advertise it over mDNS

global flags:
  --config FILE     settings file (TOML)
  --device ADDR     serial device or tcp://host:port
  --baud N          serial baud rate
  --log-level LVL   trace, debug, info, warn, error or off
`

// errUsage marks errors that should be followed by the usage text.
var errUsage = errors.New("invalid usage")

// globals are the flags every command accepts.
type globals struct {
	configPath string
	device     string
	baud       int
	logLevel   string
}

func (g *globals) register(fs *pflag.FlagSet) {
	fs.StringVar(&g.configPath, "config", "", "settings file (TOML)")
	fs.StringVar(&g.device, "device", "", "serial device or tcp://host:port")
	fs.IntVar(&g.baud, "baud", 0, "serial baud rate")
	fs.StringVar(&g.logLevel, "log-level", "", "log level")
}

// settings resolves defaults, the config file, the environment and the flags
// that were set on fs, in that order.
func (g *globals) settings(fs *pflag.FlagSet) (config.Settings, error) {
	s, err := config.Load(g.configPath)
	if err != nil {
		return config.Settings{}, err
	}
	if fs.Changed("device") {
		s.Device = g.device
	}
	if fs.Changed("baud") {
		s.Baud = g.baud
	}
	if fs.Changed("log-level") {
		s.LogLevel = g.logLevel
	}
	if err := s.Validate(); err != nil {
		return config.Settings{}, err
	}

	logCfg := logging.FromEnv()
	if level, ok := logging.ParseLevel(s.LogLevel); ok {
		logCfg.Level = level
	} else {
		return config.Settings{}, fmt.Errorf("bad log level %q", s.LogLevel)
	}
	logging.Configure(logCfg)
	return s, nil
}

// command is one subcommand. args excludes the command name.
type command func(ctx context.Context, env *env, args []string) error

// env is what commands write to.
type env struct {
	stdout io.Writer
	stderr io.Writer
}

var commands = map[string]command{
	"info":    runInfo,
	"ports":   runPorts,
	"partner": runPartner,
	"books":   runBooks,
	"delete":  runDelete,
	"virgin":  runVirgin,
	"upload":  runUpload,
	"utility": runUtility,
	"preview": runPreview,
	"serve":   runServe,
}

func run(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		fmt.Fprint(e.stdout, usage)
		return nil
	}
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
	return cmd(ctx, e, args[1:])
}

func main() {
	logging.Configure(logging.FromEnv())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	e := &env{stdout: os.Stdout, stderr: os.Stderr}
	err := run(ctx, e, os.Args[1:])
	switch {
	case err == nil:
	case errors.Is(err, pflag.ErrHelp):
	case errors.Is(err, errUsage):
		fmt.Fprintf(os.Stderr, "airbeagle: %v\n\n%s", err, usage)
		os.Exit(2)
	default:
		log.Debug().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "airbeagle: %v\n", err)
		os.Exit(1)
	}
}
