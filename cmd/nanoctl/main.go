// Command nanoctl drives a Korg nanoKONTROL2: it logs every control the user
// moves and runs an LED pattern on the transport buttons until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/leandrodaf/nanoctl/internal/config"
	"github.com/leandrodaf/nanoctl/internal/logger"
	"github.com/leandrodaf/nanoctl/sdk/contracts"
	"github.com/leandrodaf/nanoctl/sdk/midi"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, builds the controller and blocks until SIGINT/SIGTERM.
// It returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nanoctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "path to a JSON configuration file")
		debug      = fs.Bool("debug", false, "log every received frame and every MIDI port")
		pattern    = fs.Bool("pattern", true, "run the LED pattern; false only listens")
		backend    = fs.String("backend", "", "MIDI backend: "+strings.Join(midi.Backends(), ", ")+" (default: platform)")
		list       = fs.Bool("list", false, "list MIDI ports and exit")
		logFile    = fs.String("log-file", "", "write logs to this file instead of stderr")
		inIndex    = fs.Int("in", -1, "input port index; -1 picks the first port or a virtual one")
		outIndex   = fs.Int("out", -1, "output port index; -1 picks the first port or a virtual one")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	file, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "nanoctl:", err)
		return 2
	}

	log := logger.NewZapLogger()
	opts := append([]contracts.Option{contracts.WithLogger(log)}, file.Options()...)
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			opts = append(opts, contracts.WithDebugLogging(*debug))
			if *debug {
				opts = append(opts, contracts.WithLogLevel(contracts.DebugLevel))
			}
		case "pattern":
			opts = append(opts, contracts.WithRunPattern(*pattern))
		case "backend":
			opts = append(opts, contracts.WithBackend(*backend))
		case "log-file":
			opts = append(opts, contracts.WithLogFilePath(*logFile))
		case "in":
			opts = append(opts, contracts.WithInputIndex(*inIndex))
		case "out":
			opts = append(opts, contracts.WithOutputIndex(*outIndex))
		}
	})

	ctrl, err := midi.NewController(opts...)
	if err != nil {
		log.Error("Failed to initialize MIDI controller", log.Field().Error("error", err))
		return initExitCode(err)
	}

	if *list {
		defer ctrl.Close()
		infos, err := ctrl.Ports()
		if err != nil {
			log.Error("Failed to list MIDI ports", log.Field().Error("error", err))
			return 1
		}
		for _, info := range infos {
			prefix := "In"
			if info.Direction == contracts.Output {
				prefix = "Out"
			}
			fmt.Fprintf(stdout, "%s: %d %s\n", prefix, info.Index, info.Name)
		}
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ctrl.Run(ctx); err != nil {
		log.Error("MIDI controller stopped", log.Field().Error("error", err))
		return 1
	}
	return 0
}

// initExitCode maps a NewController error to an exit status: 2 when the
// flags or configuration asked for something invalid, 1 otherwise.
func initExitCode(err error) int {
	if errors.Is(err, midi.ErrInvalidOptions) || errors.Is(err, midi.ErrUnknownBackend) {
		return 2
	}
	return 1
}
