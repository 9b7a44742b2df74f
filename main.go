package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
)

const releaseVersion = "0.1.0"

var devMode bool

// initLogging applies the logging part of cfg to the standard logger and
// the global application logger. The returned func closes any opened files.
func initLogging(cfg AppConfig) (func(), error) {
	var logFile *os.File
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		log.SetOutput(io.MultiWriter(os.Stderr, logFile))
	}

	logger, err := NewAppLogger(cfg.toLogConfig())
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	appLogger = logger

	if appLogger.IsEnabled() {
		DebugLog("Extended logging enabled")
	}

	return func() {
		CloseAppLogger()
		appLogger = nil
		if logFile != nil {
			log.SetOutput(os.Stderr)
			logFile.Close()
		}
	}, nil
}

// run executes one CLI invocation against the given streams.
func run(ctx context.Context, c *cli, args []string, in io.Reader, out, errOut io.Writer) error {
	cmd := newRootCmd(c)
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	err := cmd.ExecuteContext(ctx)
	c.finish(errOut)
	return err
}

func main() {
	log.SetFlags(log.LstdFlags)
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, &cli{}, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, renderNotice(noticeError, "Error: "+err.Error()))
		stop()
		os.Exit(1)
	}
}
