package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jacoelho/ecslog/internal/config"
	"github.com/jacoelho/ecslog/internal/exit"
)

func main() {
	exitCode := run(os.Args, os.Stdin, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, exitResult := config.Parse(args)
	if exitResult != nil {
		exitResult.Print(stdout, stderr)
		return exitResult.ExitCode
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch cfg.Command {
	case config.CommandServe:
		err = serve(ctx, cfg, stdout)
	case config.CommandEncode:
		err = encode(cfg, stdin, stdout)
	case config.CommandLocate:
		err = locate(cfg, stdin, stdout)
	}

	if err != nil {
		exitResult = exit.Errorf("Error: %v\n", err)
		exitResult.Print(stdout, stderr)
		return exitResult.ExitCode
	}
	return 0
}
