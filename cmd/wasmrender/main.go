// Command wasmrender serves WebAssembly frame renderers over Server-Sent
// Events and runs them locally.
//
// Usage:
//
//	wasmrender serve [-config file.yaml] [-listen addr]
//	wasmrender play [-period 100ms] [-raw] module.wasm
//	wasmrender watch [-url http://host/render] module.wasm
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "wasmrender: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return flag.ErrHelp
	}

	switch args[0] {
	case "serve":
		return serve(ctx, args[1:], stderr)
	case "play":
		return play(ctx, args[1:], stdout, stderr)
	case "watch":
		return watch(ctx, args[1:], stdout, stderr)
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "wasmrender version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return nil
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return nil
	default:
		usage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: wasmrender <command> [flags]

commands:
  serve    run the render HTTP server
  play     run a module locally and print its frames
  watch    send a module to a server and print the streamed frames
  version  print version and exit
`)
}
