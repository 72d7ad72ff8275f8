package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rapidriter/wasm-renderer/domain/entities"
	"github.com/rapidriter/wasm-renderer/driver"
	"github.com/rapidriter/wasm-renderer/host"
	"github.com/rapidriter/wasm-renderer/pacer"
)

func play(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	fs.SetOutput(stderr)
	period := fs.Duration("period", pacer.DefaultPeriod, "Delay between frames (0 disables pacing)")
	raw := fs.Bool("raw", false, "Print base64 frames instead of ASCII art")
	maxIndex := fs.Uint("max-index", uint(entities.MaxFrameIndex), "Last frame index to render")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("play takes exactly one module path")
	}
	if *maxIndex > uint(entities.MaxFrameIndex) {
		return fmt.Errorf("max-index must not exceed %d", entities.MaxFrameIndex)
	}

	wasm, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	executor, err := host.NewExecutor(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = executor.Close(context.WithoutCancel(ctx)) }()

	renderer, err := executor.Load(ctx, wasm)
	if err != nil {
		return err
	}
	defer func() { _ = renderer.Close(context.WithoutCancel(ctx)) }()

	runner := driver.NewRunner(renderer, driver.WithMaxIndex(entities.FrameIndex(*maxIndex)))
	src := driver.Paced(runner, pacer.NewLimiter(*period))
	start := time.Now()
	for {
		ev, ok, err := src.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		switch ev.Kind {
		case entities.EventScreenUpdate:
			printFrame(stdout, ev.Index, &ev.Frame, *raw)
		case entities.EventEnd:
			fmt.Fprintf(stdout, "end after %s\n", time.Since(start).Round(time.Millisecond))
		}
	}
}

func printFrame(w io.Writer, i entities.FrameIndex, f *entities.Frame, raw bool) {
	if raw {
		fmt.Fprintln(w, f.Encode())
		return
	}
	fmt.Fprintf(w, "frame %d\n%s\n", i, f.ASCII())
}
