package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rapidriter/wasm-renderer/domain/entities"
	"github.com/rapidriter/wasm-renderer/stream"
)

func watch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	url := fs.String("url", "http://127.0.0.1:8080/render", "Render endpoint")
	connectTimeout := fs.Duration("connect-timeout", 5*time.Second, "Dial timeout")
	raw := fs.Bool("raw", false, "Print base64 frames instead of ASCII art")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("watch takes exactly one module path")
	}

	wasm, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	body, err := json.Marshal(entities.RenderRequest{Wasm: base64.StdEncoding.EncodeToString(wasm)})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	client := &http.Client{Transport: &http.Transport{
		DialContext: (&net.Dialer{Timeout: *connectTimeout}).DialContext,
	}}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var detail entities.ErrorDetail
		if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
			return fmt.Errorf("server answered %s", resp.Status)
		}
		return fmt.Errorf("server answered %s: %w", resp.Status, &detail)
	}

	return printStream(resp.Body, stdout, *raw)
}

// printStream prints frames until the end event.
func printStream(r io.Reader, w io.Writer, raw bool) error {
	dec := stream.NewDecoder(r)
	var i entities.FrameIndex
	for {
		msg, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("stream closed before end")
		}
		if err != nil {
			return err
		}

		switch msg.Event {
		case entities.EventNameScreenUpdate:
			f, err := entities.DecodeFrame(msg.Data)
			if err != nil {
				return err
			}
			printFrame(w, i, &f, raw)
			i++
		case entities.EventNameEnd:
			fmt.Fprintf(w, "end after %d frames\n", i)
			return nil
		case entities.EventNameError:
			var detail entities.ErrorDetail
			if err := json.Unmarshal([]byte(msg.Data), &detail); err != nil {
				return fmt.Errorf("stream failed: %s", msg.Data)
			}
			return fmt.Errorf("stream failed: %w", &detail)
		}
	}
}
