// Command download fetches a WebAssembly interpreter build for the wasm
// backend. An existing output file is left untouched.
//
//	go run ./internal/tools/download <url> <output>
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/caffeineduck/pyexec/internal/logging"
)

// wasmMagic starts every WebAssembly binary module.
var wasmMagic = []byte{0x00, 'a', 's', 'm'}

var errNotWasm = errors.New("not a WebAssembly module")

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: download <url> <output>")
		os.Exit(1)
	}

	logger, _ := logging.New("info", os.Stderr)
	log := logging.For(logger, "download")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := fetch(ctx, http.DefaultClient, os.Args[1], os.Args[2], log); err != nil {
		log.WithError(err).Error("download failed")
		os.Exit(1)
	}
}

// fetch downloads url to output through a temporary file in the same
// directory, so an interrupted or invalid download never leaves output behind.
func fetch(ctx context.Context, client *http.Client, url, output string, log *logrus.Entry) error {
	if _, err := os.Stat(output); err == nil {
		log.WithField("output", output).Info("already present")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(output), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	header := make([]byte, len(wasmMagic))
	n, err := io.ReadFull(resp.Body, header)
	if err != nil || !bytes.Equal(header, wasmMagic) {
		tmp.Close()
		return fmt.Errorf("%s: %w", url, errNotWasm)
	}

	written, err := io.Copy(tmp, io.MultiReader(bytes.NewReader(header[:n]), resp.Body))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), output); err != nil {
		return err
	}
	log.WithField("output", output).WithField("bytes", written).Info("downloaded")
	return nil
}
