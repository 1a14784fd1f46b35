package testjson

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// MaxLineSize bounds a single event line.
const MaxLineSize = 4 * 1024 * 1024

// scanResult carries a scanned line or terminal error from the scanner goroutine.
type scanResult struct {
	line []byte
	err  error
}

// Stream decodes events line by line and calls fn for each one. It stops on
// EOF, when fn returns an error, or when ctx is cancelled. Lines that are not
// JSON events are skipped and counted as malformed.
//
// On cancellation Stream closes r if it implements io.Closer to unblock the
// scanner goroutine. Otherwise the caller must close the underlying reader.
func Stream(ctx context.Context, r io.Reader, fn ProcessFunc) (malformed int, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	lines := make(chan scanResult)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			// Copy bytes; the scanner reuses its buffer.
			cp := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- scanResult{line: cp}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case lines <- scanResult{err: err}:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			if c, ok := r.(io.Closer); ok {
				_ = c.Close()
			}
			return malformed, ctx.Err()
		case res, ok := <-lines:
			if !ok {
				return malformed, nil
			}
			if res.err != nil {
				return malformed, fmt.Errorf("scanning test output: %w", res.err)
			}
			if len(res.line) == 0 {
				continue
			}
			var event TestEvent
			if err := json.Unmarshal(res.line, &event); err != nil || event.Action == "" {
				malformed++
				continue
			}
			if err := fn(event); err != nil {
				return malformed, err
			}
		}
	}
}
