package concurrency

import (
	"bufio"
	"encoding/json"
	"fmt"
)

// WriteSSE frames one event per the text/event-stream wire format and
// flushes it immediately, so a streaming turn's events reach the
// client as they're produced rather than buffered. No example repo in
// the pack carries an SSE-framing library, so this is hand-rolled
// (documented in DESIGN.md).
func WriteSSE(w *bufio.Writer, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", body); err != nil {
		return err
	}
	return w.Flush()
}
