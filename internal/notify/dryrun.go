package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// DryRunPublisher prints what would be published without contacting a broker.
type DryRunPublisher struct {
	mu sync.Mutex
	w  io.Writer
	n  int
}

// NewDryRunPublisher creates a dry-run publisher writing to w (stdout when nil).
func NewDryRunPublisher(w io.Writer) *DryRunPublisher {
	if w == nil {
		w = os.Stdout
	}
	return &DryRunPublisher{w: w}
}

// Publish prints the topic and the indented payload.
func (p *DryRunPublisher) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	fmt.Fprintf(p.w, "--- Message %d (%s) ---\n", p.n, topic)
	fmt.Fprintln(p.w, string(data))
	fmt.Fprintf(p.w, "\n(Length: %d bytes)\n\n", len(data))
	return nil
}

func (p *DryRunPublisher) Close() error {
	return nil
}
