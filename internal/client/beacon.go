package client

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alexanderramin/tempo/internal/contract"
)

const defaultBeaconTimeout = 2 * time.Second

// Beacon sends requests that must not hold up process teardown. Each send
// runs on its own goroutine and nothing is reported back to the caller.
type Beacon struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewBeacon(baseURL string, timeout time.Duration, logger *slog.Logger) *Beacon {
	if timeout <= 0 {
		timeout = defaultBeaconTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Beacon{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (b *Beacon) SendBestEffort(endpoint string, payload []byte) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		req, err := http.NewRequest(http.MethodPost, b.baseURL+endpoint, bytes.NewReader(payload))
		if err != nil {
			b.logger.Debug("beacon request", "endpoint", endpoint, "error", err)
			return
		}
		req.Header.Set("Content-Type", contract.CBORContentType)
		resp, err := b.http.Do(req)
		if err != nil {
			b.logger.Debug("beacon send", "endpoint", endpoint, "error", err)
			return
		}
		resp.Body.Close()
	}()
}

// Drain waits for in-flight sends until ctx ends. A process calls it on
// exit with a short grace period; sends still running are abandoned.
func (b *Beacon) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
