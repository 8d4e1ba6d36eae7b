package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// httpDoer is the part of *http.Client the adapters use
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// doJSON sends req and decodes a JSON body into out. Non-2xx responses are
// transport errors; the body is kept in the error for the logs.
func doJSON(client httpDoer, provider string, req *http.Request, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return transportError(provider, "payment provider is unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(provider, "failed to read payment provider response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return transportError(provider, "payment provider returned an error",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return transportError(provider, "unexpected payment provider response", fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

// withTimeout bounds ctx by timeout. A zero timeout leaves ctx unbounded.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
