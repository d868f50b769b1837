// Package transport delivers msgpack-encoded envelopes to the DSN endpoint.
// The coordination core never touches it directly; only the client does.
package transport

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stleox/caphub/pkg/protocol"
	"github.com/vmihailenco/msgpack/v5"
)

// Transport 的实现负责自身的线程安全。
type Transport interface {
	SendEnvelope(envelope *protocol.Envelope) error
	Flush(timeout time.Duration) bool
	Close()
}

// HTTPTransport POST msgpack 编码的 envelope 到 DSN 指向的端点。
type HTTPTransport struct {
	endpoint string
	client   *http.Client

	wg sync.WaitGroup
}

// EndpointFromDSN 仅做最小解析：scheme://host[/project]。
// DSN 的完整校验不在本层职责内。
func EndpointFromDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", fmt.Errorf("empty DSN")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parsing DSN: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("DSN %q has no host", dsn)
	}
	project := strings.TrimPrefix(u.Path, "/")
	if project == "" {
		project = "0"
	}
	return fmt.Sprintf("%s://%s/api/%s/envelope", u.Scheme, u.Host, project), nil
}

func NewHTTPTransport(dsn string) (*HTTPTransport, error) {
	endpoint, err := EndpointFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	return &HTTPTransport{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
	}, nil
}

func (t *HTTPTransport) SendEnvelope(envelope *protocol.Envelope) error {
	body, err := msgpack.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	t.wg.Add(1)
	defer t.wg.Done()

	resp, err := t.client.Post(t.endpoint, "application/msgpack", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sending envelope: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("endpoint replied %s", resp.Status)
	}
	return nil
}

// Flush 等待在途请求结束，最多 timeout。
func (t *HTTPTransport) Flush(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		logrus.Warnf("Caphub couldn't flush transport within %s", timeout)
		return false
	}
}

func (t *HTTPTransport) Close() {
	t.client.CloseIdleConnections()
}

// RecordingTransport 收集 envelope 供测试断言。
type RecordingTransport struct {
	mu        sync.Mutex
	Envelopes []*protocol.Envelope
}

func (t *RecordingTransport) SendEnvelope(envelope *protocol.Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Envelopes = append(t.Envelopes, envelope)
	return nil
}

func (t *RecordingTransport) Flush(time.Duration) bool { return true }

func (t *RecordingTransport) Close() {}

func (t *RecordingTransport) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Envelopes)
}
