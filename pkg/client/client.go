// Package client implements the capture collaborator of the Hub: it applies
// scope snapshots to outgoing items, envelopes them and hands them to the
// transport through the background worker.
package client

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stleox/caphub/pkg/config"
	"github.com/stleox/caphub/pkg/hub"
	"github.com/stleox/caphub/pkg/protocol"
	"github.com/stleox/caphub/pkg/transport"
	"github.com/stleox/caphub/pkg/worker"
)

// Client 是 hub.Client 的标准实现。
type Client struct {
	options   *config.Options
	transport transport.Transport
	workers   *worker.Manager

	// 可选落库
	olap *Olap

	// 可选的 otel transaction 导出
	exporter *Exporter
}

var _ hub.Client = (*Client)(nil)

// New 构造 client；tp 为 nil 时按 DSN 建 HTTP transport。
func New(options *config.Options, tp transport.Transport) (*Client, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	if tp == nil {
		htp, err := transport.NewHTTPTransport(options.DSN)
		if err != nil {
			return nil, err
		}
		tp = htp
	}

	c := &Client{
		options:   options,
		transport: tp,
		workers:   worker.NewManager(config.DefaultQueueSize, config.DefaultNumWorkers),
	}

	if options.OlapDSN != "" {
		c.olap = NewOlap(options.OlapDSN)
	}

	exporter, err := NewExporter(options.Exporter)
	if err != nil {
		logrus.WithError(err).Warn("Caphub couldn't init transaction exporter")
	} else {
		c.exporter = exporter
	}

	if options.FlushSchedule != "" {
		_ = c.workers.Schedule(options.FlushSchedule, func() {
			c.Flush(config.DefaultShutdownTimeout)
		})
	}
	return c, nil
}

// submit 把 envelope 投递交给后台队列，队列满时降级为同步发送。
func (c *Client) submit(envelope *protocol.Envelope) {
	send := func() {
		if err := c.transport.SendEnvelope(envelope); err != nil {
			logrus.WithError(err).Warn("Caphub couldn't send envelope")
		}
	}
	if err := c.workers.Submit(send); err != nil {
		send()
	}
}

// prepareEvent 补默认字段并合并 scope。
func (c *Client) prepareEvent(event *protocol.Event, scope *hub.Scope) {
	if event.ID == protocol.EmptyEventID {
		event.ID = protocol.NewEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Release == "" {
		event.Release = c.options.Release
	}
	if event.Environment == "" {
		event.Environment = c.options.Environment
	}
	if scope != nil {
		scope.ApplyToEvent(event)
	}
}

func (c *Client) CaptureEvent(event *protocol.Event, scope *hub.Scope, hint hub.Hint) protocol.EventID {
	if event == nil {
		return protocol.EmptyEventID
	}
	c.prepareEvent(event, scope)

	envelope := protocol.NewEnvelope(event.ID)
	envelope.Add(protocol.ItemTypeEvent, event)
	c.submit(envelope)

	c.olap.InsertEvent(event)
	return event.ID
}

func (c *Client) CaptureMessage(message string, level protocol.Level, scope *hub.Scope) protocol.EventID {
	event := protocol.EventFromMessage(message, level)
	if event == nil {
		return protocol.EmptyEventID
	}
	return c.CaptureEvent(event, scope, nil)
}

func (c *Client) CaptureSession(session *protocol.Session, hint hub.Hint) {
	if session == nil {
		return
	}
	envelope := protocol.NewEnvelope(protocol.EmptyEventID)
	envelope.Add(protocol.ItemTypeSession, session)
	c.submit(envelope)
}

// transactionPayload 是 transaction 的外发投影。
type transactionPayload struct {
	Name      string                   `msgpack:"transaction"`
	Trace     *protocol.TraceContext   `msgpack:"trace"`
	StartTime time.Time                `msgpack:"start_timestamp"`
	EndTime   time.Time                `msgpack:"timestamp"`
	Spans     []*protocol.TraceContext `msgpack:"spans,omitempty"`
}

func (c *Client) CaptureTransaction(t *hub.Transaction, scope *hub.Scope, hint hub.Hint) {
	if t == nil {
		return
	}
	payload := &transactionPayload{
		Name:      t.Name,
		Trace:     t.TraceContext(),
		StartTime: t.StartTime,
		EndTime:   t.EndTime,
	}
	for _, child := range t.Children() {
		payload.Spans = append(payload.Spans, child.TraceContext())
	}

	envelope := protocol.NewEnvelope(protocol.EmptyEventID)
	envelope.Add(protocol.ItemTypeTransaction, payload)
	c.submit(envelope)

	c.exporter.ExportTransaction(t)
}

func (c *Client) CaptureUserFeedback(feedback *protocol.UserFeedback) error {
	if feedback == nil {
		return nil
	}
	envelope := protocol.NewEnvelope(feedback.EventID)
	envelope.Add(protocol.ItemTypeFeedback, feedback)
	c.submit(envelope)
	return nil
}

func (c *Client) CaptureEnvelope(envelope *protocol.Envelope, hint hub.Hint) error {
	if envelope == nil {
		return hub.ErrNilEnvelope
	}
	return c.transport.SendEnvelope(envelope)
}

func (c *Client) Flush(timeout time.Duration) bool {
	drained := c.workers.Flush(timeout)
	c.olap.Flush()
	return c.transport.Flush(timeout) && drained
}

// Close 尽力在 timeout 内收尾：停 worker、刷 transport、关导出器。
func (c *Client) Close(timeout time.Duration) {
	c.workers.Close(timeout)
	c.olap.Flush()
	c.transport.Flush(timeout)
	c.transport.Close()
	c.exporter.Shutdown(timeout)
}
