package protocol

import "time"

// EnvelopeItemType 区分 envelope 内条目的载荷类型。
type EnvelopeItemType string

const (
	ItemTypeEvent       EnvelopeItemType = "event"
	ItemTypeSession     EnvelopeItemType = "session"
	ItemTypeTransaction EnvelopeItemType = "transaction"
	ItemTypeFeedback    EnvelopeItemType = "feedback"
)

// Envelope 是交给 transport 的批量载荷，对 Hub 不透明。
type Envelope struct {
	Header EnvelopeHeader  `msgpack:"header"`
	Items  []*EnvelopeItem `msgpack:"items"`
}

type EnvelopeHeader struct {
	EventID EventID   `msgpack:"event_id,omitempty"`
	SentAt  time.Time `msgpack:"sent_at"`
}

type EnvelopeItem struct {
	Type    EnvelopeItemType `msgpack:"type"`
	Payload any              `msgpack:"payload"`
}

func NewEnvelope(id EventID) *Envelope {
	return &Envelope{
		Header: EnvelopeHeader{EventID: id, SentAt: time.Now().UTC()},
		Items:  make([]*EnvelopeItem, 0, 1),
	}
}

func (e *Envelope) Add(t EnvelopeItemType, payload any) {
	e.Items = append(e.Items, &EnvelopeItem{Type: t, Payload: payload})
}
