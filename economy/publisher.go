package economy

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Names of the events sent to publishers.
const (
	EventCurrencyAdded      = "currency_added"
	EventCurrencyAddFailed  = "currency_add_failed"
	EventCurrencyTaken      = "currency_taken"
	EventCurrencyTakeFailed = "currency_take_failed"
)

type PublisherEvent struct {
	Name      string            `json:"name,omitempty"`
	Id        string            `json:"id,omitempty"`
	Timestamp int64             `json:"timestamp,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Value     string            `json:"value,omitempty"`

	// Result is the outcome that triggered the event.
	Result OperationResult `json:"-"`
	// SourceId is the currency ID.
	SourceId string `json:"-"`
	// Source is the currency that produced the event.
	Source Currency `json:"-"`
}

// The Publisher describes a service that wishes to receive analytics-style events generated by
// external wallet operations. Internal operations are silent and never reach a publisher.
//
// Publisher implementations must safely handle concurrent calls. Errors and retries are the
// publisher's business; callers will not repeat calls.
type Publisher interface {
	// Send is called when there are one or more events generated.
	Send(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, events []*PublisherEvent)
}
