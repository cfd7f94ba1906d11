package alert

import (
	"context"
	"log"

	"github.com/facegate/server/internal/facegate/store"
	"github.com/facegate/server/internal/facegate/types"
	"github.com/facegate/server/internal/metrics"
)

// Channel delivers an alert over one notification transport.  Send is
// attempted at most once per alert; failures are the channel's to report and
// the dispatcher's to swallow.
type Channel interface {
	Name() string
	Send(ctx context.Context, a types.Alert) error
}

// Dispatcher routes alerts.  Every alert goes to the audit sink and the log
// unconditionally; critical and warning alerts additionally fan out to the
// configured channels.  Dispatch never fails from the caller's perspective —
// sink and channel errors are logged and counted, not propagated, so a dead
// SMTP server can not stall the decision path.
type Dispatcher struct {
	sink     store.AlertStore
	channels []Channel
	logger   *log.Logger
	metrics  *metrics.Metrics
}

// NewDispatcher builds a dispatcher.  Only enabled channels should be passed
// in; enablement is a configuration concern resolved at wiring time.
func NewDispatcher(sink store.AlertStore, logger *log.Logger, m *metrics.Metrics, channels ...Channel) *Dispatcher {
	return &Dispatcher{
		sink:     sink,
		channels: channels,
		logger:   logger,
		metrics:  m,
	}
}

// Dispatch records and routes one alert.
func (d *Dispatcher) Dispatch(ctx context.Context, a types.Alert) {
	d.logger.Printf("alert %s [%s]: %s", a.Type, a.Severity, a.Message)
	d.metrics.RecordAlert(string(a.Type), string(a.Severity))

	if err := d.sink.Append(ctx, a); err != nil {
		d.logger.Printf("alert sink append failed: %v", err)
	}

	if !a.Severity.Notifiable() {
		return
	}

	for _, ch := range d.channels {
		if err := ch.Send(ctx, a); err != nil {
			d.logger.Printf("alert channel %s send failed: %v", ch.Name(), err)
			d.metrics.ChannelFailures.WithLabelValues(ch.Name()).Inc()
		}
	}
}
