package notify

import (
	"context"

	"lead-intake/internal/common/logger"
)

// Transport delivers a rendered message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier renders events and hands them to a Transport. Delivery is best
// effort: failures are logged and never returned.
type Notifier struct {
	transport Transport
	logger    logger.Logger
}

func New(transport Transport, log logger.Logger) *Notifier {
	return &Notifier{
		transport: transport,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

func (n *Notifier) CaseCreated(ctx context.Context, e Event) {
	n.send(ctx, KindCaseCreated, e)
}

// DuplicateDetected names the owner of the prior case.
func (n *Notifier) DuplicateDetected(ctx context.Context, e Event) {
	n.send(ctx, KindDuplicate, e)
}

func (n *Notifier) SyncFailed(ctx context.Context, e Event) {
	n.send(ctx, KindSyncFailed, e)
}

func (n *Notifier) MirrorExhausted(ctx context.Context, e Event) {
	n.send(ctx, KindMirrorExhausted, e)
}

func (n *Notifier) send(ctx context.Context, kind Kind, e Event) {
	msg, err := Render(kind, e)
	if err != nil {
		n.logger.Error("failed to render notification", map[string]interface{}{
			"kind":  string(kind),
			"error": err.Error(),
		})
		return
	}

	if err := n.transport.Send(ctx, msg); err != nil {
		n.logger.Warn("notification not delivered", map[string]interface{}{
			"kind":               string(kind),
			"consultationNumber": e.ConsultationNumber,
			"error":              err.Error(),
		})
		return
	}

	n.logger.Debug("notification sent", map[string]interface{}{
		"kind":               string(kind),
		"consultationNumber": e.ConsultationNumber,
	})
}
