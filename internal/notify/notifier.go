// Package notify consumes assessment lifecycle events and forwards them
// to a delivery channel such as email. The core state machine never
// blocks on any of this; a lost notification is recoverable from the
// assessment status endpoint.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"hushhire/internal/assessment/model"
	"hushhire/internal/common/mq"
	"hushhire/pkg/utils/logger"
)

// Sender delivers one rendered notification to the candidate or the
// hiring manager.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Notification is one rendered message ready for delivery.
type Notification struct {
	AssessmentID int64
	CandidateID  int64
	Event        model.EventType
	Subject      string
	Body         string
}

// Notifier subscribes to the lifecycle event topic and translates events
// into notifications.
type Notifier struct {
	consumer mq.Consumer
	sender   Sender
	topic    string
}

// NewNotifier creates a notifier on the given event topic.
func NewNotifier(consumer mq.Consumer, sender Sender, topic string) *Notifier {
	return &Notifier{consumer: consumer, sender: sender, topic: topic}
}

// Subscribe registers the event handler. Call Start on the underlying
// consumer afterwards.
func (n *Notifier) Subscribe(ctx context.Context) error {
	return n.consumer.Subscribe(ctx, n.topic, n.HandleMessage)
}

// HandleMessage decodes one lifecycle event and delivers the matching
// notification. Events with no notification mapped are acknowledged
// silently so the queue does not redeliver them.
func (n *Notifier) HandleMessage(ctx context.Context, msg *mq.Message) error {
	var event model.Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		logger.Warn(ctx, "discard malformed lifecycle event",
			zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}

	notification, ok := render(event)
	if !ok {
		return nil
	}
	if err := n.sender.Send(ctx, notification); err != nil {
		logger.Error(ctx, "notification delivery failed",
			zap.Int64("assessment_id", event.AssessmentID),
			zap.String("event", string(event.Type)),
			zap.Error(err))
		return err
	}
	logger.Info(ctx, "notification sent",
		zap.Int64("assessment_id", event.AssessmentID),
		zap.String("event", string(event.Type)))
	return nil
}

func render(event model.Event) (Notification, bool) {
	n := Notification{
		AssessmentID: event.AssessmentID,
		CandidateID:  event.CandidateID,
		Event:        event.Type,
	}
	switch event.Type {
	case model.EventAssessmentSent:
		n.Subject = "Your coding assessment is ready"
		n.Body = fmt.Sprintf("You have been invited to a coding assessment. Use token %s to begin.", event.Token)
	case model.EventAssessmentAccepted:
		n.Subject = "Assessment accepted"
		n.Body = "The candidate accepted the assessment invitation."
	case model.EventAssessmentFinished:
		n.Subject = "Assessment submitted"
		n.Body = "The candidate submitted their solution. Evaluation is queued."
	case model.EventAssessmentScored:
		n.Subject = "Assessment scored"
		n.Body = "Evaluation finished. The score is available on the assessment page."
	case model.EventEvaluationFailed:
		n.Subject = "Evaluation failed"
		n.Body = "Automatic evaluation failed. The submission is kept and will be retried."
	case model.EventAssessmentExpired:
		n.Subject = "Assessment invitation expired"
		n.Body = "The invitation expired before the candidate accepted it."
	case model.EventAssessmentCancelled:
		n.Subject = "Assessment cancelled"
		n.Body = "The assessment was cancelled by the hiring manager."
	default:
		return Notification{}, false
	}
	return n, true
}

// LogSender is the default Sender: it records the notification in the
// service log. Swap in an SMTP or webhook sender in deployments that
// deliver for real.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, n Notification) error {
	logger.Info(ctx, "notification",
		zap.Int64("assessment_id", n.AssessmentID),
		zap.Int64("candidate_id", n.CandidateID),
		zap.String("event", string(n.Event)),
		zap.String("subject", n.Subject))
	return nil
}
