package vault

import (
	"context"

	"github.com/rosterbridge/vendor-portal/pkg/common/kafka"
)

// KafkaNotifier publishes high/critical alerts to the security-alerts topic,
// where the paging/SIEM consumers pick them up.
type KafkaNotifier struct {
	producer *kafka.Producer
}

func NewKafkaNotifier(producer *kafka.Producer) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

func (n *KafkaNotifier) Notify(ctx context.Context, alert SecurityAlert) error {
	return n.producer.PublishEvent(ctx, "security_alert", "vault-service", map[string]interface{}{
		"alert_id":          alert.ID.String(),
		"alert_type":        alert.AlertType,
		"severity":          alert.Severity,
		"requestor_id":      alert.RequestorID,
		"requestor_type":    alert.RequestorType,
		"requestor_ip":      alert.RequestorIP,
		"description":       alert.Description,
		"trigger_event":     alert.TriggerEvent,
		"trigger_count":     alert.TriggerCount,
		"trigger_threshold": alert.TriggerThreshold,
	})
}
