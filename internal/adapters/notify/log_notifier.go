package notify

import (
	"context"
	"locker-reservation-service/internal/domain"
	"locker-reservation-service/internal/platform/obs"
	"log"
	"maps"
)

// LogNotifier writes notifications to the process log. Used when no broker
// is configured. Pickup codes are masked.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, to domain.Contact, event string, payload map[string]any) error {
	masked := maps.Clone(payload)
	if _, ok := masked["pickup_code"]; ok {
		masked["pickup_code"] = "******"
	}

	log.Printf("req_id=%s notify event=%s to=%s payload=%v", obs.RequestID(ctx), event, to.Email, masked)
	return nil
}
