package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/kerem/stepchain/internal/bus"
)

// Notifier delivers run announcements to an external channel
// (Telegram, etc.). Implementations must tolerate being called from a
// background goroutine.
type Notifier interface {
	Send(text string) error
}

// Watch subscribes to the bus and forwards run lifecycle milestones to
// the notifier until ctx is cancelled. Delivery failures are logged and
// never affect the run or other observers.
func Watch(ctx context.Context, b *bus.Bus, n Notifier) {
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			text := format(evt)
			if text == "" {
				continue
			}
			if err := n.Send(text); err != nil {
				log.Printf("notify: delivery failed: %v", err)
			}
		}
	}
}

func format(evt bus.Event) string {
	data, _ := evt.Data.(map[string]any)
	switch evt.Type {
	case bus.EventPlanSet:
		return fmt.Sprintf("📋 Plan accepted: %v steps (run %s)", data["total_steps"], evt.RunID)
	case bus.EventRunCompleted:
		return fmt.Sprintf("📊 Run %s finished: %v/%v steps, success rate %v",
			evt.RunID, data["completed_steps"], data["total_steps"], data["success_rate"])
	}
	return ""
}
