package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"stockfeed/internal/feature/prices/domain/entity"
	"stockfeed/internal/feature/prices/usecase"
)

// GroupPublisher publishes update events to one group of an in-process Hub.
type GroupPublisher struct {
	hub   *Hub
	group string
}

var _ usecase.Publisher = (*GroupPublisher)(nil)

// NewGroupPublisher は group 宛てに配信する Publisher を作成します。
func NewGroupPublisher(h *Hub, group string) *GroupPublisher {
	return &GroupPublisher{hub: h, group: group}
}

// Publish encodes ev as JSON and fans it out. Per-member failures are
// handled by the hub and never returned.
func (p *GroupPublisher) Publish(ctx context.Context, ev entity.UpdateEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode update event: %w", err)
	}
	p.hub.Publish(p.group, ev.Symbol, b)
	return nil
}
