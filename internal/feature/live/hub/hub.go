// Package hub implements the broadcast channel: a registry of named groups
// whose members receive every payload published to the group.
package hub

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	membersGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stockfeed_live_members",
		Help: "Live connections joined per group.",
	}, []string{"group"})

	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockfeed_live_deliveries_total",
		Help: "Payload deliveries by result.",
	}, []string{"group", "result"})
)

// Hub is safe for concurrent use. Publish never blocks on a slow member.
type Hub struct {
	log *zap.Logger

	mu     sync.RWMutex
	groups map[string]map[string]Member
	closed bool
}

// New creates an empty Hub.
func New(log *zap.Logger) *Hub {
	return &Hub{log: log, groups: make(map[string]map[string]Member)}
}

// Join registers m in group. A member already registered under the same ID
// is replaced.
func (h *Hub) Join(group string, m Member) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	g, ok := h.groups[group]
	if !ok {
		g = make(map[string]Member)
		h.groups[group] = g
	}
	g[m.ID()] = m
	membersGauge.WithLabelValues(group).Set(float64(len(g)))
	return nil
}

// Leave removes the member with id from group. Unknown ids are ignored.
func (h *Hub) Leave(group, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(group, id, nil)
}

// removeLocked deletes id from group; when want is non-nil only that exact member is removed.
func (h *Hub) removeLocked(group, id string, want Member) bool {
	g, ok := h.groups[group]
	if !ok {
		return false
	}
	cur, ok := g[id]
	if !ok || (want != nil && cur != want) {
		return false
	}
	delete(g, id)
	if len(g) == 0 {
		delete(h.groups, group)
	}
	membersGauge.WithLabelValues(group).Set(float64(len(g)))
	return true
}

// Publish delivers payload to every member of group that accepts symbol and
// returns how many members received it. Members that fail delivery are
// evicted and closed.
func (h *Hub) Publish(group, symbol string, payload []byte) int {
	h.mu.RLock()
	snapshot := make([]Member, 0, len(h.groups[group]))
	for _, m := range h.groups[group] {
		snapshot = append(snapshot, m)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, m := range snapshot {
		if !m.Accepts(symbol) {
			deliveriesTotal.WithLabelValues(group, "filtered").Inc()
			continue
		}
		if err := m.Deliver(payload); err != nil {
			deliveriesTotal.WithLabelValues(group, "failed").Inc()
			h.evict(group, m, &DeliveryError{Group: group, MemberID: m.ID(), Err: err})
			continue
		}
		deliveriesTotal.WithLabelValues(group, "delivered").Inc()
		delivered++
	}
	return delivered
}

func (h *Hub) evict(group string, m Member, derr *DeliveryError) {
	h.mu.Lock()
	removed := h.removeLocked(group, m.ID(), m)
	h.mu.Unlock()

	// 切断済みで Leave 前の接続は通常の離脱なので警告しない
	if errors.Is(derr, ErrMemberClosed) {
		h.log.Debug("dropping closed live member", zap.Error(derr), zap.Bool("was_registered", removed))
	} else {
		h.log.Warn("evicting live member", zap.Error(derr), zap.Bool("was_registered", removed))
	}
	m.Close()
}

// Size returns the number of members in group.
func (h *Hub) Size(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Close closes every member and rejects further joins.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []Member
	for name, g := range h.groups {
		for _, m := range g {
			all = append(all, m)
		}
		membersGauge.WithLabelValues(name).Set(0)
	}
	h.groups = make(map[string]map[string]Member)
	h.mu.Unlock()

	for _, m := range all {
		m.Close()
	}
	h.log.Info("hub closed", zap.Int("members", len(all)))
}
