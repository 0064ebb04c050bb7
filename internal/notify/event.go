// Package notify carries committed ledger changes to connected clients.
//
// Delivery is at-most-once and best effort: publishing never blocks and a
// subscriber that falls behind loses events. Nothing in the ledger depends
// on an event being delivered.
package notify

import (
	"crypto/rand"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event types, entity:verb.
const (
	ProductCreated      = "product:new"
	ProductUpdated      = "product:updated"
	ProductDeleted      = "product:deleted"
	ProductStockUpdated = "product:stock_updated"

	OrderCreated = "order:new"
	OrderUpdated = "order:updated"
	OrderDeleted = "order:deleted"

	MarketerPaymentCreated = "marketer_payment:new"
	MarketerPaymentDeleted = "marketer_payment:deleted"

	SupplierCreated        = "supplier:new"
	SupplierDeleted        = "supplier:deleted"
	SupplierBalanceUpdated = "supplier:balance_updated"
	SupplierOrderCreated   = "supplier_order:new"
	SupplierOrderUpdated   = "supplier_order:updated"
	SupplierOrderDeleted   = "supplier_order:deleted"
	SupplierPaymentCreated = "supplier_payment:new"
	SupplierPaymentUpdated = "supplier_payment:updated"
	SupplierPaymentDeleted = "supplier_payment:deleted"

	MarketerCreated = "marketer:new"
	MarketerDeleted = "marketer:deleted"
	MandobeCreated  = "mandobe:new"
	MandobeDeleted  = "mandobe:deleted"
)

// Change is the before/after value of one field.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Event is the payload sent for one committed mutation.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"event"`
	Entity    any               `json:"entity"`
	Changes   map[string]Change `json:"changes,omitempty"`
	ActorName string            `json:"actor_name,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewEvent stamps an event with a sortable id and the given time.
func NewEvent(eventType string, entity any, changes map[string]Change, actorName string, at time.Time) Event {
	return Event{
		ID:        ulid.MustNew(ulid.Timestamp(at), rand.Reader).String(),
		Type:      eventType,
		Entity:    entity,
		Changes:   changes,
		ActorName: actorName,
		Timestamp: at,
	}
}

// Publisher receives events after their transaction committed.
type Publisher interface {
	Publish(events ...Event)
}

// Discard drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(...Event) {}

// Recorder is an in-memory Publisher for tests. Publish, Types, Snapshot
// and Reset are safe for concurrent use; read Events directly only after
// every publisher has returned.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(events ...Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, events...)
}

// Snapshot returns a copy of the recorded events.
func (r *Recorder) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.Events)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = nil
}
