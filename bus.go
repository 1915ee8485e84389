package proseql

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	jsonpatch "github.com/evanphx/json-patch"
)

// ChangeOp names the kind of mutation a ChangeEvent reports.
type ChangeOp string

const (
	ChangeInsert ChangeOp = "insert"
	ChangeUpdate ChangeOp = "update"
	ChangeDelete ChangeOp = "delete"
	ChangeReload ChangeOp = "reload"
)

// ChangeEvent describes one committed mutation to a single entity,
// published to every subscriber of the owning collection's Bus. Patch is a
// JSON Patch (RFC 6902) document describing Before -> After, computed with
// the same library the teacher used for BSON patch generation
// (bsonpatch.go), rewired here against plain JSON.
type ChangeEvent struct {
	Collection string
	Op         ChangeOp
	ID         string
	Before     M
	After      M
	Patch      []byte
}

// Subscriber receives ChangeEvents from a Bus until it unsubscribes.
type Subscriber struct {
	ch      chan ChangeEvent
	bus     *Bus
	id      uint64
	closed  atomic.Bool
	onClose func()
}

// C returns the subscriber's event channel. Readers must keep draining it;
// once a slow reader's buffer is full, further events to it are dropped
// (see Bus.publish), while other subscribers keep receiving theirs.
func (s *Subscriber) C() <-chan ChangeEvent { return s.ch }

// Close unsubscribes, after which no further events are delivered.
func (s *Subscriber) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if s.onClose != nil {
		s.onClose()
		return
	}
	s.bus.unsubscribe(s.id)
	close(s.ch)
}

// Bus is a single collection's in-process change-event broadcaster,
// grounded on the teacher's storage_impl.go Watch/Subscriber/
// broadcastEvent machinery — generalized here from a single MongoDB change
// stream source into a commit-driven local publisher. An optional Redis
// relay (bus_redis.go) extends delivery across processes.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscriber
	nextID uint64
	relay  *redisRelay
	name   string
}

func newBus(name string) *Bus {
	return &Bus{subs: make(map[uint64]*Subscriber), name: name}
}

// Subscribe registers a new Subscriber with a buffered event channel.
func (b *Bus) Subscribe(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 32
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &Subscriber{ch: make(chan ChangeEvent, buffer), bus: b, id: b.nextID}
	b.subs[s.id] = s
	return s
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// publish fans ev out to every live subscriber, non-blockingly — a
// subscriber whose buffer is full drops the event rather than stalling the
// commit path that produced it. If a Redis relay is attached, ev is also
// published there for cross-process delivery.
func (b *Bus) publish(ev ChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			metricsBusDropsTotal.WithLabelValues(b.name).Inc()
		}
	}
	if b.relay != nil {
		b.relay.publish(ev)
	}
}

// attachRelay wires a Redis-backed cross-process relay onto this bus.
func (b *Bus) attachRelay(r *redisRelay) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.relay = r
}

// Subscribe registers a Subscriber that only receives change events whose
// entity (After for insert/update, Before for delete) matches where; an
// event carrying neither, such as a reload, is always delivered. Filtering happens on a goroutine between the
// raw bus and the returned Subscriber, so a slow or narrow consumer never
// affects delivery to the collection's other subscribers.
func (c *Collection) Subscribe(where Where, buffer int) *Subscriber {
	raw := c.bus.Subscribe(buffer)
	if len(where) == 0 {
		return raw
	}

	out := &Subscriber{ch: make(chan ChangeEvent, buffer), bus: c.bus}
	out.onClose = func() {
		raw.Close()
	}
	go func() {
		defer close(out.ch)
		for ev := range raw.ch {
			subject := ev.After
			if subject == nil {
				subject = ev.Before
			}
			if subject != nil && !evalWhere(where, subject, nil) {
				continue
			}
			select {
			case out.ch <- ev:
			default:
				metricsBusDropsTotal.WithLabelValues(c.bus.name).Inc()
			}
		}
	}()
	return out
}

// diffEntities computes a JSON Patch (RFC 6902) document transforming
// before into after, used to populate ChangeEvent.Patch.
func diffEntities(before, after M) ([]byte, error) {
	beforeJSON, err := json.Marshal(before)
	if err != nil {
		return nil, err
	}
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return nil, err
	}
	ops, err := jsonpatch.CreatePatch(beforeJSON, afterJSON)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ops)
}
