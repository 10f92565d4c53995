package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pagelift/pagelift/backend/internal/domain/metrics"
	"github.com/pagelift/pagelift/backend/internal/domain/policy"
	"github.com/pagelift/pagelift/backend/internal/shared/id"
)

// Action names the operations the bus answers. The set mirrors the
// extension's background message contract.
type Action string

const (
	ActionGetState         Action = "getState"
	ActionSetState         Action = "setState"
	ActionToggleExtension  Action = "toggleExtension"
	ActionToggleCSSRemoval Action = "toggleCSSRemoval"
	ActionGetCachedData    Action = "getCachedData"
	ActionSetCachedData    Action = "setCachedData"
	ActionStoreMetrics     Action = "storeMetrics"
	ActionGetMetrics       Action = "getMetrics"
	ActionStoreBaseline    Action = "storeBaseline"
	ActionGetBaseline      Action = "getBaseline"
	ActionGetCurrentURL    Action = "getCurrentUrl"

	// ActionApplyState is push-only: broadcast to subscribers when toggles
	// change, never sent as a request.
	ActionApplyState Action = "applyState"
)

// DefaultAskTimeout bounds how long a caller waits for an answer before
// treating the request as unanswered.
const DefaultAskTimeout = 2 * time.Second

// Request is one message to the store.
type Request struct {
	ID      id.MessageID
	Action  Action
	URL     string
	CSSMode bool
	State   *policy.State
	Cached  *CachedData
	Metrics *metrics.Metrics

	Baseline *metrics.Baseline
}

// Response answers one Request. OK false with a zero payload means
// "no data"; callers must not block or retry on it.
type Response struct {
	ID       id.MessageID
	OK       bool
	State    policy.State
	URL      string
	Cached   CachedData
	Metrics  metrics.Metrics
	Baseline metrics.Baseline
	Err      string
}

// Push is an applyState notification delivered to subscribers when the
// toggle state changes.
type Push struct {
	Action Action       `json:"action"`
	State  policy.State `json:"state"`
}

type envelope struct {
	req   Request
	reply chan Response
}

// Bus serializes all store access through one goroutine, giving callers
// per-channel FIFO ordering with no shared-memory coupling.
type Bus struct {
	store    *Store
	requests chan envelope
	done     chan struct{}
	closed   sync.Once

	subMu sync.RWMutex
	subs  map[id.ClientID]chan Push
}

// NewBus starts the dispatch loop over the given store.
func NewBus(store *Store) *Bus {
	b := &Bus{
		store:    store,
		requests: make(chan envelope, 64),
		done:     make(chan struct{}),
		subs:     make(map[id.ClientID]chan Push),
	}
	go b.loop()
	return b
}

// Close stops the dispatch loop. In-flight requests may go unanswered;
// callers see that as a timeout.
func (b *Bus) Close() {
	b.closed.Do(func() { close(b.done) })
}

// Ask sends a request and waits for its answer. A context deadline or a
// stopped bus yields an unanswered request: the returned Response has
// OK false and the error carries the cause. Callers treat both as "no data".
func (b *Bus) Ask(ctx context.Context, req Request) (Response, error) {
	if req.ID == "" {
		req.ID = id.NewMessageID()
	}
	env := envelope{req: req, reply: make(chan Response, 1)}

	select {
	case b.requests <- env:
	case <-ctx.Done():
		return Response{ID: req.ID}, fmt.Errorf("state bus send: %w", ctx.Err())
	case <-b.done:
		return Response{ID: req.ID}, fmt.Errorf("state bus closed")
	}

	select {
	case resp := <-env.reply:
		return resp, nil
	case <-ctx.Done():
		return Response{ID: req.ID}, fmt.Errorf("state bus reply: %w", ctx.Err())
	case <-b.done:
		return Response{ID: req.ID}, fmt.Errorf("state bus closed")
	}
}

// AskDefault is Ask under the default timeout.
func (b *Bus) AskDefault(req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultAskTimeout)
	defer cancel()
	return b.Ask(ctx, req)
}

// Subscribe registers a push receiver for applyState notifications. The
// returned channel is never closed by the bus; call Unsubscribe when done.
func (b *Bus) Subscribe() (id.ClientID, <-chan Push) {
	clientID := id.NewClientID()
	ch := make(chan Push, 8)
	b.subMu.Lock()
	b.subs[clientID] = ch
	b.subMu.Unlock()
	return clientID, ch
}

// Unsubscribe removes a push receiver.
func (b *Bus) Unsubscribe(clientID id.ClientID) {
	b.subMu.Lock()
	delete(b.subs, clientID)
	b.subMu.Unlock()
}

func (b *Bus) loop() {
	for {
		select {
		case env := <-b.requests:
			env.reply <- b.dispatch(env.req)
		case <-b.done:
			return
		}
	}
}

func (b *Bus) dispatch(req Request) Response {
	resp := Response{ID: req.ID, OK: true}

	switch req.Action {
	case ActionGetState:
		resp.State = b.store.State()

	case ActionSetState:
		if req.State == nil {
			return b.fail(req, "setState requires a state payload")
		}
		resp.State = b.store.SetState(*req.State)
		b.broadcast(resp.State)

	case ActionToggleExtension:
		resp.State = b.store.ToggleEnabled()
		b.broadcast(resp.State)

	case ActionToggleCSSRemoval:
		resp.State = b.store.ToggleCSSRemoval()
		b.broadcast(resp.State)

	case ActionGetCachedData:
		data, ok := b.store.CachedData(req.URL, req.CSSMode)
		resp.OK = ok
		resp.Cached = data

	case ActionSetCachedData:
		if req.Cached == nil {
			return b.fail(req, "setCachedData requires a payload")
		}
		b.store.SetCachedData(req.URL, req.CSSMode, *req.Cached)

	case ActionStoreMetrics:
		if req.Metrics == nil {
			return b.fail(req, "storeMetrics requires a payload")
		}
		b.store.StoreMetrics(req.URL, *req.Metrics)

	case ActionGetMetrics:
		m, ok := b.store.Metrics(req.URL)
		resp.OK = ok
		resp.Metrics = m

	case ActionStoreBaseline:
		if req.Baseline == nil {
			return b.fail(req, "storeBaseline requires a payload")
		}
		resp.OK = b.store.StoreBaseline(req.URL, *req.Baseline)

	case ActionGetBaseline:
		bl, ok := b.store.Baseline(req.URL)
		resp.OK = ok
		resp.Baseline = bl

	case ActionGetCurrentURL:
		// A request carrying a URL records it as the active document first.
		if req.URL != "" {
			b.store.SetCurrentURL(req.URL)
		}
		resp.URL = b.store.CurrentURL()

	default:
		return b.fail(req, fmt.Sprintf("unknown action %q", req.Action))
	}
	return resp
}

func (b *Bus) fail(req Request, msg string) Response {
	return Response{ID: req.ID, Err: msg}
}

// broadcast delivers applyState to every subscriber without blocking the
// dispatch loop; a subscriber with a full buffer misses the notification
// and reconciles on its next getState.
func (b *Bus) broadcast(state policy.State) {
	push := Push{Action: ActionApplyState, State: state}
	b.subMu.RLock()
	defer b.subMu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- push:
		default:
		}
	}
}
