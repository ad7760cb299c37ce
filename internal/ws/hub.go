package ws

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salespulse/docchat/internal/logger"
	"github.com/salespulse/docchat/internal/model"
	"github.com/salespulse/docchat/internal/registry"
	"github.com/salespulse/docchat/internal/unseen"
)

// MessageStore is the external persistence interface. Append must assign
// Seq before returning; History returns the latest messages in
// chronological order.
type MessageStore interface {
	Append(ctx context.Context, m *model.Message) error
	History(ctx context.Context, roomID string, limit int) ([]model.Message, error)
}

// RoomDirectory answers who may join a room and who participates in it.
type RoomDirectory interface {
	CanJoin(ctx context.Context, roomID, userID string) (bool, error)
	Participants(ctx context.Context, roomID string) ([]string, error)
}

// PushNotifier sends web push notifications. If nil, pushes are disabled.
type PushNotifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	total    int
	maxConns int

	rooms        *registry.Registry
	store        MessageStore
	dir          RoomDirectory
	counter      *unseen.Counter
	push         PushNotifier
	historyLimit int

	// ordMu guards ordLocks; each room gets one ordering lock so that
	// persist-then-broadcast is serialized per room and every member
	// observes messages in seq order.
	ordMu    sync.Mutex
	ordLocks map[string]*sync.Mutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(
	store MessageStore,
	dir RoomDirectory,
	counter *unseen.Counter,
	push PushNotifier,
	historyLimit int,
	maxConns int,
) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Hub{
		clients:      make(map[string]map[*Client]struct{}),
		maxConns:     maxConns,
		rooms:        registry.New(),
		store:        store,
		dir:          dir,
		counter:      counter,
		push:         push,
		historyLimit: historyLimit,
		ordLocks:     make(map[string]*sync.Mutex),
		register:     make(chan *Client, 64),
		unregister:   make(chan *Client, 64),
		done:         make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	for _, c := range allClients {
		h.rooms.LeaveAll(c)
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	h.mu.Unlock()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	if len(clients) == 0 {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()

	// Disconnect is an implicit leave; announce it like an explicit one.
	if left := h.rooms.LeaveAll(c); left != "" {
		h.broadcastStatus(left, c.username+" left", c)
	}

	// Network I/O outside the lock.
	c.Close()
}

// HandleEvent dispatches one inbound event from a connection.
func (h *Hub) HandleEvent(ctx context.Context, c *Client, ev IncomingEvent) {
	switch ev.Type {
	case EventJoin:
		h.handleJoin(ctx, c, ev)
	case EventLeave:
		h.handleLeave(c, ev)
	case EventSend:
		h.handleSend(ctx, c, ev)
	default:
		h.sendError(c, ErrCodeValidation, "unknown event type")
	}
}

// handleJoin registers the connection in the room, delivers the history
// snapshot to the joiner only, announces the arrival to the other members
// and resets the joiner's unseen counter for the room.
func (h *Hub) handleJoin(ctx context.Context, c *Client, ev IncomingEvent) {
	defer logger.DeferLogDuration("ws.handleJoin", time.Now())()
	if ev.Room == "" {
		h.sendError(c, ErrCodeValidation, "room required")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	allowed, err := h.dir.CanJoin(ctx, ev.Room, c.userID)
	if err != nil {
		logger.Errorf("ws join check room=%s user=%s: %v", ev.Room, c.userID, err)
		h.sendError(c, ErrCodeInternal, "internal error")
		return
	}
	if !allowed {
		h.sendError(c, ErrCodeValidation, "not authorized for room")
		return
	}

	// The ordering lock makes the history snapshot consistent with the
	// broadcast stream: a concurrent send is either in the snapshot or
	// delivered live to the new member, never lost.
	lk := h.roomLock(ev.Room)
	lk.Lock()
	left := h.rooms.Join(c, ev.Room)
	history, histErr := h.store.History(ctx, ev.Room, h.historyLimit)
	if histErr == nil {
		// Queued under the lock so the snapshot always precedes any live
		// message in the joiner's event stream.
		payloads := make([]MessagePayload, 0, len(history))
		for i := range history {
			payloads = append(payloads, messagePayload(&history[i], c.userID))
		}
		h.sendToClient(c, OutgoingEvent{Type: EventInitialMessages, Payload: payloads})
	}
	lk.Unlock()

	if left != "" {
		h.broadcastStatus(left, c.username+" left", c)
	}
	if histErr != nil {
		logger.Errorf("ws history room=%s: %v", ev.Room, histErr)
		h.sendError(c, ErrCodeInternal, "failed to load history")
	}

	h.broadcastStatus(ev.Room, c.username+" joined", c)

	if err := h.counter.RoomActivated(ctx, c.userID, ev.Room); err != nil {
		logger.Errorf("ws unseen reset room=%s user=%s: %v", ev.Room, c.userID, err)
		return
	}
	h.sendToUser(c.userID, OutgoingEvent{
		Type:    EventCountChanged,
		Payload: CountChangedPayload{Room: ev.Room, Count: 0},
	})
}

// handleLeave deregisters membership. Leaving a room the connection is not
// in (duplicate unload, stale tab) is a silent no-op.
func (h *Hub) handleLeave(c *Client, ev IncomingEvent) {
	if ev.Room == "" {
		return
	}
	if h.rooms.Leave(c, ev.Room) {
		h.broadcastStatus(ev.Room, c.username+" left", c)
	}
}

// handleSend validates, persists and broadcasts one message. Persist comes
// strictly before broadcast: a message no client can rely on is never shown.
func (h *Hub) handleSend(ctx context.Context, c *Client, ev IncomingEvent) {
	defer logger.DeferLogDuration("ws.handleSend", time.Now())()
	body := strings.TrimSpace(ev.Body)
	if ev.Room == "" || body == "" {
		h.sendError(c, ErrCodeValidation, "room and body required")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	allowed, err := h.dir.CanJoin(ctx, ev.Room, c.userID)
	if err != nil {
		logger.Errorf("ws send check room=%s user=%s: %v", ev.Room, c.userID, err)
		h.sendError(c, ErrCodeInternal, "internal error")
		return
	}
	if !allowed {
		h.sendError(c, ErrCodeValidation, "not authorized for room")
		return
	}

	m := &model.Message{
		ID:         uuid.New().String(),
		RoomID:     ev.Room,
		AuthorID:   c.userID,
		AuthorName: c.username,
		Body:       body,
		Context:    ev.Context,
	}

	lk := h.roomLock(ev.Room)
	lk.Lock()
	if err := h.store.Append(ctx, m); err != nil {
		lk.Unlock()
		logger.Errorf("ws append room=%s user=%s: %v", ev.Room, c.userID, err)
		h.sendError(c, ErrCodePersistence, "failed to save message")
		return
	}
	// Delivery set is whoever is a member at processing time; a racing
	// leave simply misses the message (last-writer-wins on membership).
	members := h.rooms.Members(ev.Room)
	for _, mem := range members {
		cl, ok := mem.(*Client)
		if !ok {
			continue
		}
		h.sendToClient(cl, OutgoingEvent{Type: EventMessage, Payload: messagePayload(m, cl.userID)})
	}
	lk.Unlock()

	h.afterSend(ctx, c, m)
}

// afterSend does the best-effort side effects of a delivered message:
// unseen counters and badge refreshes for non-viewing participants, web
// push for participants with no live connection, and mention alerts.
func (h *Hub) afterSend(ctx context.Context, c *Client, m *model.Message) {
	participants, err := h.dir.Participants(ctx, m.RoomID)
	if err != nil {
		logger.Errorf("ws participants room=%s: %v", m.RoomID, err)
		return
	}

	pushBody := m.Body
	if len(pushBody) > 120 {
		pushBody = pushBody[:117] + "..."
	}
	pushData := map[string]string{"room": m.RoomID, "message_id": m.ID}

	for _, uid := range participants {
		if uid == m.AuthorID {
			continue
		}
		if h.rooms.IsViewing(uid, m.RoomID) {
			continue
		}
		count, err := h.counter.MessageDelivered(ctx, m.RoomID, uid)
		if err != nil {
			logger.Errorf("ws unseen incr room=%s user=%s: %v", m.RoomID, uid, err)
			continue
		}
		h.sendToUser(uid, OutgoingEvent{
			Type:    EventCountChanged,
			Payload: CountChangedPayload{Room: m.RoomID, Count: count},
		})
		if h.push != nil && !h.hasConnections(uid) {
			uid := uid
			go h.push.Notify(context.Background(), uid, m.AuthorName, pushBody, pushData)
		}
	}

	h.notifyMentions(c, m, participants)
}

// notifyMentions parses @name tokens from the body and raises a mention
// event on every connection of each mentioned participant.
func (h *Hub) notifyMentions(c *Client, m *model.Message, participants []string) {
	tokens := mentionTokens(m.Body)
	if len(tokens) == 0 {
		return
	}
	for _, uid := range participants {
		if uid == m.AuthorID {
			continue
		}
		h.mu.RLock()
		var mentioned bool
		for cl := range h.clients[uid] {
			if _, ok := tokens[strings.ToLower(cl.username)]; ok {
				mentioned = true
				break
			}
		}
		h.mu.RUnlock()
		if !mentioned {
			// Fall back to matching the user id itself (@CUST-17 style).
			if _, ok := tokens[strings.ToLower(uid)]; !ok {
				continue
			}
		}
		h.sendToUser(uid, OutgoingEvent{
			Type:    EventMention,
			Payload: MentionPayload{Room: m.RoomID, Msg: m.AuthorName + " mentioned you"},
		})
	}
}

// mentionTokens extracts the lowercase names after '@', trimming trailing
// punctuation.
func mentionTokens(body string) map[string]struct{} {
	var tokens map[string]struct{}
	for _, word := range strings.Fields(body) {
		if len(word) < 2 || word[0] != '@' {
			continue
		}
		name := strings.TrimRight(word[1:], ".,:;!?")
		if name == "" {
			continue
		}
		if tokens == nil {
			tokens = make(map[string]struct{})
		}
		tokens[strings.ToLower(name)] = struct{}{}
	}
	return tokens
}

// broadcastStatus announces a membership change to every member of room
// except the subject connection itself.
func (h *Hub) broadcastStatus(room, msg string, exclude *Client) {
	out := OutgoingEvent{Type: EventStatus, Payload: StatusPayload{Room: room, Msg: msg}}
	for _, mem := range h.rooms.Members(room) {
		cl, ok := mem.(*Client)
		if !ok || cl == exclude {
			continue
		}
		h.sendToClient(cl, out)
	}
}

func (h *Hub) roomLock(room string) *sync.Mutex {
	h.ordMu.Lock()
	defer h.ordMu.Unlock()
	lk, ok := h.ordLocks[room]
	if !ok {
		lk = &sync.Mutex{}
		h.ordLocks[room] = lk
	}
	return lk
}

func (h *Hub) hasConnections(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) sendToUser(userID string, ev OutgoingEvent) {
	h.mu.RLock()
	clients, ok := h.clients[userID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, ev)
	}
}

func (h *Hub) sendToClient(c *Client, ev OutgoingEvent) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close the slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) sendError(c *Client, code, msg string) {
	h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: ErrorPayload{Code: code, Msg: msg}})
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
