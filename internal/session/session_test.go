package session

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/salespulse/docchat/internal/model"
	"github.com/salespulse/docchat/internal/ws"
)

type fakeChannel struct {
	emitted []ws.IncomingEvent
}

func (f *fakeChannel) Emit(ev ws.IncomingEvent) error {
	f.emitted = append(f.emitted, ev)
	return nil
}

type fakeRenderer struct {
	messages []ws.MessagePayload
	history  [][]ws.MessagePayload
	statuses []string
	mentions []string
	badges   map[string]int64
	errors   []string
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{badges: make(map[string]int64)}
}

func (r *fakeRenderer) RenderMessage(msg ws.MessagePayload)       { r.messages = append(r.messages, msg) }
func (r *fakeRenderer) RenderHistory(msgs []ws.MessagePayload)    { r.history = append(r.history, msgs) }
func (r *fakeRenderer) RenderStatus(room, msg string)             { r.statuses = append(r.statuses, msg) }
func (r *fakeRenderer) RenderMention(room, msg string)            { r.mentions = append(r.mentions, msg) }
func (r *fakeRenderer) UpdateBadge(room string, count int64)      { r.badges[room] = count }
func (r *fakeRenderer) RenderError(code, msg string)              { r.errors = append(r.errors, code) }

type fakeNotifier struct {
	permission Permission
	requests   int
	shown      []string
}

func (n *fakeNotifier) Permission() Permission { return n.permission }
func (n *fakeNotifier) RequestPermission() (Permission, error) {
	n.requests++
	return n.permission, nil
}
func (n *fakeNotifier) Show(title, body string) error {
	n.shown = append(n.shown, title)
	return nil
}

type fakeSound struct {
	plays   int
	playErr error
}

func (s *fakeSound) Play() error {
	s.plays++
	return s.playErr
}

type memMutes struct {
	rooms map[string]bool
}

func newMemMutes() *memMutes { return &memMutes{rooms: make(map[string]bool)} }

func (m *memMutes) Muted(room string) bool             { return m.rooms[room] }
func (m *memMutes) SetMuted(room string, v bool) error { m.rooms[room] = v; return nil }

type sessionParts struct {
	ch     *fakeChannel
	render *fakeRenderer
	notify *fakeNotifier
	sound  *fakeSound
	mutes  MuteStore
}

func newTestSession(t *testing.T, permission Permission, mutes MuteStore) (*Session, *sessionParts) {
	t.Helper()
	if mutes == nil {
		mutes = newMemMutes()
	}
	p := &sessionParts{
		ch:     &fakeChannel{},
		render: newFakeRenderer(),
		notify: &fakeNotifier{permission: permission},
		sound:  &fakeSound{},
		mutes:  mutes,
	}
	s := New("bob", "Bob", p.ch, p.render, p.notify, p.sound, p.mutes)
	return s, p
}

func incoming(room string, own bool) ws.OutgoingEvent {
	return ws.OutgoingEvent{Type: ws.EventMessage, Payload: ws.MessagePayload{
		ID: "m1", Seq: 1, Room: room, Username: "Alice", Msg: "hello", IsOwnMessage: own,
	}}
}

func TestMessageAlwaysRendered(t *testing.T) {
	s, p := newTestSession(t, PermissionGranted, nil)
	s.Start()
	s.UserGesture()

	s.HandleEvent(incoming("DOC-100", false))
	if len(p.render.messages) != 1 {
		t.Fatalf("rendered %d messages, want 1", len(p.render.messages))
	}
	if p.sound.plays != 1 {
		t.Errorf("chime played %d times, want 1", p.sound.plays)
	}
	if len(p.notify.shown) != 1 {
		t.Errorf("notifications shown = %d, want 1", len(p.notify.shown))
	}
}

func TestOwnMessageNeverNotifies(t *testing.T) {
	s, p := newTestSession(t, PermissionGranted, nil)
	s.Start()
	s.UserGesture()

	s.HandleEvent(incoming("DOC-100", true))
	if len(p.render.messages) != 1 {
		t.Errorf("own message not rendered")
	}
	if p.sound.plays != 0 {
		t.Errorf("chime played for own message")
	}
	if len(p.notify.shown) != 0 {
		t.Errorf("notification shown for own message")
	}
}

func TestMuteSuppressesSideEffectsNotRendering(t *testing.T) {
	s, p := newTestSession(t, PermissionGranted, nil)
	s.Start()
	s.UserGesture()
	if err := s.SetMuted("DOC-100", true); err != nil {
		t.Fatalf("SetMuted: %v", err)
	}

	s.HandleEvent(incoming("DOC-100", false))
	if len(p.render.messages) != 1 {
		t.Errorf("muted room message not rendered")
	}
	if p.sound.plays != 0 || len(p.notify.shown) != 0 {
		t.Errorf("muted room produced side effects: plays=%d shown=%d", p.sound.plays, len(p.notify.shown))
	}

	// Other rooms are unaffected.
	s.HandleEvent(incoming("DOC-200", false))
	if p.sound.plays != 1 {
		t.Errorf("unmuted room chime plays = %d, want 1", p.sound.plays)
	}
}

func TestAudioLockGatesChimeOnly(t *testing.T) {
	s, p := newTestSession(t, PermissionGranted, nil)
	s.Start()

	// No gesture yet: chime skipped silently, rendering unaffected.
	s.HandleEvent(incoming("DOC-100", false))
	if p.sound.plays != 0 {
		t.Errorf("chime played while locked")
	}
	if len(p.render.messages) != 1 {
		t.Errorf("message not rendered while audio locked")
	}

	// Unlock is one-way for the tab's lifetime.
	s.UserGesture()
	s.UserGesture()
	s.HandleEvent(incoming("DOC-100", false))
	if p.sound.plays != 1 {
		t.Errorf("chime plays after unlock = %d, want 1", p.sound.plays)
	}
}

func TestChimeFailureDoesNotAffectRendering(t *testing.T) {
	s, p := newTestSession(t, PermissionGranted, nil)
	s.Start()
	s.UserGesture()
	p.sound.playErr = errors.New("decode failed")

	s.HandleEvent(incoming("DOC-100", false))
	if len(p.render.messages) != 1 {
		t.Errorf("message not rendered after chime failure")
	}
	// Notification still attempted after a sound failure.
	if len(p.notify.shown) != 1 {
		t.Errorf("notification skipped after chime failure")
	}
}

func TestPermissionRequestedAtMostOnce(t *testing.T) {
	s, p := newTestSession(t, PermissionDefault, nil)
	s.Start()
	s.Start()
	if p.notify.requests != 1 {
		t.Errorf("permission requested %d times, want 1", p.notify.requests)
	}
}

func TestDeniedPermissionIsFinal(t *testing.T) {
	s, p := newTestSession(t, PermissionDenied, nil)
	s.Start()
	s.UserGesture()

	s.HandleEvent(incoming("DOC-100", false))
	s.HandleEvent(incoming("DOC-100", false))
	if p.notify.requests != 0 {
		t.Errorf("denied permission re-requested %d times", p.notify.requests)
	}
	if len(p.notify.shown) != 0 {
		t.Errorf("notification shown despite denied permission")
	}
	if p.sound.plays != 2 {
		t.Errorf("chime plays = %d, want 2 (sound independent of permission)", p.sound.plays)
	}
}

func TestJoinLeaveAndReconnect(t *testing.T) {
	s, p := newTestSession(t, PermissionGranted, nil)

	if err := s.Join("DOC-100"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if s.ActiveRoom() != "DOC-100" {
		t.Errorf("ActiveRoom = %q, want DOC-100", s.ActiveRoom())
	}

	// Reconnect must re-issue join for the current room.
	if err := s.Reconnected(); err != nil {
		t.Fatalf("Reconnected: %v", err)
	}
	joins := 0
	for _, ev := range p.ch.emitted {
		if ev.Type == ws.EventJoin && ev.Room == "DOC-100" {
			joins++
		}
	}
	if joins != 2 {
		t.Errorf("join emitted %d times, want 2 (initial + reconnect)", joins)
	}

	// Leave from multiple triggers collapses to one wire event.
	if err := s.Leave(); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if err := s.Leave(); err != nil {
		t.Fatalf("second Leave: %v", err)
	}
	leaves := 0
	for _, ev := range p.ch.emitted {
		if ev.Type == ws.EventLeave {
			leaves++
		}
	}
	if leaves != 1 {
		t.Errorf("leave emitted %d times, want 1", leaves)
	}

	// Reconnect with no room is a no-op.
	before := len(p.ch.emitted)
	if err := s.Reconnected(); err != nil {
		t.Fatalf("Reconnected without room: %v", err)
	}
	if len(p.ch.emitted) != before {
		t.Errorf("reconnect without room emitted events")
	}
}

func TestSendCarriesRoomAndContext(t *testing.T) {
	s, p := newTestSession(t, PermissionGranted, nil)
	if err := s.Join("DOC-100"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	docCtx := model.Context{Delivery: "DLV-9", Site: "KAB-01", Brand: "acme"}
	if err := s.Send("hello", docCtx); err != nil {
		t.Fatalf("Send: %v", err)
	}
	last := p.ch.emitted[len(p.ch.emitted)-1]
	if last.Type != ws.EventSend || last.Room != "DOC-100" || last.Body != "hello" {
		t.Errorf("send event = %+v", last)
	}
	if last.Context != docCtx {
		t.Errorf("context = %+v, want %+v", last.Context, docCtx)
	}
}

func TestBadgeStatusMentionErrorEvents(t *testing.T) {
	s, p := newTestSession(t, PermissionGranted, nil)
	s.Start()
	s.UserGesture()

	s.HandleEvent(ws.OutgoingEvent{Type: ws.EventCountChanged, Payload: ws.CountChangedPayload{Room: "DOC-100", Count: 4}})
	if p.render.badges["DOC-100"] != 4 {
		t.Errorf("badge = %d, want 4", p.render.badges["DOC-100"])
	}
	s.HandleEvent(ws.OutgoingEvent{Type: ws.EventStatus, Payload: ws.StatusPayload{Room: "DOC-100", Msg: "Alice joined"}})
	if len(p.render.statuses) != 1 {
		t.Errorf("statuses rendered = %d, want 1", len(p.render.statuses))
	}
	s.HandleEvent(ws.OutgoingEvent{Type: ws.EventMention, Payload: ws.MentionPayload{Room: "DOC-100", Msg: "Alice mentioned you"}})
	if len(p.render.mentions) != 1 {
		t.Errorf("mentions rendered = %d, want 1", len(p.render.mentions))
	}
	if len(p.notify.shown) != 1 {
		t.Errorf("mention notification shown = %d, want 1", len(p.notify.shown))
	}
	s.HandleEvent(ws.OutgoingEvent{Type: ws.EventError, Payload: ws.ErrorPayload{Code: ws.ErrCodePersistence, Msg: "failed"}})
	if len(p.render.errors) != 1 {
		t.Errorf("errors rendered = %d, want 1", len(p.render.errors))
	}
}

func TestMutePersistsAcrossSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mutes.json")

	store, err := OpenFileMuteStore(path)
	if err != nil {
		t.Fatalf("OpenFileMuteStore: %v", err)
	}
	s1, _ := newTestSession(t, PermissionGranted, store)
	s1.Start()
	s1.UserGesture()
	if err := s1.SetMuted("DOC-100", true); err != nil {
		t.Fatalf("SetMuted: %v", err)
	}

	// New session over a fresh store instance: simulated reconnect/reload.
	store2, err := OpenFileMuteStore(path)
	if err != nil {
		t.Fatalf("reopen FileMuteStore: %v", err)
	}
	s2, p2 := newTestSession(t, PermissionGranted, store2)
	s2.Start()
	s2.UserGesture()

	if !s2.Muted("DOC-100") {
		t.Fatalf("mute flag did not survive reload")
	}
	s2.HandleEvent(incoming("DOC-100", false))
	if len(p2.render.messages) != 1 {
		t.Errorf("message not rendered in muted room after reload")
	}
	if p2.sound.plays != 0 || len(p2.notify.shown) != 0 {
		t.Errorf("muted room produced side effects after reload")
	}

	// Unmute persists as well.
	if err := s2.SetMuted("DOC-100", false); err != nil {
		t.Fatalf("unmute: %v", err)
	}
	store3, err := OpenFileMuteStore(path)
	if err != nil {
		t.Fatalf("reopen FileMuteStore: %v", err)
	}
	if store3.Muted("DOC-100") {
		t.Errorf("unmute did not persist")
	}
}
