// Package session implements the client-side state machine of the chat
// protocol: one Session per tab, consuming server events and driving the
// host side effects (render, chime, browser notification) through injected
// collaborators. Rendering always happens; sound and notifications are
// best-effort and gated by mute state, message ownership, the audio unlock
// and the host notification permission.
package session

import (
	"github.com/salespulse/docchat/internal/logger"
	"github.com/salespulse/docchat/internal/model"
	"github.com/salespulse/docchat/internal/ws"
)

// Permission mirrors the host notification permission states.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Channel is the client side of the event channel; the session emits
// join/leave through it. The transport (WebSocket or otherwise) is not the
// session's concern.
type Channel interface {
	Emit(ev ws.IncomingEvent) error
}

// Renderer is the DOM collaborator. Its methods must not block.
type Renderer interface {
	RenderMessage(msg ws.MessagePayload)
	RenderHistory(msgs []ws.MessagePayload)
	RenderStatus(room, msg string)
	RenderMention(room, msg string)
	UpdateBadge(room string, count int64)
	RenderError(code, msg string)
}

// Notifier is the host notification API (permission query/request plus
// display). Permission is owned by the host, never by the session.
type Notifier interface {
	Permission() Permission
	RequestPermission() (Permission, error)
	Show(title, body string) error
}

// SoundPlayer plays the alert chime.
type SoundPlayer interface {
	Play() error
}

// MuteStore durably persists the per-room mute flag; it must survive
// reload and reconnect of the same client.
type MuteStore interface {
	Muted(room string) bool
	SetMuted(room string, muted bool) error
}

type Session struct {
	userID   string
	username string

	ch     Channel
	render Renderer
	notify Notifier
	sound  SoundPlayer
	mutes  MuteStore

	room string

	// audioUnlocked flips to true on the first user gesture and never
	// reverts for the lifetime of the tab.
	audioUnlocked bool

	permission      Permission
	permissionAsked bool
}

func New(userID, username string, ch Channel, render Renderer, notify Notifier, sound SoundPlayer, mutes MuteStore) *Session {
	return &Session{
		userID:     userID,
		username:   username,
		ch:         ch,
		render:     render,
		notify:     notify,
		sound:      sound,
		mutes:      mutes,
		permission: PermissionDefault,
	}
}

// Start queries the host notification permission and requests it at most
// once if still undecided. A denied permission is final for the session.
func (s *Session) Start() {
	s.permission = s.notify.Permission()
	if s.permission != PermissionDefault || s.permissionAsked {
		return
	}
	s.permissionAsked = true
	p, err := s.notify.RequestPermission()
	if err != nil {
		logger.Errorf("session notification permission request: %v", err)
		return
	}
	s.permission = p
}

// Join switches the active room, leaving the previous one implicitly on the
// server side.
func (s *Session) Join(room string) error {
	s.room = room
	return s.ch.Emit(ws.IncomingEvent{Type: ws.EventJoin, Room: room})
}

// Leave exits the current room. It is invoked from every exit trigger
// (unload, navigation, explicit button) and is safe to call repeatedly.
func (s *Session) Leave() error {
	if s.room == "" {
		return nil
	}
	room := s.room
	s.room = ""
	return s.ch.Emit(ws.IncomingEvent{Type: ws.EventLeave, Room: room})
}

// Send submits a message to the current room.
func (s *Session) Send(body string, docCtx model.Context) error {
	return s.ch.Emit(ws.IncomingEvent{Type: ws.EventSend, Room: s.room, Body: body, Context: docCtx})
}

// Reconnected re-registers membership after a new transport handshake;
// the server does not keep membership across reconnects.
func (s *Session) Reconnected() error {
	if s.room == "" {
		return nil
	}
	return s.ch.Emit(ws.IncomingEvent{Type: ws.EventJoin, Room: s.room})
}

// ActiveRoom returns the room the session currently views, or "".
func (s *Session) ActiveRoom() string { return s.room }

// UserGesture unlocks audio playback. Browsers require a gesture before
// autoplay; once unlocked the flag never reverts.
func (s *Session) UserGesture() {
	s.audioUnlocked = true
}

// Muted reports the durable mute preference for a room.
func (s *Session) Muted(room string) bool { return s.mutes.Muted(room) }

// SetMuted persists the mute preference for a room.
func (s *Session) SetMuted(room string, muted bool) error {
	return s.mutes.SetMuted(room, muted)
}

// HandleEvent consumes one server event. Handlers never block and side
// effect failures never interrupt rendering.
func (s *Session) HandleEvent(ev ws.OutgoingEvent) {
	switch ev.Type {
	case ws.EventMessage:
		p, ok := ev.Payload.(ws.MessagePayload)
		if !ok {
			return
		}
		s.handleMessage(p)
	case ws.EventInitialMessages:
		if p, ok := ev.Payload.([]ws.MessagePayload); ok {
			s.render.RenderHistory(p)
		}
	case ws.EventStatus:
		if p, ok := ev.Payload.(ws.StatusPayload); ok {
			s.render.RenderStatus(p.Room, p.Msg)
		}
	case ws.EventMention:
		if p, ok := ev.Payload.(ws.MentionPayload); ok {
			s.handleMention(p)
		}
	case ws.EventCountChanged:
		if p, ok := ev.Payload.(ws.CountChangedPayload); ok {
			s.render.UpdateBadge(p.Room, p.Count)
		}
	case ws.EventError:
		if p, ok := ev.Payload.(ws.ErrorPayload); ok {
			s.render.RenderError(p.Code, p.Msg)
		}
	}
}

func (s *Session) handleMessage(p ws.MessagePayload) {
	// Render first; sound and notification are dispatched after and their
	// failure never affects what the user sees.
	s.render.RenderMessage(p)

	if p.IsOwnMessage || s.mutes.Muted(p.Room) {
		return
	}
	s.playChime()
	s.showNotification(p.Username, p.Msg)
}

func (s *Session) handleMention(p ws.MentionPayload) {
	s.render.RenderMention(p.Room, p.Msg)
	if s.mutes.Muted(p.Room) {
		return
	}
	s.playChime()
	s.showNotification("Mention", p.Msg)
}

// playChime is best-effort: while audio is locked the attempt is skipped,
// and a playback error is logged without retry.
func (s *Session) playChime() {
	if !s.audioUnlocked {
		logger.Infof("session chime skipped: audio locked")
		return
	}
	if err := s.sound.Play(); err != nil {
		logger.Errorf("session chime: %v", err)
	}
}

func (s *Session) showNotification(title, body string) {
	if s.permission != PermissionGranted {
		return
	}
	if err := s.notify.Show(title, body); err != nil {
		logger.Errorf("session notification: %v", err)
	}
}
