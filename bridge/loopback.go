package bridge

import (
	"strings"
	"sync"
)

const LoopbackParentSource = "loopback.parent"

// Responder answers envelopes posted to a loopback parent.
type Responder func(env Envelope) []Envelope

// LoopbackConfig shapes an in-process window/host pair.
type LoopbackConfig struct {
	Origin     string
	HostOrigin string
	TopLevel   bool
	// HostFlag is what Parent.IsHost reports unless HostFlagErr is set.
	HostFlag    bool
	HostFlagErr error
	Responder   Responder
}

// Loopback is a Window whose parent lives in the same process.
type Loopback struct {
	cfg      LoopbackConfig
	parent   *loopbackParent
	messages ListenerSet[Message]
	storage  ListenerSet[StorageChange]
}

type loopbackParent struct {
	owner *Loopback

	mu   sync.Mutex
	sent []Envelope
}

func NewLoopback(cfg LoopbackConfig) *Loopback {
	cfg.Origin = strings.TrimSpace(cfg.Origin)
	if strings.TrimSpace(cfg.HostOrigin) == "" {
		cfg.HostOrigin = cfg.Origin
	}
	lb := &Loopback{cfg: cfg}
	if !cfg.TopLevel {
		lb.parent = &loopbackParent{owner: lb}
	}
	return lb
}

func (l *Loopback) Origin() string {
	return l.cfg.Origin
}

func (l *Loopback) Parent() (Parent, bool) {
	if l.parent == nil {
		return nil, false
	}
	return l.parent, true
}

func (l *Loopback) AddMessageListener(fn Listener) func() {
	return l.messages.Add(fn)
}

func (l *Loopback) AddStorageListener(fn StorageListener) func() {
	return l.storage.Add(fn)
}

// Deliver hands msg to every message listener.
func (l *Loopback) Deliver(msg Message) {
	l.messages.Emit(msg)
}

// DeliverFromParent delivers env as if posted by the parent.
func (l *Loopback) DeliverFromParent(env Envelope) {
	l.Deliver(Message{
		Source:   LoopbackParentSource,
		Origin:   l.cfg.HostOrigin,
		Envelope: env,
	})
}

// EmitStorage notifies storage listeners of a mutation.
func (l *Loopback) EmitStorage(change StorageChange) {
	l.storage.Emit(change)
}

func (l *Loopback) MessageListenerCount() int {
	return l.messages.Len()
}

func (l *Loopback) StorageListenerCount() int {
	return l.storage.Len()
}

// Sent returns a copy of every envelope accepted by the parent.
func (l *Loopback) Sent() []Envelope {
	if l.parent == nil {
		return nil
	}
	l.parent.mu.Lock()
	defer l.parent.mu.Unlock()
	out := make([]Envelope, len(l.parent.sent))
	copy(out, l.parent.sent)
	return out
}

func (p *loopbackParent) SourceID() string {
	return LoopbackParentSource
}

func (p *loopbackParent) IsHost() (bool, error) {
	if p.owner.cfg.HostFlagErr != nil {
		return false, p.owner.cfg.HostFlagErr
	}
	return p.owner.cfg.HostFlag, nil
}

func (p *loopbackParent) PostMessage(env Envelope, targetOrigin string) error {
	if err := env.Validate(); err != nil {
		return err
	}
	if targetOrigin != p.owner.cfg.HostOrigin {
		return nil
	}
	p.mu.Lock()
	p.sent = append(p.sent, env)
	p.mu.Unlock()

	if p.owner.cfg.Responder == nil {
		return nil
	}
	for _, reply := range p.owner.cfg.Responder(env) {
		p.owner.DeliverFromParent(reply)
	}
	return nil
}

// GrantResponder answers checkPermission requests with allow(pluginID, capability).
func GrantResponder(allow func(pluginID, capability string) bool) Responder {
	return func(env Envelope) []Envelope {
		capability, err := env.RequestedCapability()
		if err != nil {
			return nil
		}
		reply, err := CheckPermissionResponse(capability, allow(env.ID, capability))
		if err != nil {
			return nil
		}
		return []Envelope{reply}
	}
}
