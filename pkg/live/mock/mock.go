// Package mock provides scriptable live.Provider and live.SessionHandle
// implementations for tests. A mock session records everything sent to it and
// lets the test emit server events on demand.
package mock

import (
	"context"
	"sync"

	"github.com/nami-os/nami/pkg/audio"
	"github.com/nami-os/nami/pkg/live"
)

var _ live.Provider = (*Provider)(nil)
var _ live.SessionHandle = (*Session)(nil)

// Provider hands out mock sessions. If ConnectErr is set, Connect fails with
// it; if ConnectDelay is set via BlockConnect, Connect blocks until the ctx
// is cancelled or the gate is released.
type Provider struct {
	mu         sync.Mutex
	connectErr error
	gate       chan struct{}
	sendGate   chan struct{}
	sessions   []*Session
	lastConfig live.SessionConfig
}

// NewProvider creates a mock provider.
func NewProvider() *Provider {
	return &Provider{}
}

// FailConnect makes subsequent Connect calls return err.
func (p *Provider) FailConnect(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectErr = err
}

// BlockConnect makes subsequent Connect calls block until the returned
// release function is invoked or the caller's context is cancelled.
func (p *Provider) BlockConnect() (release func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	gate := make(chan struct{})
	p.gate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// BlockSends makes SendAudio on sessions created afterwards block until the
// returned release function is invoked.
func (p *Provider) BlockSends() (release func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	gate := make(chan struct{})
	p.sendGate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Connect returns a fresh mock session, honouring any configured failure or
// gate.
func (p *Provider) Connect(ctx context.Context, cfg live.SessionConfig) (live.SessionHandle, error) {
	p.mu.Lock()
	errVal := p.connectErr
	gate := p.gate
	p.mu.Unlock()

	if errVal != nil {
		return nil, errVal
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s := NewSession()
	p.mu.Lock()
	s.sendGate = p.sendGate
	p.sessions = append(p.sessions, s)
	p.lastConfig = cfg
	p.mu.Unlock()
	return s, nil
}

// LastConfig returns the SessionConfig from the most recent Connect.
func (p *Provider) LastConfig() live.SessionConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastConfig
}

// Sessions returns all sessions handed out so far.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// Session is a scriptable session handle.
type Session struct {
	events   chan live.ServerEvent
	sendGate chan struct{}

	mu          sync.Mutex
	sentAudio   []audio.Chunk
	toolResults []live.ToolResult
	sendErr     error
	errVal      error
	closed      bool
	closeOnce   sync.Once
}

// NewSession creates an open mock session.
func NewSession() *Session {
	return &Session{
		events: make(chan live.ServerEvent, 64),
	}
}

// Emit delivers a server event to the session's consumer.
func (s *Session) Emit(ev live.ServerEvent) {
	s.events <- ev
}

// Fail records err and closes the event stream, simulating a transport error.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	if s.errVal == nil {
		s.errVal = err
	}
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.events) })
}

// FailSends makes subsequent SendAudio and SendToolResult calls return err.
func (s *Session) FailSends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErr = err
}

// SentAudio returns every chunk passed to SendAudio, in order.
func (s *Session) SentAudio() []audio.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audio.Chunk, len(s.sentAudio))
	copy(out, s.sentAudio)
	return out
}

// ToolResults returns every result passed to SendToolResult, in order.
func (s *Session) ToolResults() []live.ToolResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]live.ToolResult, len(s.toolResults))
	copy(out, s.toolResults)
	return out
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) SendAudio(chunk audio.Chunk) error {
	if s.sendGate != nil {
		<-s.sendGate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sentAudio = append(s.sentAudio, chunk)
	return nil
}

func (s *Session) SendToolResult(result live.ToolResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.toolResults = append(s.toolResults, result)
	return nil
}

func (s *Session) Events() <-chan live.ServerEvent { return s.events }

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.events) })
	return nil
}
