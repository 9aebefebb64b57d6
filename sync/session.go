// ABOUTME: Per-user session carried into every sync operation
// ABOUTME: Holds the live gateway, the armed auto-sync job and the in-flight flag
package sync

import (
	gosync "sync"

	"github.com/harperreed/leadsync/jobs"
	"go.uber.org/atomic"
)

// Session is the explicit context of one signed-in user. Sessions for
// different owners can be used concurrently against the same Service.
type Session struct {
	OwnerUserID string

	mu       gosync.Mutex
	gateway  Gateway
	autoSync *jobs.Handle
	syncing  atomic.Bool
}

func NewSession(ownerUserID string) *Session {
	return &Session{OwnerUserID: ownerUserID}
}

func (s *Session) authenticated() bool {
	return s != nil && s.OwnerUserID != ""
}

// Gateway returns the connected gateway, or nil.
func (s *Session) Gateway() Gateway {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gateway
}

// Connected reports whether the session holds a connected gateway.
func (s *Session) Connected() bool {
	return s.Gateway() != nil
}

// Syncing reports whether a pass is running for this session.
func (s *Session) Syncing() bool {
	return s.syncing.Load()
}

// AutoSync returns the armed periodic job, or nil.
func (s *Session) AutoSync() *jobs.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoSync
}

func (s *Session) attach(g Gateway) {
	s.mu.Lock()
	s.gateway = g
	s.mu.Unlock()
}

func (s *Session) detach() {
	s.mu.Lock()
	s.gateway = nil
	s.mu.Unlock()
}

// swapAutoSync installs h and returns the previously armed job.
func (s *Session) swapAutoSync(h *jobs.Handle) *jobs.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.autoSync
	s.autoSync = h
	return prev
}
