package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SandboxPlatform is an in-process push platform: subscriptions carry
// real P-256 key material and endpoints under a configurable base URL,
// so webpush payloads encrypted against them decrypt cleanly. Used in
// dev mode and tests where no browser runtime exists.
type SandboxPlatform struct {
	baseURL string

	mu        sync.Mutex
	registers int
	reg       *sandboxRegistration
}

func NewSandboxPlatform(baseURL string) *SandboxPlatform {
	if baseURL == "" {
		baseURL = "https://push.sandbox.invalid"
	}
	return &SandboxPlatform{baseURL: baseURL}
}

// RegisterCalls reports how many registration requests were issued.
func (p *SandboxPlatform) RegisterCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registers
}

// Register returns the platform's single registration, creating it on
// first use. Every call counts as one registration request.
func (p *SandboxPlatform) Register(_ context.Context, _ string) (Registration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registers++
	if p.reg == nil {
		p.reg = &sandboxRegistration{platform: p}
	}
	return p.reg, nil
}

type sandboxRegistration struct {
	platform *SandboxPlatform

	mu      sync.Mutex
	current *sandboxSubscription
}

func (r *sandboxRegistration) Subscription(_ context.Context) (PlatformSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil, nil
	}
	return r.current, nil
}

func (r *sandboxRegistration) Subscribe(_ context.Context, applicationServerKey []byte) (PlatformSubscription, error) {
	if len(applicationServerKey) != 65 {
		return nil, fmt.Errorf("application server key must be a 65-byte P-256 point, got %d bytes", len(applicationServerKey))
	}

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = &sandboxSubscription{
		registration: r,
		endpoint:     r.platform.baseURL + "/" + uuid.NewString(),
		p256dh:       priv.PublicKey().Bytes(), // 65-byte uncompressed point
		auth:         auth,
	}
	return r.current, nil
}

type sandboxSubscription struct {
	registration *sandboxRegistration
	endpoint     string
	p256dh       []byte
	auth         []byte
}

func (s *sandboxSubscription) Endpoint() string { return s.endpoint }

func (s *sandboxSubscription) Key(name string) ([]byte, error) {
	switch name {
	case KeyP256dh:
		return s.p256dh, nil
	case KeyAuth:
		return s.auth, nil
	}
	return nil, fmt.Errorf("unknown subscription key %q", name)
}

func (s *sandboxSubscription) Unsubscribe(_ context.Context) error {
	s.registration.mu.Lock()
	defer s.registration.mu.Unlock()
	if s.registration.current == s {
		s.registration.current = nil
	}
	return nil
}
