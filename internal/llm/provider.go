// Package llm defines the boundary between the evaluation engine and the
// generative AI providers it calls.
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role/content turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the provider-neutral generation request
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	System      string // Used when Messages carries no system turn
}

// Response is the normalized provider reply
type Response struct {
	Text       string
	TokensUsed int
}

// Provider is implemented by each provider adapter
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Registry maps provider names to adapters
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a registry holding the given providers
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", name)
	}
	return p, nil
}

// Has reports whether a provider is registered under name
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[name]
	return ok
}

// Names returns the registered provider names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SplitSystem separates the system text from the conversational turns.
// The first system message wins; fallback is used when there is none.
func SplitSystem(messages []Message, fallback string) (string, []Message) {
	system := ""
	found := false
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if !found {
				system = m.Content
				found = true
			}
			continue
		}
		rest = append(rest, m)
	}
	if !found {
		system = fallback
	}
	return system, rest
}
