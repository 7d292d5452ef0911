package ethereum

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Registry routes creation-time lookups to the RPC client of the requested
// network. Networks are registered once at startup.
type Registry struct {
	clients map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

func (r *Registry) Add(network string, c *Client) {
	r.clients[strings.ToLower(network)] = c
}

// Networks returns the registered network names, sorted.
func (r *Registry) Networks() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) TokenCreationTime(ctx context.Context, token, network string) (int64, error) {
	c, ok := r.clients[strings.ToLower(network)]
	if !ok {
		return 0, fmt.Errorf("no RPC client registered for network %q", network)
	}
	return c.TokenCreationTime(ctx, token)
}

func (r *Registry) Close() {
	for _, c := range r.clients {
		c.Close()
	}
}
