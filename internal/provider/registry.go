package provider

import (
	"fmt"

	"ludex/internal/services"
)

// Registry holds the enabled provider clients in priority order.
type Registry struct {
	order   []ID
	clients map[ID]Client
}

// NewRegistry builds a registry from the configured priority order. Clients
// missing from the order are ignored; order entries without a client fail.
func NewRegistry(order []ID, clients ...Client) (*Registry, error) {
	byID := make(map[ID]Client, len(clients))
	for _, client := range clients {
		if client == nil {
			continue
		}
		byID[client.ID()] = client
	}

	reg := &Registry{clients: make(map[ID]Client, len(order))}
	for _, id := range order {
		client, ok := byID[id]
		if !ok {
			return nil, services.Wrap(services.ErrConfiguration, "provider", "registry",
				fmt.Sprintf("provider %q is in sync.provider_order but not enabled", id), nil)
		}
		reg.order = append(reg.order, id)
		reg.clients[id] = client
	}
	if len(reg.order) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "provider", "registry",
			"no providers enabled", nil)
	}
	return reg, nil
}

// Order returns the provider priority order.
func (r *Registry) Order() []ID {
	cp := make([]ID, len(r.order))
	copy(cp, r.order)
	return cp
}

// Restrict returns the priority order filtered to the requested subset. An
// empty subset means "all providers".
func (r *Registry) Restrict(subset []ID) []ID {
	if len(subset) == 0 {
		return r.Order()
	}
	allowed := make(map[ID]struct{}, len(subset))
	for _, id := range subset {
		allowed[id] = struct{}{}
	}
	var out []ID
	for _, id := range r.order {
		if _, ok := allowed[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Client returns the client registered for id.
func (r *Registry) Client(id ID) (Client, error) {
	client, ok := r.clients[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "provider", "lookup",
			fmt.Sprintf("no client registered for provider %q", id), nil)
	}
	return client, nil
}
