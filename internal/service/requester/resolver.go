package requester

import (
	"context"
	"fmt"

	domsvc "ForecastDesk/internal/domain/service"
	"ForecastDesk/pkg/config"
)

// Static treats the identifier itself as the requester name.
type Static struct{}

func (Static) Resolve(_ context.Context, identifier string) (string, error) {
	return identifier, nil
}

// Directory looks a user up by identifier.
type Directory interface {
	LookupRequester(ctx context.Context, identifier string) (string, error)
}

// Lookup resolves names through a Directory, typically the backend's user endpoint.
type Lookup struct {
	dir Directory
}

func NewLookup(dir Directory) *Lookup {
	return &Lookup{dir: dir}
}

// Resolve returns "" without a lookup for an empty identifier.
func (r *Lookup) Resolve(ctx context.Context, identifier string) (string, error) {
	if identifier == "" {
		return "", nil
	}
	return r.dir.LookupRequester(ctx, identifier)
}

// New builds the resolver named by strategy.
func New(strategy string, dir Directory) (domsvc.RequesterResolver, error) {
	switch strategy {
	case "", config.RequesterStatic:
		return Static{}, nil
	case config.RequesterLookup:
		if dir == nil {
			return nil, fmt.Errorf("lookup strategy needs a directory")
		}
		return NewLookup(dir), nil
	default:
		return nil, fmt.Errorf("unknown requester strategy %q", strategy)
	}
}
