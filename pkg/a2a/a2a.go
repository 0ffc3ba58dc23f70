// Package a2a carries agent-to-agent requests between domain workers. Workers in
// one process talk through LocalTransport; workers in separate processes talk
// through HTTPTransport and the server's POST /a2a/:domain route.
package a2a

import (
	"context"
	"errors"
	"fmt"

	"github.com/soundprediction/lexigraph/pkg/types"
)

// ErrUnknownDomain is returned when no worker serves the target domain.
var ErrUnknownDomain = errors.New("unknown a2a target domain")

// Handler answers A2A requests for one domain.
type Handler interface {
	HandleA2ARequest(ctx context.Context, req types.A2ARequest) (types.A2AResponse, error)
}

// Directory resolves a domain id to its in-process handler.
type Directory interface {
	Handler(domainID string) (Handler, bool)
}

// Transport delivers a request to the worker of domainID.
type Transport interface {
	Send(ctx context.Context, domainID string, req types.A2ARequest) (types.A2AResponse, error)
}

// LocalTransport dispatches to handlers in the same process.
type LocalTransport struct {
	dir Directory
}

// NewLocalTransport creates a transport over dir.
func NewLocalTransport(dir Directory) *LocalTransport {
	return &LocalTransport{dir: dir}
}

// Send implements Transport.
func (t *LocalTransport) Send(ctx context.Context, domainID string, req types.A2ARequest) (types.A2AResponse, error) {
	h, ok := t.dir.Handler(domainID)
	if !ok {
		return types.A2AResponse{}, fmt.Errorf("%w: %s", ErrUnknownDomain, domainID)
	}
	if err := ctx.Err(); err != nil {
		return types.A2AResponse{}, types.Wrap(types.KindTimeout, "a2a.local", err)
	}
	return h.HandleA2ARequest(ctx, req)
}
