package executor

import (
	"github.com/pkg/errors"

	"github.com/aeonchain/aeon/pkg/trie"
)

var (
	ErrServiceNotFound    = errors.New("service not found")
	ErrMethodNotFound     = errors.New("service method not found")
	ErrDuplicateHandler   = errors.New("service method already registered")
	ErrCallDepthExceeded  = errors.New("service call depth exceeded")
	ErrCyclesLimitReached = errors.New("cycles limit reached")
)

// Handler serves one service method. The payload and all state access go
// through the ServiceContext.
type Handler func(ctx *ServiceContext) ([]byte, error)

// GenesisHandler seeds a service's initial state at chain creation.
type GenesisHandler func(state trie.State, payload []byte) error

// Registry is the explicit (service, method) dispatch table, populated by
// each service module during node startup.
type Registry struct {
	handlers map[string]map[string]Handler
	genesis  map[string]GenesisHandler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]map[string]Handler),
		genesis:  make(map[string]GenesisHandler),
	}
}

func (r *Registry) Register(service, method string, h Handler) error {
	m, ok := r.handlers[service]
	if !ok {
		m = make(map[string]Handler)
		r.handlers[service] = m
	}

	if _, ok := m[method]; ok {
		return errors.Wrapf(ErrDuplicateHandler, "%s.%s", service, method)
	}

	m[method] = h
	return nil
}

func (r *Registry) RegisterGenesis(service string, h GenesisHandler) {
	r.genesis[service] = h
}

func (r *Registry) handler(service, method string) (Handler, error) {
	m, ok := r.handlers[service]
	if !ok {
		return nil, errors.Wrap(ErrServiceNotFound, service)
	}

	h, ok := m[method]
	if !ok {
		return nil, errors.Wrapf(ErrMethodNotFound, "%s.%s", service, method)
	}

	return h, nil
}
