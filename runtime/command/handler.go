package command

import (
	"sync"

	"github.com/viant/fluxbpm/model/entity"
)

// EventHandler reacts to a fired event subscription.
type EventHandler interface {
	Handle(ctx *Context, subscription *entity.EventSubscription, payload map[string]interface{}) error
}

// JobHandler executes one job type.
type JobHandler interface {
	Execute(ctx *Context, job *entity.Job) error
}

// ServiceFunc implements a service task; returned variables are merged into
// the process instance.
type ServiceFunc func(ctx *Context, execution *entity.Execution, variables map[string]interface{}) (map[string]interface{}, error)

// Handlers are the registries keyed by event type, job type and service name.
type Handlers struct {
	mux      sync.RWMutex
	events   map[string]EventHandler
	jobs     map[string]JobHandler
	services map[string]ServiceFunc
}

func NewHandlers() *Handlers {
	return &Handlers{
		events:   map[string]EventHandler{},
		jobs:     map[string]JobHandler{},
		services: map[string]ServiceFunc{},
	}
}

func (h *Handlers) RegisterEvent(eventType string, handler EventHandler) {
	h.mux.Lock()
	defer h.mux.Unlock()
	h.events[eventType] = handler
}

func (h *Handlers) RegisterJob(jobType string, handler JobHandler) {
	h.mux.Lock()
	defer h.mux.Unlock()
	h.jobs[jobType] = handler
}

func (h *Handlers) RegisterService(name string, fn ServiceFunc) {
	h.mux.Lock()
	defer h.mux.Unlock()
	h.services[name] = fn
}

func (h *Handlers) Event(eventType string) (EventHandler, bool) {
	h.mux.RLock()
	defer h.mux.RUnlock()
	ret, ok := h.events[eventType]
	return ret, ok
}

func (h *Handlers) Job(jobType string) (JobHandler, bool) {
	h.mux.RLock()
	defer h.mux.RUnlock()
	ret, ok := h.jobs[jobType]
	return ret, ok
}

func (h *Handlers) Service(name string) (ServiceFunc, bool) {
	h.mux.RLock()
	defer h.mux.RUnlock()
	ret, ok := h.services[name]
	return ret, ok
}
