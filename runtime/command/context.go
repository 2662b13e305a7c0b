package command

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/model/graph"
	"github.com/viant/fluxbpm/service/dao"
	"github.com/viant/fluxbpm/service/definition"
	"github.com/viant/fluxbpm/service/event"
)

// Settings are engine defaults visible to operations and handlers.
type Settings struct {
	// JobRetries is the retry budget of newly scheduled jobs.
	JobRetries int
	// MaxOperations bounds the agenda of one command; 0 is unlimited.
	MaxOperations int
}

// DefaultSettings returns the engine defaults.
func DefaultSettings() Settings {
	return Settings{JobRetries: 3, MaxOperations: 1000000}
}

// Context is passed explicitly to every operation and handler of a command.
type Context struct {
	ctx       context.Context
	Session   *Session
	Agenda    *Agenda
	Provider  definition.Provider
	Handlers  *Handlers
	Logger    *zap.Logger
	Settings  Settings
	processes map[string]*graph.Process
	events    []*event.Event
}

// Ctx returns the context.Context the command runs under.
func (c *Context) Ctx() context.Context {
	return c.ctx
}

// Process resolves a definition once per command.
func (c *Context) Process(id string) (*graph.Process, error) {
	if ret, ok := c.processes[id]; ok {
		return ret, nil
	}
	ret, err := c.Provider.Process(c.ctx, id)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, NewDomainError("unknown process definition %v: %w", id, err)
		}
		return nil, err
	}
	c.processes[id] = ret
	return ret, nil
}

// FlowElement resolves the current element of an execution.
func (c *Context) FlowElement(execution *entity.Execution) (*graph.Process, *graph.FlowElement, error) {
	process, err := c.Process(execution.ProcessDefinitionID)
	if err != nil {
		return nil, nil, err
	}
	element := process.FlowElement(execution.CurrentFlowElementID, true)
	if element == nil {
		return nil, nil, NewDomainError("execution %v: unknown flow element %q in %v", execution.ID, execution.CurrentFlowElementID, process.ID)
	}
	return process, element, nil
}

// Emit queues a lifecycle event dispatched after commit.
func (c *Context) Emit(eventType string, execution *entity.Execution, data map[string]interface{}) {
	eventContext := &event.Context{EventType: eventType}
	if execution != nil {
		eventContext.ProcessInstanceID = execution.ProcessInstanceID
		eventContext.ProcessDefinitionID = execution.ProcessDefinitionID
		eventContext.ExecutionID = execution.ID
		eventContext.ActivityID = execution.CurrentFlowElementID
	}
	c.events = append(c.events, event.NewEvent(eventContext, data))
}

// EmitJob queues a job lifecycle event.
func (c *Context) EmitJob(eventType string, job *entity.Job, data map[string]interface{}) {
	c.events = append(c.events, event.NewEvent(&event.Context{
		EventType:           eventType,
		ProcessInstanceID:   job.ProcessInstanceID,
		ProcessDefinitionID: job.ProcessDefinitionID,
		ExecutionID:         job.ExecutionID,
		JobID:               job.ID,
	}, data))
}

// Events returns the queued lifecycle events.
func (c *Context) Events() []*event.Event {
	return c.events
}

// Variables merges variables from the process instance root down to the
// execution; the nearest definition wins.
func (c *Context) Variables(execution *entity.Execution) (map[string]interface{}, error) {
	var chain []*entity.Execution
	for current := execution; current != nil; {
		chain = append(chain, current)
		if current.ParentID == "" {
			break
		}
		parent, err := c.Session.Execution(current.ParentID)
		if err != nil {
			return nil, err
		}
		current = parent
	}
	ret := map[string]interface{}{}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].Variables {
			ret[k] = v
		}
	}
	return ret, nil
}

// SetVariables writes variables to the process instance root.
func (c *Context) SetVariables(execution *entity.Execution, variables map[string]interface{}) error {
	if len(variables) == 0 {
		return nil
	}
	root, err := c.Session.Execution(execution.ProcessInstanceID)
	if err != nil {
		return err
	}
	if root.Variables == nil {
		root.Variables = map[string]interface{}{}
	}
	for k, v := range variables {
		root.Variables[k] = v
	}
	return nil
}
