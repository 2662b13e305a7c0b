package graph

import (
	"fmt"

	"go.uber.org/multierr"
)

// Process is an immutable process definition graph.
type Process struct {
	ID       string          `json:"id" yaml:"id"`
	Key      string          `json:"key" yaml:"key"`
	Name     string          `json:"name,omitempty" yaml:"name,omitempty"`
	Version  int             `json:"version,omitempty" yaml:"version,omitempty"`
	Elements []*FlowElement  `json:"elements" yaml:"elements"`
	Flows    []*SequenceFlow `json:"flows" yaml:"flows"`

	index    map[string]*FlowElement
	topLevel map[string]*FlowElement
}

// Init wires flows to their elements and indexes every element by id,
// including the ones nested in sub-processes. It must be called once before
// the process is used.
func (p *Process) Init() error {
	if p.ID == "" {
		p.ID = fmt.Sprintf("%s:%d", p.Key, p.Version)
	}
	p.index = map[string]*FlowElement{}
	p.topLevel = map[string]*FlowElement{}
	for _, element := range p.Elements {
		p.topLevel[element.ID] = element
	}
	return p.init(nil, p.Elements, p.Flows)
}

func (p *Process) init(parent *FlowElement, elements []*FlowElement, flows []*SequenceFlow) error {
	local := map[string]*FlowElement{}
	for _, element := range elements {
		if element.ID == "" {
			return fmt.Errorf("process %v: element with empty id", p.ID)
		}
		if _, ok := p.index[element.ID]; ok {
			return fmt.Errorf("process %v: duplicate element id %v", p.ID, element.ID)
		}
		element.Parent = parent
		element.Incoming, element.Outgoing, element.Boundaries = nil, nil, nil
		p.index[element.ID] = element
		local[element.ID] = element
	}
	for _, flow := range flows {
		source, ok := local[flow.SourceRef]
		if !ok {
			return fmt.Errorf("process %v: flow %v: unknown source %v", p.ID, flow.ID, flow.SourceRef)
		}
		target, ok := local[flow.TargetRef]
		if !ok {
			return fmt.Errorf("process %v: flow %v: unknown target %v", p.ID, flow.ID, flow.TargetRef)
		}
		source.Outgoing = append(source.Outgoing, flow)
		target.Incoming = append(target.Incoming, flow)
	}
	for _, element := range elements {
		if element.Kind != KindBoundaryEvent {
			continue
		}
		host, ok := local[element.AttachedTo]
		if !ok {
			return fmt.Errorf("process %v: boundary %v: unknown host %v", p.ID, element.ID, element.AttachedTo)
		}
		host.Boundaries = append(host.Boundaries, element)
		if element.IsEvent(EventCompensation) {
			handler, ok := local[element.CompensationHandler]
			if !ok {
				return fmt.Errorf("process %v: boundary %v: unknown compensation handler %v", p.ID, element.ID, element.CompensationHandler)
			}
			host.compensation = handler
		}
	}
	for _, element := range elements {
		if element.Kind == KindSubProcess {
			if err := p.init(element, element.Elements, element.Flows); err != nil {
				return err
			}
		}
	}
	return nil
}

// FlowElement returns the element with the given id. Nested elements are
// only found when recurse is set.
func (p *Process) FlowElement(id string, recurse bool) *FlowElement {
	if recurse {
		return p.index[id]
	}
	return p.topLevel[id]
}

// InitialElement returns the none start event of the process.
func (p *Process) InitialElement() *FlowElement {
	return startOf(p.Elements)
}

// TimerStartEvents returns top level start events carrying a timer definition.
func (p *Process) TimerStartEvents() []*FlowElement {
	var result []*FlowElement
	for _, element := range p.Elements {
		if element.Kind == KindStartEvent && element.IsEvent(EventTimer) {
			result = append(result, element)
		}
	}
	return result
}

// Validate reports structural problems of an initialised process.
func (p *Process) Validate() error {
	var err error
	if p.Key == "" {
		err = multierr.Append(err, fmt.Errorf("process %v: key was empty", p.ID))
	}
	if p.InitialElement() == nil {
		err = multierr.Append(err, fmt.Errorf("process %v: no start event", p.ID))
	}
	for _, element := range p.index {
		switch element.Kind {
		case KindStartEvent, KindEndEvent, KindTask, KindUserTask, KindReceiveTask, KindServiceTask,
			KindExclusiveGateway, KindParallelGateway, KindIntermediateCatchEvent, KindIntermediateThrowEvent, KindBoundaryEvent:
		case KindSubProcess:
			if element.StartElement() == nil {
				err = multierr.Append(err, fmt.Errorf("sub-process %v: no start event", element.ID))
			}
		default:
			err = multierr.Append(err, fmt.Errorf("element %v: unsupported kind %q", element.ID, element.Kind))
		}
		if element.Default != "" && element.DefaultFlow() == nil {
			err = multierr.Append(err, fmt.Errorf("element %v: default flow %v is not outgoing", element.ID, element.Default))
		}
		if element.Kind == KindIntermediateCatchEvent && element.Event == nil {
			err = multierr.Append(err, fmt.Errorf("catch event %v: missing event definition", element.ID))
		}
		if element.Event != nil && element.Event.Type == EventTimer {
			if element.Event.TimeDuration == "" && element.Event.TimeDate == "" {
				err = multierr.Append(err, fmt.Errorf("timer %v: missing timeDuration or timeDate", element.ID))
			}
		}
	}
	return err
}
