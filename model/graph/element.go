package graph

// Kind identifies the behaviour of a flow element.
type Kind string

const (
	KindStartEvent             Kind = "startEvent"
	KindEndEvent               Kind = "endEvent"
	KindTask                   Kind = "task"
	KindUserTask               Kind = "userTask"
	KindReceiveTask            Kind = "receiveTask"
	KindServiceTask            Kind = "serviceTask"
	KindExclusiveGateway       Kind = "exclusiveGateway"
	KindParallelGateway        Kind = "parallelGateway"
	KindSubProcess             Kind = "subProcess"
	KindIntermediateCatchEvent Kind = "intermediateCatchEvent"
	KindIntermediateThrowEvent Kind = "intermediateThrowEvent"
	KindBoundaryEvent          Kind = "boundaryEvent"
)

// Event definition types.
const (
	EventTimer        = "timer"
	EventMessage      = "message"
	EventSignal       = "signal"
	EventCompensation = "compensation"
)

type (
	// EventDefinition describes what a catching or throwing event waits for.
	EventDefinition struct {
		Type         string `json:"type" yaml:"type"`
		TimeDuration string `json:"timeDuration,omitempty" yaml:"timeDuration,omitempty"`
		TimeDate     string `json:"timeDate,omitempty" yaml:"timeDate,omitempty"`
		EventName    string `json:"eventName,omitempty" yaml:"eventName,omitempty"`
		// ActivityRef restricts a compensation throw to one activity.
		ActivityRef string `json:"activityRef,omitempty" yaml:"activityRef,omitempty"`
	}

	// SequenceFlow connects two flow elements.
	SequenceFlow struct {
		ID        string `json:"id" yaml:"id"`
		Name      string `json:"name,omitempty" yaml:"name,omitempty"`
		SourceRef string `json:"sourceRef" yaml:"sourceRef"`
		TargetRef string `json:"targetRef" yaml:"targetRef"`
		Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
	}

	// FlowElement is a node of the process graph.
	FlowElement struct {
		ID              string           `json:"id" yaml:"id"`
		Name            string           `json:"name,omitempty" yaml:"name,omitempty"`
		Kind            Kind             `json:"kind" yaml:"kind"`
		Event           *EventDefinition `json:"event,omitempty" yaml:"event,omitempty"`
		Async           bool             `json:"async,omitempty" yaml:"async,omitempty"`
		Default         string           `json:"default,omitempty" yaml:"default,omitempty"`
		ForCompensation bool             `json:"forCompensation,omitempty" yaml:"forCompensation,omitempty"`
		AttachedTo      string           `json:"attachedTo,omitempty" yaml:"attachedTo,omitempty"`
		// CompensationHandler names the handler activity of a compensation boundary event.
		CompensationHandler string          `json:"compensationHandler,omitempty" yaml:"compensationHandler,omitempty"`
		Handler             string          `json:"handler,omitempty" yaml:"handler,omitempty"`
		Elements            []*FlowElement  `json:"elements,omitempty" yaml:"elements,omitempty"`
		Flows               []*SequenceFlow `json:"flows,omitempty" yaml:"flows,omitempty"`

		Incoming   []*SequenceFlow `json:"-" yaml:"-"`
		Outgoing   []*SequenceFlow `json:"-" yaml:"-"`
		Boundaries []*FlowElement  `json:"-" yaml:"-"`
		// Parent is the enclosing sub-process, nil for top level elements.
		Parent       *FlowElement `json:"-" yaml:"-"`
		compensation *FlowElement
	}
)

// IsEvent returns true when the element carries an event definition of the given type.
func (e *FlowElement) IsEvent(eventType string) bool {
	return e.Event != nil && e.Event.Type == eventType
}

// IsWaitState returns true for elements that park an execution until triggered.
func (e *FlowElement) IsWaitState() bool {
	switch e.Kind {
	case KindUserTask, KindReceiveTask:
		return true
	case KindIntermediateCatchEvent:
		return e.Event != nil
	}
	return false
}

// CompensatedBy returns the compensation handler of an activity, or nil.
func (e *FlowElement) CompensatedBy() *FlowElement {
	return e.compensation
}

// StartElement returns the none start event of a sub-process.
func (e *FlowElement) StartElement() *FlowElement {
	return startOf(e.Elements)
}

// DefaultFlow returns the default outgoing flow, or nil.
func (e *FlowElement) DefaultFlow() *SequenceFlow {
	if e.Default == "" {
		return nil
	}
	for _, flow := range e.Outgoing {
		if flow.ID == e.Default {
			return flow
		}
	}
	return nil
}

func startOf(elements []*FlowElement) *FlowElement {
	var candidate *FlowElement
	for _, element := range elements {
		if element.Kind != KindStartEvent {
			continue
		}
		if element.Event == nil {
			return element
		}
		if candidate == nil {
			candidate = element
		}
	}
	return candidate
}
