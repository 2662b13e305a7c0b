package fluxbpm

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/model/graph"
	"github.com/viant/fluxbpm/runtime/command"
)

// recorder collects the activities service tasks ran for.
type recorder struct {
	mux        sync.Mutex
	activities []string
}

func (r *recorder) record(ctx *command.Context, execution *entity.Execution, variables map[string]interface{}) (map[string]interface{}, error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.activities = append(r.activities, execution.CurrentFlowElementID)
	return nil, nil
}

func (r *recorder) ran() []string {
	r.mux.Lock()
	defer r.mux.Unlock()
	return append([]string{}, r.activities...)
}

func newEngine(t *testing.T, options ...Option) *Runtime {
	t.Helper()
	options = append([]Option{WithLogger(zaptest.NewLogger(t))}, options...)
	service, err := New(options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close() })
	return service.Runtime()
}

func deploy(t *testing.T, runtime *Runtime, process *graph.Process) *graph.Process {
	t.Helper()
	require.NoError(t, runtime.Deploy(context.Background(), process))
	return process
}

// activeAt returns the single live execution of an instance at activityID.
func activeAt(t require.TestingT, runtime *Runtime, processInstanceID, activityID string) *entity.Execution {
	executions, err := runtime.ActiveExecutions(context.Background(), processInstanceID, activityID)
	require.NoError(t, err)
	require.Len(t, executions, 1, activityID)
	return executions[0]
}

func flow(id, source, target string) *graph.SequenceFlow {
	return &graph.SequenceFlow{ID: id, SourceRef: source, TargetRef: target}
}

func linearProcess() *graph.Process {
	return &graph.Process{
		Key:     "linear",
		Version: 1,
		Elements: []*graph.FlowElement{
			{ID: "start", Kind: graph.KindStartEvent},
			{ID: "prepare", Kind: graph.KindTask},
			{ID: "review", Kind: graph.KindUserTask},
			{ID: "end", Kind: graph.KindEndEvent},
		},
		Flows: []*graph.SequenceFlow{
			flow("f1", "start", "prepare"),
			flow("f2", "prepare", "review"),
			flow("f3", "review", "end"),
		},
	}
}

// gatewayProcess routes number <= 1 through flow1Condition to task1 and
// everything else through the default flow2 to task2.
func gatewayProcess() *graph.Process {
	return &graph.Process{
		Key:     "gateway",
		Version: 1,
		Elements: []*graph.FlowElement{
			{ID: "start", Kind: graph.KindStartEvent},
			{ID: "userTask1", Kind: graph.KindUserTask},
			{ID: "gateway1", Kind: graph.KindExclusiveGateway, Default: "flow2"},
			{ID: "task1", Kind: graph.KindUserTask},
			{ID: "task2", Kind: graph.KindUserTask},
			{ID: "end", Kind: graph.KindEndEvent},
		},
		Flows: []*graph.SequenceFlow{
			flow("f0", "start", "userTask1"),
			flow("f1", "userTask1", "gateway1"),
			{ID: "flow1Condition", SourceRef: "gateway1", TargetRef: "task1", Condition: "${number <= 1}"},
			flow("flow2", "gateway1", "task2"),
			flow("f3", "task1", "end"),
			flow("f4", "task2", "end"),
		},
	}
}

func forkJoinProcess() *graph.Process {
	return &graph.Process{
		Key:     "forkjoin",
		Version: 1,
		Elements: []*graph.FlowElement{
			{ID: "start", Kind: graph.KindStartEvent},
			{ID: "fork", Kind: graph.KindParallelGateway},
			{ID: "a", Kind: graph.KindUserTask},
			{ID: "b", Kind: graph.KindUserTask},
			{ID: "c", Kind: graph.KindUserTask},
			{ID: "join", Kind: graph.KindParallelGateway},
			{ID: "after", Kind: graph.KindUserTask},
			{ID: "end", Kind: graph.KindEndEvent},
		},
		Flows: []*graph.SequenceFlow{
			flow("f0", "start", "fork"),
			flow("fa", "fork", "a"),
			flow("fb", "fork", "b"),
			flow("fc", "fork", "c"),
			flow("ja", "a", "join"),
			flow("jb", "b", "join"),
			flow("jc", "c", "join"),
			flow("f1", "join", "after"),
			flow("f2", "after", "end"),
		},
	}
}

// bookingProcess books and charges, then compensates both before review.
func bookingProcess() *graph.Process {
	return &graph.Process{
		Key:     "booking",
		Version: 1,
		Elements: []*graph.FlowElement{
			{ID: "start", Kind: graph.KindStartEvent},
			{ID: "book", Kind: graph.KindTask},
			{ID: "bookCompensation", Kind: graph.KindBoundaryEvent, AttachedTo: "book", Event: &graph.EventDefinition{Type: graph.EventCompensation}, CompensationHandler: "cancelBooking"},
			{ID: "cancelBooking", Kind: graph.KindServiceTask, ForCompensation: true, Handler: "record"},
			{ID: "charge", Kind: graph.KindTask},
			{ID: "chargeCompensation", Kind: graph.KindBoundaryEvent, AttachedTo: "charge", Event: &graph.EventDefinition{Type: graph.EventCompensation}, CompensationHandler: "refund"},
			{ID: "refund", Kind: graph.KindServiceTask, ForCompensation: true, Handler: "record"},
			{ID: "confirm", Kind: graph.KindUserTask},
			{ID: "undo", Kind: graph.KindIntermediateThrowEvent, Event: &graph.EventDefinition{Type: graph.EventCompensation}},
			{ID: "review", Kind: graph.KindUserTask},
			{ID: "end", Kind: graph.KindEndEvent},
		},
		Flows: []*graph.SequenceFlow{
			flow("f1", "start", "book"),
			flow("f2", "book", "charge"),
			flow("f3", "charge", "confirm"),
			flow("f4", "confirm", "undo"),
			flow("f5", "undo", "review"),
			flow("f6", "review", "end"),
		},
	}
}
