package agenda

import (
	"github.com/viant/fluxbpm/internal/idgen"
	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/model/graph"
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/service/event"
)

// StartProcessInstance creates the root execution of a new instance and
// plans its first step. An empty initialElementID starts at the none start
// event.
func StartProcessInstance(ctx *command.Context, process *graph.Process, initialElementID string, variables map[string]interface{}) (*entity.Execution, error) {
	initial := process.InitialElement()
	if initialElementID != "" {
		initial = process.FlowElement(initialElementID, true)
	}
	if initial == nil {
		return nil, command.NewDomainError("process %v: no initial element %q", process.ID, initialElementID)
	}
	root := &entity.Execution{
		ID:                   idgen.New(),
		ProcessDefinitionID:  process.ID,
		CurrentFlowElementID: initial.ID,
		IsActive:             true,
		IsScope:              true,
	}
	root.ProcessInstanceID = root.ID
	if len(variables) > 0 {
		root.Variables = make(map[string]interface{}, len(variables))
		for k, v := range variables {
			root.Variables[k] = v
		}
	}
	ctx.Session.InsertExecution(root)
	ctx.Emit(event.ProcessStarted, root, nil)
	PlanContinue(ctx, root)
	return root, nil
}
