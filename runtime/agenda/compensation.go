package agenda

import (
	"sort"

	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/model/graph"
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/service/dao"
)

// ThrowCompensation fires the compensation subscriptions of scope, most
// recent first. A non empty activityRef limits it to one activity. Each
// fired subscription is deleted; subscriptions without a compensating
// execution get a fresh child of scope. It returns the number of fired
// subscriptions.
func ThrowCompensation(ctx *command.Context, scope *entity.Execution, activityRef string) (int, error) {
	subscriptions, err := ctx.Session.Subscriptions(dao.NewParameter(dao.ExecutionID, scope.ID), dao.NewParameter(dao.EventType, entity.EventTypeCompensation))
	if err != nil {
		return 0, err
	}
	if activityRef != "" {
		target, err := compensationTarget(ctx, scope, activityRef)
		if err != nil {
			return 0, err
		}
		var filtered []*entity.EventSubscription
		for _, subscription := range subscriptions {
			if subscription.ActivityID == target {
				filtered = append(filtered, subscription)
			}
		}
		subscriptions = filtered
	}
	SortLIFO(subscriptions)
	for _, subscription := range subscriptions {
		fired := subscription.Clone()
		if fired.Configuration == "" {
			fired.Configuration = createChild(ctx, scope, subscription.ActivityID, false).ID
		}
		ctx.Session.DeleteSubscription(subscription)
		ctx.Agenda.Plan(&TriggerEvent{Subscription: fired})
	}
	if len(subscriptions) == 0 && scope.IsEventScope {
		return 0, endExecution(ctx, scope)
	}
	return len(subscriptions), nil
}

// compensationTarget maps an activity to the activity id its compensation
// subscription is recorded under.
func compensationTarget(ctx *command.Context, scope *entity.Execution, activityRef string) (string, error) {
	process, err := ctx.Process(scope.ProcessDefinitionID)
	if err != nil {
		return "", err
	}
	activity := process.FlowElement(activityRef, true)
	if activity == nil {
		return "", command.NewDomainError("compensation target %v not found in %v", activityRef, process.ID)
	}
	if activity.Kind == graph.KindSubProcess {
		return activity.ID, nil
	}
	handler := activity.CompensatedBy()
	if handler == nil {
		return "", command.NewDomainError("activity %v has no compensation handler", activityRef)
	}
	return handler.ID, nil
}

// SortLIFO orders subscriptions by creation time, most recent first; ties
// fall back to the time ordered id.
func SortLIFO(subscriptions []*entity.EventSubscription) {
	sort.SliceStable(subscriptions, func(i, j int) bool {
		if !subscriptions[i].CreateTime.Equal(subscriptions[j].CreateTime) {
			return subscriptions[i].CreateTime.After(subscriptions[j].CreateTime)
		}
		return subscriptions[i].ID > subscriptions[j].ID
	})
}
