// Package fluxbpm provides an embeddable BPMN style process execution
// kernel.
//
// Process definitions are graphs of events, tasks, gateways and
// sub-processes. Running instances are trees of executions persisted
// through a dao.Store; every state change happens inside a command that
// drains an agenda of operations and flushes its unit of work atomically
// under optimistic locking. Timers, async continuations and timer start
// events are durable jobs leased and run by the job executor.
//
// End-users typically interact with the engine via the Service façade
// exposed by the root package:
//
//	srv, _ := fluxbpm.New()
//	rt := srv.Runtime()
//	process, _ := rt.DeployURL(ctx, "process.yaml")
//	instance, _ := rt.StartProcessInstance(ctx, process.ID, nil)
//	_ = rt.CompleteTask(ctx, taskExecutionID, map[string]interface{}{"number": 0})
//	_, _ = rt.Tick(ctx)
//
// For more details see the individual sub-packages.
package fluxbpm
