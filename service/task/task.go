package task

import (
	"sort"

	"go.uber.org/zap"

	"github.com/viant/afs"

	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/runtime/command"
)

// Handler names.
const (
	Nop      = "system/nop"
	Log      = "system/log"
	Upload   = "system/storage/upload"
	Download = "system/storage/download"
)

// Builtins returns the built-in service task handlers keyed by name.
func Builtins(fs afs.Service) map[string]command.ServiceFunc {
	if fs == nil {
		fs = afs.New()
	}
	storage := &Storage{fs: fs}
	return map[string]command.ServiceFunc{
		Nop:      nop,
		Log:      logVariables,
		Upload:   storage.Upload,
		Download: storage.Download,
	}
}

// does nothing
func nop(*command.Context, *entity.Execution, map[string]interface{}) (map[string]interface{}, error) {
	return nil, nil
}

// logVariables logs the visible variables of the execution at info level.
func logVariables(ctx *command.Context, execution *entity.Execution, variables map[string]interface{}) (map[string]interface{}, error) {
	names := make([]string, 0, len(variables))
	for name := range variables {
		names = append(names, name)
	}
	sort.Strings(names)
	fields := []zap.Field{
		zap.String("processInstance", execution.ProcessInstanceID),
		zap.String("activity", execution.CurrentFlowElementID),
	}
	for _, name := range names {
		fields = append(fields, zap.Any(name, variables[name]))
	}
	ctx.Logger.Info("process variables", fields...)
	return nil, nil
}
