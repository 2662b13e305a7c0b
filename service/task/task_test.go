package task_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"go.uber.org/zap/zaptest"

	"github.com/viant/fluxbpm"
	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/model/graph"
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/service/task"
)

func storageProcess() *graph.Process {
	return &graph.Process{
		Key:     "storage",
		Version: 1,
		Elements: []*graph.FlowElement{
			{ID: "start", Kind: graph.KindStartEvent},
			{ID: "upload", Kind: graph.KindServiceTask, Handler: task.Upload},
			{ID: "log", Kind: graph.KindServiceTask, Handler: task.Log},
			{ID: "download", Kind: graph.KindServiceTask, Handler: task.Download},
			{ID: "skip", Kind: graph.KindServiceTask, Handler: task.Nop},
			{ID: "end", Kind: graph.KindEndEvent},
		},
		Flows: []*graph.SequenceFlow{
			{ID: "f1", SourceRef: "start", TargetRef: "upload"},
			{ID: "f2", SourceRef: "upload", TargetRef: "log"},
			{ID: "f3", SourceRef: "log", TargetRef: "download"},
			{ID: "f4", SourceRef: "download", TargetRef: "skip"},
			{ID: "f5", SourceRef: "skip", TargetRef: "end"},
		},
	}
}

func newRuntime(t *testing.T, fs afs.Service) *fluxbpm.Runtime {
	service, err := fluxbpm.New(fluxbpm.WithLogger(zaptest.NewLogger(t)), fluxbpm.WithDefinitionFs(fs))
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close() })
	return service.Runtime()
}

func TestStorage_UploadThenDownload(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	runtime := newRuntime(t, fs)
	process := storageProcess()
	require.NoError(t, runtime.Deploy(ctx, process))

	testCases := []struct {
		description string
		url         string
		content     interface{}
		expect      string
		contentType string
	}{
		{description: "text", url: "mem://localhost/task/note.txt", content: "hello", expect: "hello", contentType: "text/plain"},
		{description: "json", url: "mem://localhost/task/order.json", content: map[string]interface{}{"id": 7}, expect: `{"id":7}`, contentType: "application/json"},
		{description: "binary", url: "mem://localhost/task/blob", content: []byte{'a', 'b'}, expect: "ab", contentType: "application/octet-stream"},
	}
	for _, testCase := range testCases {
		root, err := runtime.StartProcessInstance(ctx, process.ID, map[string]interface{}{
			task.VarURL:     testCase.url,
			task.VarContent: testCase.content,
		})
		require.NoError(t, err, testCase.description)
		assert.True(t, root.IsEnded, testCase.description)
		assert.Equal(t, testCase.expect, root.Variables[task.VarContent], testCase.description)
		assert.EqualValues(t, len(testCase.expect), root.Variables[task.VarSize], testCase.description)
		assert.Equal(t, testCase.contentType, root.Variables[task.VarContentType], testCase.description)

		stored, err := fs.DownloadWithURL(ctx, testCase.url)
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expect, string(stored), testCase.description)
	}
}

func TestStorage_Errors(t *testing.T) {
	ctx := context.Background()
	runtime := newRuntime(t, afs.New())
	download := &graph.Process{
		Key:     "download",
		Version: 1,
		Elements: []*graph.FlowElement{
			{ID: "start", Kind: graph.KindStartEvent},
			{ID: "download", Kind: graph.KindServiceTask, Handler: task.Download},
		},
		Flows: []*graph.SequenceFlow{{ID: "f1", SourceRef: "start", TargetRef: "download"}},
	}
	upload := storageProcess()
	require.NoError(t, runtime.Deploy(ctx, download))
	require.NoError(t, runtime.Deploy(ctx, upload))

	_, err := runtime.StartProcessInstance(ctx, download.ID, map[string]interface{}{task.VarURL: "mem://localhost/task/missing.txt"})
	assert.True(t, command.IsDomain(err))

	_, err = runtime.StartProcessInstance(ctx, download.ID, nil)
	var configErr *command.ConfigurationError
	assert.True(t, errors.As(err, &configErr))

	_, err = runtime.StartProcessInstance(ctx, upload.ID, map[string]interface{}{task.VarURL: "mem://localhost/task/empty.txt"})
	assert.True(t, errors.As(err, &configErr))
}

func TestBuiltins_UserTaskOverrides(t *testing.T) {
	ctx := context.Background()
	var called bool
	service, err := fluxbpm.New(fluxbpm.WithLogger(zaptest.NewLogger(t)),
		fluxbpm.WithServiceTask(task.Nop, func(*command.Context, *entity.Execution, map[string]interface{}) (map[string]interface{}, error) {
			called = true
			return nil, nil
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close() })
	runtime := service.Runtime()
	process := &graph.Process{
		Key:     "nop",
		Version: 1,
		Elements: []*graph.FlowElement{
			{ID: "start", Kind: graph.KindStartEvent},
			{ID: "skip", Kind: graph.KindServiceTask, Handler: task.Nop},
			{ID: "end", Kind: graph.KindEndEvent},
		},
		Flows: []*graph.SequenceFlow{
			{ID: "f1", SourceRef: "start", TargetRef: "skip"},
			{ID: "f2", SourceRef: "skip", TargetRef: "end"},
		},
	}
	require.NoError(t, runtime.Deploy(ctx, process))
	root, err := runtime.StartProcessInstance(ctx, process.ID, nil)
	require.NoError(t, err)
	assert.True(t, root.IsEnded)
	assert.True(t, called)
	assert.Len(t, task.Builtins(nil), 4)
}
