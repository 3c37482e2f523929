package taskqueue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueue 测试用的内存队列实现
// 记录入队和状态更新的调用，便于断言
type fakeQueue struct {
	tasks       map[string]*Task
	enqueued    []TaskType
	enqueueID   string
	enqueueErr  error
	notifyCount int
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		tasks:     make(map[string]*Task),
		enqueueID: "fake-task-id",
	}
}

func (q *fakeQueue) addTask(task *Task) {
	q.tasks[task.ID] = task
}

func (q *fakeQueue) Enqueue(ctx context.Context, taskType TaskType, letterID string, payload interface{}) (string, error) {
	if q.enqueueErr != nil {
		return "", q.enqueueErr
	}

	q.enqueued = append(q.enqueued, taskType)
	payloadBytes, _ := MarshalPayload(payload)
	q.tasks[q.enqueueID] = &Task{
		ID:       q.enqueueID,
		Type:     taskType,
		LetterID: letterID,
		Status:   StatusPending,
		Payload:  payloadBytes,
	}
	return q.enqueueID, nil
}

func (q *fakeQueue) GetTask(ctx context.Context, taskID string) (*Task, error) {
	task, ok := q.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (q *fakeQueue) GetTasksByLetter(ctx context.Context, letterID string) ([]*Task, error) {
	var tasks []*Task
	for _, task := range q.tasks {
		if task.LetterID == letterID {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (q *fakeQueue) WaitForTask(ctx context.Context, taskID string, timeout time.Duration) (*Task, error) {
	return q.GetTask(ctx, taskID)
}

func (q *fakeQueue) DeleteTask(ctx context.Context, taskID string) error {
	delete(q.tasks, taskID)
	return nil
}

func (q *fakeQueue) UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, result interface{}, errorMsg string) error {
	task, ok := q.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}

	task.Status = status
	if result != nil {
		resultBytes, err := MarshalPayload(result)
		if err != nil {
			return err
		}
		task.Result = resultBytes
	}
	if errorMsg != "" {
		task.Error = errorMsg
	}
	return nil
}

func (q *fakeQueue) NotifyTaskUpdate(ctx context.Context, taskID string) error {
	q.notifyCount++
	return nil
}

func (q *fakeQueue) Close() error {
	return nil
}

// TestNewCallbackProcessor 测试创建一个回调处理器
func TestNewCallbackProcessor(t *testing.T) {
	queue := newFakeQueue()
	logger := logrus.New()

	processor := NewCallbackProcessor(queue, logger)

	assert.NotNil(t, processor)
	assert.Equal(t, logger, processor.logger)
	assert.NotNil(t, processor.handlers)
}

// TestRegisterHandler 测试注册一个处理函数
func TestRegisterHandler(t *testing.T) {
	queue := newFakeQueue()
	processor := NewCallbackProcessor(queue, logrus.New())

	handlerCalled := false
	handler := func(ctx context.Context, task *Task, result json.RawMessage) error {
		handlerCalled = true
		return nil
	}
	processor.RegisterHandler(TaskLetterParse, handler)

	assert.NotNil(t, processor.handlers[TaskLetterParse])

	err := processor.handlers[TaskLetterParse](context.Background(), nil, nil)
	assert.NoError(t, err)
	assert.True(t, handlerCalled)
}

// TestSetDefaultHandler 测试设置默认处理函数
func TestSetDefaultHandler(t *testing.T) {
	queue := newFakeQueue()
	processor := NewCallbackProcessor(queue, logrus.New())

	defaultHandlerCalled := false
	processor.SetDefaultHandler(func(ctx context.Context, task *Task, result json.RawMessage) error {
		defaultHandlerCalled = true
		return nil
	})

	assert.NotNil(t, processor.defaultFn)
	err := processor.defaultFn(context.Background(), nil, nil)
	assert.NoError(t, err)
	assert.True(t, defaultHandlerCalled)
}

// TestProcessCallback_ValidData 测试处理有效的回调数据
func TestProcessCallback_ValidData(t *testing.T) {
	queue := newFakeQueue()
	processor := NewCallbackProcessor(queue, logrus.New())

	taskID := "test-task-id"
	letterID := "test-letter-id"
	queue.addTask(&Task{
		ID:       taskID,
		Type:     TaskAnnotateLetter,
		LetterID: letterID,
		Status:   StatusPending,
	})

	handlerCalled := false
	processor.RegisterHandler(TaskAnnotateLetter, func(ctx context.Context, task *Task, result json.RawMessage) error {
		handlerCalled = true
		assert.Equal(t, taskID, task.ID)
		assert.Equal(t, json.RawMessage(`{"run_id":"run-1"}`), result)
		return nil
	})

	callback := &TaskCallback{
		TaskID:    taskID,
		LetterID:  letterID,
		Status:    StatusCompleted,
		Type:      TaskAnnotateLetter,
		Result:    json.RawMessage(`{"run_id":"run-1"}`),
		Timestamp: time.Now(),
	}

	callbackData, err := json.Marshal(callback)
	require.NoError(t, err)

	err = processor.ProcessCallback(context.Background(), callbackData)
	assert.NoError(t, err)
	assert.True(t, handlerCalled)

	// 任务状态应已更新
	task, err := queue.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.Equal(t, 1, queue.notifyCount)
}

// TestProcessCallback_InvalidData 测试处理无效的回调数据
func TestProcessCallback_InvalidData(t *testing.T) {
	queue := newFakeQueue()
	processor := NewCallbackProcessor(queue, logrus.New())

	err := processor.ProcessCallback(context.Background(), []byte("invalid json"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal callback data")
}

// TestProcessCallback_TaskFailed 测试处理失败任务的回调
func TestProcessCallback_TaskFailed(t *testing.T) {
	queue := newFakeQueue()
	processor := NewCallbackProcessor(queue, logrus.New())

	taskID := "failed-task-id"
	queue.addTask(&Task{
		ID:       taskID,
		Type:     TaskAnnotateLetter,
		LetterID: "test-letter-id",
		Status:   StatusPending,
	})

	handlerCalled := false
	processor.RegisterHandler(TaskAnnotateLetter, func(ctx context.Context, task *Task, result json.RawMessage) error {
		handlerCalled = true
		return nil
	})

	callback := &TaskCallback{
		TaskID:    taskID,
		LetterID:  "test-letter-id",
		Status:    StatusFailed,
		Type:      TaskAnnotateLetter,
		Error:     "model server unavailable",
		Result:    json.RawMessage(`{}`),
		Timestamp: time.Now(),
	}

	callbackData, err := json.Marshal(callback)
	require.NoError(t, err)

	err = processor.ProcessCallback(context.Background(), callbackData)
	assert.NoError(t, err)
	// 失败的任务不应调用处理函数
	assert.False(t, handlerCalled)

	// 错误信息应记录在任务上
	task, err := queue.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "model server unavailable", task.Error)
}

// TestProcessCallback_TaskNotFound 测试不存在任务的回调
func TestProcessCallback_TaskNotFound(t *testing.T) {
	queue := newFakeQueue()
	processor := NewCallbackProcessor(queue, logrus.New())

	callback := &TaskCallback{
		TaskID:    "no-such-task",
		LetterID:  "test-letter-id",
		Status:    StatusCompleted,
		Type:      TaskAnnotateLetter,
		Timestamp: time.Now(),
	}

	callbackData, err := json.Marshal(callback)
	require.NoError(t, err)

	err = processor.ProcessCallback(context.Background(), callbackData)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get task")
}

// TestHandleCallback 测试HTTP回调处理
func TestHandleCallback(t *testing.T) {
	queue := newFakeQueue()
	processor := NewCallbackProcessor(queue, logrus.New())

	taskID := "http-task-id"
	letterID := "http-letter-id"
	queue.addTask(&Task{
		ID:       taskID,
		Type:     TaskLetterParse,
		LetterID: letterID,
		Status:   StatusPending,
	})

	handlerCalled := false
	processor.RegisterHandler(TaskLetterParse, func(ctx context.Context, task *Task, result json.RawMessage) error {
		handlerCalled = true
		return nil
	})

	req := &CallbackRequest{
		TaskID:    taskID,
		LetterID:  letterID,
		Status:    StatusCompleted,
		Type:      TaskLetterParse,
		Result:    json.RawMessage(`{"transcription":"some text","chars":9}`),
		Timestamp: time.Now().Format(time.RFC3339),
	}

	resp, err := processor.HandleCallback(context.Background(), req)
	assert.NoError(t, err)
	assert.True(t, handlerCalled)
	assert.True(t, resp.Success)
	assert.Equal(t, taskID, resp.TaskID)
}

// TestHandleCallback_InvalidTimestamp 测试处理带有无效时间戳格式的回调
func TestHandleCallback_InvalidTimestamp(t *testing.T) {
	queue := newFakeQueue()
	processor := NewCallbackProcessor(queue, logrus.New())

	taskID := "ts-task-id"
	queue.addTask(&Task{
		ID:       taskID,
		Type:     TaskLetterParse,
		LetterID: "ts-letter-id",
		Status:   StatusPending,
	})

	req := &CallbackRequest{
		TaskID:    taskID,
		LetterID:  "ts-letter-id",
		Status:    StatusCompleted,
		Type:      TaskLetterParse,
		Result:    json.RawMessage(`{}`),
		Timestamp: "invalid-timestamp",
	}

	resp, err := processor.HandleCallback(context.Background(), req)
	assert.NoError(t, err)
	assert.True(t, resp.Success)
}

// TestRegisterDefaultHandlers 测试注册默认处理函数
func TestRegisterDefaultHandlers(t *testing.T) {
	queue := newFakeQueue()
	processor := NewCallbackProcessor(queue, logrus.New())

	processor.RegisterDefaultHandlers(queue)

	assert.NotNil(t, processor.handlers[TaskLetterParse])
	assert.NotNil(t, processor.handlers[TaskAnnotateLetter])
	assert.NotNil(t, processor.handlers[TaskProcessComplete])

	types := processor.GetRegisteredHandlerTypes()
	assert.True(t, types[TaskLetterParse])
	assert.True(t, types[TaskAnnotateLetter])
	assert.True(t, types[TaskProcessComplete])
}

// TestDefaultHandlers 测试默认处理函数的实现
func TestDefaultHandlers(t *testing.T) {
	ctx := context.Background()
	logger := logrus.New()

	// 信件解析完成后应创建标注任务
	t.Run("DefaultLetterParseHandler", func(t *testing.T) {
		queue := newFakeQueue()
		handler := DefaultLetterParseHandler(ctx, queue, logger)
		task := &Task{
			ID:       "parse-task-id",
			LetterID: "parse-letter-id",
			Type:     TaskLetterParse,
		}

		result := json.RawMessage(`{"transcription":"William Christy wrote a letter.","title":"A letter","chars":31}`)
		err := handler(ctx, task, result)
		assert.NoError(t, err)

		require.Len(t, queue.enqueued, 1)
		assert.Equal(t, TaskAnnotateLetter, queue.enqueued[0])
	})

	// 转录文本为空时不应创建后续任务
	t.Run("DefaultLetterParseHandlerEmptyTranscription", func(t *testing.T) {
		queue := newFakeQueue()
		handler := DefaultLetterParseHandler(ctx, queue, logger)
		task := &Task{
			ID:       "parse-task-id",
			LetterID: "parse-letter-id",
			Type:     TaskLetterParse,
		}

		result := json.RawMessage(`{"transcription":"","title":"Empty letter"}`)
		err := handler(ctx, task, result)
		assert.NoError(t, err)
		assert.Empty(t, queue.enqueued)
	})

	// 标注完成回调只记录结果
	t.Run("DefaultAnnotateHandler", func(t *testing.T) {
		queue := newFakeQueue()
		handler := DefaultAnnotateHandler(ctx, queue, logger)
		task := &Task{
			ID:       "annotate-task-id",
			LetterID: "annotate-letter-id",
			Type:     TaskAnnotateLetter,
		}

		result := json.RawMessage(`{"letter_id":"annotate-letter-id","run_id":"run-1","model":"en_core_web_sm","entity_count":2}`)
		err := handler(ctx, task, result)
		assert.NoError(t, err)
		assert.Empty(t, queue.enqueued)
	})

	// 完整流程回调
	t.Run("DefaultProcessCompleteHandler", func(t *testing.T) {
		queue := newFakeQueue()
		handler := DefaultProcessCompleteHandler(ctx, queue, logger)
		task := &Task{
			ID:       "complete-task-id",
			LetterID: "complete-letter-id",
			Type:     TaskProcessComplete,
		}

		result := json.RawMessage(`{"letter_id":"complete-letter-id","run_id":"run-1","parse_status":"completed","annotate_status":"completed","entity_count":4}`)
		err := handler(ctx, task, result)
		assert.NoError(t, err)
	})

	// 无效结果数据应返回错误
	t.Run("InvalidResultData", func(t *testing.T) {
		queue := newFakeQueue()
		handler := DefaultLetterParseHandler(ctx, queue, logger)
		task := &Task{ID: "bad-task-id", Type: TaskLetterParse}

		err := handler(ctx, task, json.RawMessage("not json"))
		assert.Error(t, err)
	})
}
