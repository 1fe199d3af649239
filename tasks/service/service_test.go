package service_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskchat/errors"
	"taskchat/logger"
	"taskchat/tasks"
	"taskchat/tasks/service"
	"taskchat/tasks/store"
)

// fakeStore simulates store failures for testing error conditions
type fakeStore struct {
	store.TaskStore
	failPut    error
	failList   bool
	failUpdate bool
	failDelete bool
}

func (s *fakeStore) Put(ctx context.Context, task *tasks.Task) error {
	if s.failPut != nil {
		return s.failPut
	}
	return s.TaskStore.Put(ctx, task)
}

func (s *fakeStore) List(ctx context.Context, filter tasks.Filter) ([]*tasks.Task, error) {
	if s.failList {
		return nil, stderrors.New("store list failed")
	}
	return s.TaskStore.List(ctx, filter)
}

func (s *fakeStore) Update(ctx context.Context, id string, patch tasks.Patch) (*tasks.Task, error) {
	if s.failUpdate {
		return nil, stderrors.New("store update failed")
	}
	return s.TaskStore.Update(ctx, id, patch)
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	if s.failDelete {
		return stderrors.New("store delete failed")
	}
	return s.TaskStore.Delete(ctx, id)
}

func newService(t *testing.T) (service.Service, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return service.New(store.NewMemoryTaskStore(), logger.New("DEBUG", &buf)), &buf
}

func TestService_CreateTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	testCases := []struct {
		name        string
		title       string
		description *string
		wantTitle   string
		wantDesc    *string
		wantErrType errors.TaskErrorType
	}{
		{name: "title only", title: "Buy milk", wantTitle: "Buy milk"},
		{name: "title is trimmed", title: "  Buy milk \n", wantTitle: "Buy milk"},
		{name: "with description", title: "Write report", description: tasks.Ptr("draft v1"), wantTitle: "Write report", wantDesc: tasks.Ptr("draft v1")},
		{name: "empty description stored as absent", title: "Call mom", description: tasks.Ptr(""), wantTitle: "Call mom"},
		{name: "empty title", title: "", wantErrType: errors.ValidationError},
		{name: "whitespace title", title: " \t ", wantErrType: errors.ValidationError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newService(t)
			task, err := svc.CreateTask(ctx, "alice", tc.title, tc.description)

			if tc.wantErrType != "" {
				require.Error(t, err)
				assert.Equal(t, tc.wantErrType, errors.TypeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantTitle, task.Title)
			assert.Equal(t, tc.wantDesc, task.Description)
			assert.Equal(t, "alice", task.Owner)
			assert.False(t, task.Completed)
		})
	}
}

func TestService_CreateTask_IDsPairwiseDistinct(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)

	var (
		mu  sync.Mutex
		ids = make(map[string]bool)
		wg  sync.WaitGroup
	)
	for i := range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := svc.CreateTask(ctx, "alice", fmt.Sprintf("task %d", i), nil)
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ids[task.ID] {
				t.Errorf("duplicate id %s", task.ID)
			}
			ids[task.ID] = true
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 200)
}

func TestService_CreateTask_StoreFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	testCases := []struct {
		name    string
		putErr  error
		wantMsg string
	}{
		{name: "duplicate id is internal", putErr: fmt.Errorf("x: %w", store.ErrDuplicateID), wantMsg: "failed to allocate task id"},
		{name: "backend failure", putErr: stderrors.New("connection reset"), wantMsg: "failed to save task"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			svc := service.New(&fakeStore{TaskStore: store.NewMemoryTaskStore(), failPut: tc.putErr}, logger.New("DEBUG", &buf))

			_, err := svc.CreateTask(ctx, "alice", "Buy milk", nil)
			require.Error(t, err)
			assert.Equal(t, errors.InternalError, errors.TypeOf(err))
			assert.Contains(t, err.Error(), tc.wantMsg)
			assert.Contains(t, buf.String(), `"level":"ERROR"`)
		})
	}
}

func TestService_RoundTripCompletion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)

	task, err := svc.CreateTask(ctx, "alice", "Buy milk", nil)
	require.NoError(t, err)

	pending, err := svc.ListTasks(ctx, "", tasks.FilterPending)
	require.NoError(t, err)
	assert.Contains(t, ids(pending), task.ID)

	_, err = svc.SetCompletion(ctx, task.ID, true)
	require.NoError(t, err)

	completed, err := svc.ListTasks(ctx, "", tasks.FilterCompleted)
	require.NoError(t, err)
	assert.Contains(t, ids(completed), task.ID)

	pending, err = svc.ListTasks(ctx, "", tasks.FilterPending)
	require.NoError(t, err)
	assert.NotContains(t, ids(pending), task.ID)
}

func TestService_SetCompletion_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)

	task, err := svc.CreateTask(ctx, "alice", "Buy milk", nil)
	require.NoError(t, err)

	first, err := svc.SetCompletion(ctx, task.ID, true)
	require.NoError(t, err)
	assert.True(t, first.Completed)

	second, err := svc.SetCompletion(ctx, task.ID, true)
	require.NoError(t, err)
	assert.True(t, second.Completed)
	assert.Equal(t, first.Title, second.Title)

	reopened, err := svc.SetCompletion(ctx, tasks.ShortID(task.ID), false)
	require.NoError(t, err)
	assert.False(t, reopened.Completed)
}

func TestService_SetCompletion_ConcurrentCallsAgree(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)

	task, err := svc.CreateTask(ctx, "alice", "Buy milk", tasks.Ptr("note"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.SetCompletion(ctx, task.ID, true); err != nil {
				t.Errorf("set completion: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.Equal(t, "note", got.DescriptionText())
}

func TestService_UpdateTask_FieldPresence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)

	task, err := svc.CreateTask(ctx, "alice", "Write report", tasks.Ptr("draft v1"))
	require.NoError(t, err)

	// description omitted: unchanged
	renamed, err := svc.UpdateTask(ctx, task.ID, tasks.Fields{Title: tasks.Ptr("Write final report")})
	require.NoError(t, err)
	assert.Equal(t, "Write final report", renamed.Title)
	assert.Equal(t, "draft v1", renamed.DescriptionText())

	// description explicitly empty: cleared
	cleared, err := svc.UpdateTask(ctx, task.ID, tasks.Fields{Description: tasks.Ptr("")})
	require.NoError(t, err)
	assert.Equal(t, "", cleared.DescriptionText())
	assert.Equal(t, "Write final report", cleared.Title)

	redescribed, err := svc.UpdateTask(ctx, task.ID, tasks.Fields{Description: tasks.Ptr("draft v2")})
	require.NoError(t, err)
	assert.Equal(t, "draft v2", redescribed.DescriptionText())
	assert.True(t, redescribed.UpdatedAt.After(task.UpdatedAt))
}

func TestService_UpdateTask_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)

	task, err := svc.CreateTask(ctx, "alice", "Write report", nil)
	require.NoError(t, err)

	_, err = svc.UpdateTask(ctx, task.ID, tasks.Fields{Title: tasks.Ptr("   ")})
	assert.Equal(t, errors.ValidationError, errors.TypeOf(err))

	_, err = svc.UpdateTask(ctx, "nope", tasks.Fields{Title: tasks.Ptr("x")})
	assert.Equal(t, errors.NotFoundError, errors.TypeOf(err))

	got, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write report", got.Title)
}

func TestService_DeleteScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)

	task, err := svc.CreateTask(ctx, "a", "Write report", tasks.Ptr("draft v1"))
	require.NoError(t, err)
	assert.False(t, task.Completed)

	require.NoError(t, svc.DeleteTask(ctx, task.ID))

	_, err = svc.GetTask(ctx, task.ID)
	assert.Equal(t, errors.NotFoundError, errors.TypeOf(err))

	err = svc.DeleteTask(ctx, task.ID)
	assert.Equal(t, errors.NotFoundError, errors.TypeOf(err))
}

func TestService_AmbiguousPrefix(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := store.NewMemoryTaskStore()
	svc := service.New(s, logger.Discard())

	// ids chosen so that "a" is shared
	for _, id := range []string{"aaaa-1", "aaab-2", "bbbb-3"} {
		task := tasks.NewTask("alice", "t "+id, nil)
		task.ID = id
		require.NoError(t, s.Put(ctx, task))
	}

	err := svc.DeleteTask(ctx, "aaa")
	require.Error(t, err)
	assert.Equal(t, errors.AmbiguousPrefixError, errors.TypeOf(err))
	assert.Equal(t, []string{"aaaa-1", "aaab-2"}, errors.Candidates(err))

	_, err = svc.SetCompletion(ctx, "a", true)
	assert.Equal(t, errors.AmbiguousPrefixError, errors.TypeOf(err))

	// nothing was touched
	all, err := svc.ListTasks(ctx, "", tasks.FilterAll)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, task := range all {
		assert.False(t, task.Completed)
	}

	require.NoError(t, svc.DeleteTask(ctx, "aaab"))
	got, err := svc.GetTask(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "aaaa-1", got.ID)
}

func TestService_ListTasks_OwnerScope(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)

	a1, err := svc.CreateTask(ctx, "alice", "a1", nil)
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, "bob", "b1", nil)
	require.NoError(t, err)
	a2, err := svc.CreateTask(ctx, "alice", "a2", nil)
	require.NoError(t, err)

	alice, err := svc.ListTasks(ctx, "alice", tasks.FilterAll)
	require.NoError(t, err)
	assert.Equal(t, []string{a1.ID, a2.ID}, ids(alice))

	everyone, err := svc.ListTasks(ctx, "", tasks.FilterAll)
	require.NoError(t, err)
	assert.Len(t, everyone, 3)
}

func TestService_StoreFailuresAreInternal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backing := store.NewMemoryTaskStore()
	seed := service.New(backing, logger.Discard())
	task, err := seed.CreateTask(ctx, "alice", "Buy milk", nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	svc := service.New(&fakeStore{TaskStore: backing, failList: true, failUpdate: true, failDelete: true}, logger.New("DEBUG", &buf))

	_, err = svc.ListTasks(ctx, "", tasks.FilterAll)
	assert.Equal(t, errors.InternalError, errors.TypeOf(err))

	_, err = svc.SetCompletion(ctx, task.ID, true)
	assert.Equal(t, errors.InternalError, errors.TypeOf(err))

	err = svc.DeleteTask(ctx, task.ID)
	assert.Equal(t, errors.InternalError, errors.TypeOf(err))

	assert.Equal(t, 3, strings.Count(buf.String(), `"level":"ERROR"`))
}

func TestService_LogsLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, buf := newService(t)

	task, err := svc.CreateTask(ctx, "alice", "Buy milk", nil)
	require.NoError(t, err)
	_, err = svc.SetCompletion(ctx, task.ID, true)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"message":"task created"`)
	assert.Contains(t, out, `"message":"task completion set"`)
	assert.Contains(t, out, task.ID)
}

func ids(list []*tasks.Task) []string {
	out := make([]string, len(list))
	for i, task := range list {
		out[i] = task.ID
	}
	return out
}
