package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/simplesurance/bert-e/internal/dispatcher"
	"github.com/simplesurance/bert-e/internal/queue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

func newTestService(t *testing.T, handler dispatcher.Handler) (*Service, *dispatcher.Dispatcher) {
	t.Helper()

	if handler == nil {
		handler = func(context.Context, *dispatcher.Job) error { return nil }
	}

	d := dispatcher.New(func(string) dispatcher.Locker { return noopLocker{} }, handler)
	t.Cleanup(d.Stop)

	s := New(d, func(string) *queue.Manager { return nil }, []string{"acme/widget"})
	return s, d
}

func TestHandleListJobsReturnsHistory(t *testing.T) {
	s, d := newTestService(t, nil)

	job := dispatcher.NewJob("acme/widget", dispatcher.KindPullRequest, 7, nil, "alice", time.Now())
	d.Enqueue(job)

	require.Eventually(t, func() bool {
		return len(d.History().Snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	s.handleListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var views []jobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, 7, views[0].PRNumber)
	assert.Equal(t, "acme/widget", views[0].Repository)
}

func TestHandleGetJobNotFound(t *testing.T) {
	s, _ := newTestService(t, nil)

	rec := httptest.NewRecorder()
	s.handleGetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/does-not-exist", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlePostPullRequestEnqueuesJob(t *testing.T) {
	s, d := newTestService(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pull-requests/42?repository=acme/widget", nil)
	s.handlePostPullRequest(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var view jobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 42, view.PRNumber)
	assert.Equal(t, "pull_request", view.Kind)

	require.Eventually(t, func() bool {
		return len(d.History().Snapshot()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHandlePostPullRequestRequiresRepository(t *testing.T) {
	s, _ := newTestService(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pull-requests/42", nil)
	s.handlePostPullRequest(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQueueActionEnqueuesForceMergeJob(t *testing.T) {
	s, d := newTestService(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/queues/acme/widget/force-merge", nil)
	s.handleQueueAction(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var view jobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "force_merge", view.Kind)

	require.Eventually(t, func() bool {
		return len(d.History().Snapshot()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHandleQueueActionRejectsUnknownAction(t *testing.T) {
	s, _ := newTestService(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/queues/acme/widget/frobnicate", nil)
	s.handleQueueAction(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleBranchActionEnqueuesCreateAndDeleteJobs(t *testing.T) {
	s, d := newTestService(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/branches/development/2.0?repository=acme/widget", nil)
	s.handleBranchAction(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var view jobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "create_branch", view.Kind)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/branches/development/2.0?repository=acme/widget", nil)
	s.handleBranchAction(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "delete_branch", view.Kind)

	require.Eventually(t, func() bool {
		return len(d.History().Snapshot()) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHandleBranchActionRequiresRepository(t *testing.T) {
	s, _ := newTestService(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/branches/development/2.0", nil)
	s.handleBranchAction(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStatusPageRendersWithoutQueues(t *testing.T) {
	s, _ := newTestService(t, nil)

	rec := httptest.NewRecorder()
	s.handleStatusPage(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "acme/widget")
}
