package messenger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/bert-e/internal/githost"
)

type fakeHost struct {
	comments []githost.Comment
	nextID   int64
	created  int
}

func (f *fakeHost) GetPullRequest(context.Context, string, string, int) (*githost.PullRequest, error) {
	return nil, nil
}
func (f *fakeHost) ListOpenPullRequests(context.Context, string, string) ([]*githost.PullRequest, error) {
	return nil, nil
}
func (f *fakeHost) CreatePullRequest(context.Context, string, string, string, string, string) (*githost.PullRequest, error) {
	return nil, nil
}
func (f *fakeHost) DeclinePullRequest(context.Context, string, string, int) error { return nil }

func (f *fakeHost) ListComments(context.Context, string, string, int) ([]githost.Comment, error) {
	return f.comments, nil
}

func (f *fakeHost) CreateComment(_ context.Context, _, _ string, _ int, body string) (*githost.Comment, error) {
	f.nextID++
	f.created++
	c := githost.Comment{ID: f.nextID, Author: "bert-e-bot", Body: body}
	f.comments = append(f.comments, c)
	return &c, nil
}

func (f *fakeHost) UpdateComment(context.Context, string, string, int64, string) error { return nil }
func (f *fakeHost) DeleteComment(context.Context, string, string, int64) error         { return nil }
func (f *fakeHost) ListReviews(context.Context, string, string, int) ([]githost.Review, error) {
	return nil, nil
}
func (f *fakeHost) ReadyForMerge(context.Context, string, string, int) (*githost.ReadyForMergeStatus, error) {
	return nil, nil
}
func (f *fakeHost) AddLabel(context.Context, string, string, int, string) error    { return nil }
func (f *fakeHost) RemoveLabel(context.Context, string, string, int, string) error { return nil }
func (f *fakeHost) ListAdmins(context.Context, string, string) ([]string, error)   { return nil, nil }

func TestPostCreatesCommentOnce(t *testing.T) {
	host := &fakeHost{}
	m := New(host, "bert-e-bot", "1.0.0")

	spec := MessageSpec{Code: 100, Params: map[string]any{"author": "alice"}}

	require.NoError(t, m.Post(context.Background(), "acme", "widget", 1, spec, nil))
	assert.Equal(t, 1, host.created)

	require.NoError(t, m.Post(context.Background(), "acme", "widget", 1, spec, nil))
	assert.Equal(t, 1, host.created, "idempotent: second identical Post must not create a new comment")
}

func TestPostWithDifferentParamsCreatesDistinctComment(t *testing.T) {
	host := &fakeHost{}
	m := New(host, "bert-e-bot", "1.0.0")

	require.NoError(t, m.Post(context.Background(), "acme", "widget", 1, MessageSpec{Code: 100, Params: map[string]any{"author": "alice"}}, nil))
	require.NoError(t, m.Post(context.Background(), "acme", "widget", 1, MessageSpec{Code: 100, Params: map[string]any{"author": "bob"}}, nil))

	assert.Equal(t, 2, host.created)
}

func TestRenderIncludesFooterAndOptions(t *testing.T) {
	host := &fakeHost{}
	m := New(host, "bert-e-bot", "2.3.4")

	body, err := m.render(MessageSpec{Code: 118, Params: map[string]any{"tip": "development/1.0"}}, []string{"no_octopus"}, "<!-- marker -->")
	require.NoError(t, err)

	assert.Contains(t, body, "bert-e 2.3.4")
	assert.Contains(t, body, "no_octopus")
	assert.Contains(t, body, "<!-- marker -->")
}
