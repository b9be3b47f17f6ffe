package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmitRejectsUnknownRepository(t *testing.T) {
	a, err := NewRepositoryAdmitter([]string{"acme/widget"}, nil)
	require.NoError(t, err)

	assert.False(t, a.Admit(&Decoded{Repository: "other/repo"}))
}

func TestAdmitAllowsKnownRepositoryWithoutFilter(t *testing.T) {
	a, err := NewRepositoryAdmitter([]string{"acme/widget"}, nil)
	require.NoError(t, err)

	assert.True(t, a.Admit(&Decoded{Repository: "acme/widget", Raw: []byte(`{}`)}))
}

func TestAdmitEvaluatesFilterQuery(t *testing.T) {
	a, err := NewRepositoryAdmitter(
		[]string{"acme/widget"},
		map[string]string{"acme/widget": `.action == "opened"`},
	)
	require.NoError(t, err)

	assert.True(t, a.Admit(&Decoded{Repository: "acme/widget", Raw: []byte(`{"action":"opened"}`)}))
	assert.False(t, a.Admit(&Decoded{Repository: "acme/widget", Raw: []byte(`{"action":"closed"}`)}))
}
