package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUnknownToken(t *testing.T) {
	p := NewParser(DefaultRules)
	out := p.Parse([]Comment{
		{ID: 1, Author: "alice", Body: "@bot frobnicate"},
	}, "bot", map[string]bool{}, "alice")

	assert.Len(t, out.Unknown, 1)
	assert.Equal(t, "frobnicate", out.Unknown[0].Name)
}

func TestParsePrivilegeViolation(t *testing.T) {
	p := NewParser(DefaultRules)
	out := p.Parse([]Comment{
		{ID: 1, Author: "alice", Body: "@bot bypass_build_status"},
	}, "bot", map[string]bool{"carl": true}, "dave")

	assert.Len(t, out.PrivilegeViolations, 1)
	assert.False(t, out.HasOption("bypass_build_status"))
}

func TestParseAuthorshipViolation(t *testing.T) {
	p := NewParser(DefaultRules)
	out := p.Parse([]Comment{
		{ID: 1, Author: "bob", Body: "@bot approve"},
	}, "bot", map[string]bool{}, "alice")

	assert.Len(t, out.AuthorshipViolations, 1)
}

func TestParseStickyOptionFromLatestComment(t *testing.T) {
	p := NewParser(DefaultRules)
	out := p.Parse([]Comment{
		{ID: 1, Author: "alice", Body: "@bot wait", CreatedAt: 1},
		{ID: 2, Author: "admin", Body: "@bot bypass_build_status", CreatedAt: 2},
	}, "bot", map[string]bool{"admin": true}, "alice")

	assert.True(t, out.HasOption("wait"))
	assert.True(t, out.HasOption("bypass_build_status"))
}

func TestParseCommandIsNotSticky(t *testing.T) {
	p := NewParser(DefaultRules)
	out := p.Parse([]Comment{
		{ID: 1, Author: "alice", Body: "@bot reset"},
	}, "bot", map[string]bool{}, "alice")

	assert.False(t, out.HasOption("reset"))
	assert.Len(t, out.Commands, 1)
}

func TestParseIgnoresOtherBotMentions(t *testing.T) {
	p := NewParser(DefaultRules)
	out := p.Parse([]Comment{
		{ID: 1, Author: "alice", Body: "@otherbot wait"},
	}, "bot", map[string]bool{}, "alice")

	assert.Empty(t, out.Options)
	assert.Empty(t, out.Unknown)
}
