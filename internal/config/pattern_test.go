package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchPatternExact(t *testing.T) {
	assert.True(t, MatchPattern("orders", "orders"))
	assert.False(t, MatchPattern("orders", "order"))
}

func TestMatchPatternPrefix(t *testing.T) {
	assert.True(t, MatchPattern("db*", "db1"))
	assert.True(t, MatchPattern("db*", "db"))
	assert.False(t, MatchPattern("db*", "xdb1"))
}

func TestMatchPatternSuffix(t *testing.T) {
	assert.True(t, MatchPattern("*_log", "order_log"))
	assert.False(t, MatchPattern("*_log", "order_logs"))
}

func TestMatchPatternInterior(t *testing.T) {
	assert.True(t, MatchPattern("foo*bar", "foobazbar"))
	assert.True(t, MatchPattern("foo*bar", "foobar"))
	assert.False(t, MatchPattern("foo*bar", "foobaz"))
}

func TestInstanceMatchesRespectsBlacklist(t *testing.T) {
	inst := Instance{Schemas: "db*", Tables: "*", BlackList: []string{"secret*"}}
	assert.True(t, inst.Matches("db1", "orders"))
	assert.False(t, inst.Matches("db1", "secret_keys"))
	assert.False(t, inst.Matches("other", "orders"))
}
