package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottleSuppressesWithinCooldown(t *testing.T) {
	th := New(10 * time.Second)
	base := time.Unix(1000, 0)

	assert.True(t, th.Allow("db1.t1", base))
	assert.False(t, th.Allow("db1.t1", base.Add(1*time.Second)))
	assert.True(t, th.Allow("db1.t1", base.Add(11*time.Second)))
}

func TestThrottleKeysAreIndependent(t *testing.T) {
	th := New(10 * time.Second)
	base := time.Unix(1000, 0)

	assert.True(t, th.Allow("db1.t1", base))
	assert.True(t, th.Allow("db1.t2", base))
}
