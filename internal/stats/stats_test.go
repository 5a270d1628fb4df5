package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollectorAccumulates(t *testing.T) {
	c := NewCollector(time.Hour)
	c.Record(1, 100)
	c.Record(2, 200)

	snap := c.Snapshot()
	assert.Equal(t, uint64(300), snap.TotalBytes)
	assert.Equal(t, uint64(2), snap.LastSeq)
}
