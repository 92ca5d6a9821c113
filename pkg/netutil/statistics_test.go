package netutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatisticsRate(t *testing.T) {
	now := time.Now()
	prev := Statistics{Timestamp: now}

	var curr Statistics
	curr.AddRx(100, false)
	curr.AddRx(60, true)
	curr.AddTx(1000)
	curr.AddTx(1000)
	curr.Timestamp = now.Add(2 * time.Second)

	assert.Equal(t, uint64(2), curr.RxFrames)
	assert.Equal(t, uint64(1), curr.RxIgnored)
	assert.Equal(t, uint64(2000), curr.TxBytes)

	rate := curr.Rate(prev)
	assert.Equal(t, 1.0, rate.RxFPS)
	assert.Equal(t, 1.0, rate.TxFPS)
	assert.Equal(t, 640.0, rate.RxBPS)
	assert.Equal(t, 8000.0, rate.TxBPS)

	assert.Equal(t, StatisticsRate{}, prev.Rate(curr))
}
