package status

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/zxhio/usbboot/internal/boot"
	"github.com/zxhio/usbboot/pkg/netutil"
)

func TestDisplay(t *testing.T) {
	color.NoColor = true
	showRate = true
	defer func() { showRate = false }()

	now := time.Now()
	info := boot.TransactionInfo{
		ID:       "0b6e1c2a-9d7f-4c1e-8f0a-2f4f7f3c9a11",
		PortID:   "1-1.2",
		DeviceID: "1:7",
		Stage:    "spl",
		File:     "u-boot.img",
		Step:     562,
		Terminal: 1124,
		Progress: 50,
		Serving:  true,
		Stats: netutil.Statistics{
			RxFrames:  563,
			RxBytes:   34000,
			TxFrames:  562,
			TxBytes:   2048 * 1024,
			Timestamp: now,
		},
		Created: now.Add(-90 * time.Second),
	}
	prev := map[string]netutil.Statistics{
		info.ID: {TxBytes: 1024 * 1024, Timestamp: now.Add(-time.Second)},
	}

	var buf bytes.Buffer
	display(&buf, []boot.TransactionInfo{info}, prev, now)

	out := buf.String()
	assert.Contains(t, out, "1-1.2")
	assert.Contains(t, out, "0b6e1c2a")
	assert.NotContains(t, out, "9d7f")
	assert.Contains(t, out, "562/1124")
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "2.0 MiB")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "8.4 Mbit/s")
	assert.Equal(t, info.Stats, prev[info.ID])
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "01234567", shortID("0123456789"))
}
