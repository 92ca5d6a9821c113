package boot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zxhio/usbboot/internal/usb"
)

func TestTransactionProgress(t *testing.T) {
	tr := newTransaction("1-1", DefaultTerminalStep)
	assert.Equal(t, 0, tr.Progress())

	last := 0
	for i := 0; i < DefaultTerminalStep+10; i++ {
		tr.advance()
		p := tr.Progress()
		assert.GreaterOrEqual(t, p, last)
		if tr.Step < tr.Terminal {
			assert.Less(t, p, 100)
		}
		last = p
	}
	assert.Equal(t, DefaultTerminalStep, tr.Step)
	assert.Equal(t, 100, tr.Progress())
	assert.True(t, tr.Complete())

	tr = newTransaction("1-2", 4)
	tr.advance()
	assert.Equal(t, 25, tr.Progress())
	tr.finish()
	assert.Equal(t, 4, tr.Step)
	assert.Equal(t, 100, tr.Progress())

	assert.Equal(t, 0, newTransaction("1-3", 0).Progress())
}

func TestTransactionInfo(t *testing.T) {
	tr := newTransaction("1-1.2", 10)
	tr.DeviceID = "1:7"
	tr.Stage = StageSPL
	tr.File = DefaultImageFile
	tr.Stats.AddTx(386)
	tr.advance()

	info := tr.Info()
	assert.Equal(t, tr.ID.String(), info.ID)
	assert.Equal(t, "1-1.2", info.PortID)
	assert.Equal(t, "spl", info.Stage)
	assert.Equal(t, 10, info.Progress)
	assert.False(t, info.Serving)
	assert.Equal(t, uint64(386), info.Stats.TxBytes)
	assert.Equal(t, tr.Updated, info.Stats.Timestamp)
}

func TestRegistry(t *testing.T) {
	r := newRegistry()

	tr, created := r.getOrCreate("1-1", 10)
	require.True(t, created)
	again, created := r.getOrCreate("1-1", 10)
	assert.False(t, created)
	assert.Same(t, tr, again)

	stopped := false
	tr.cancel = func() { stopped = true }
	assert.True(t, tr.Serving())

	info := usb.DeviceInfo{Bus: 1, Address: 5, PortPath: "1-1"}
	assert.True(t, r.markOpen(info))
	assert.False(t, r.markOpen(info))
	assert.True(t, r.isOpen("1:5"))
	assert.True(t, r.portOpen("1-1"))
	assert.False(t, r.portOpen("1-2"))

	r.getOrCreate("1-0", 10)
	infos := r.snapshot()
	require.Len(t, infos, 2)
	assert.Equal(t, "1-0", infos[0].PortID)
	assert.Equal(t, "1-1", infos[1].PortID)

	removed, ok := r.remove("1-1")
	require.True(t, ok)
	assert.Same(t, tr, removed)
	assert.True(t, stopped)
	assert.False(t, tr.Serving())
	_, ok = r.remove("1-1")
	assert.False(t, ok)

	closed, ok := r.markClosed("1:5")
	assert.True(t, ok)
	assert.Equal(t, info, closed)
	_, ok = r.markClosed("1:5")
	assert.False(t, ok)

	r.markOpen(info)
	r.clear()
	assert.Empty(t, r.transactions)
	assert.Empty(t, r.open)
}
