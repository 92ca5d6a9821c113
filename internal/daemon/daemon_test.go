package daemon

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zxhio/usbboot/internal/api"
	"github.com/zxhio/usbboot/internal/boot"
	"github.com/zxhio/usbboot/internal/config"
	"github.com/zxhio/usbboot/internal/usb"
	"github.com/zxhio/usbboot/internal/usb/usbtest"
)

func testConfig(t *testing.T) (*config.Config, afero.Fs) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/boot/u-boot-spl.bin", make([]byte, 1300), 0644))

	cfg, err := config.Load("", config.WithFs(fs), config.WithSearchPaths("/etc/usbboot"))
	require.NoError(t, err)
	cfg.Boot.Dir = "/boot"
	cfg.Scan.PollInterval = time.Hour
	cfg.Scan.Hotplug = false
	cfg.API.Pprof = true
	return cfg, fs
}

func TestRun(t *testing.T) {
	t.Setenv("USBBOOT_API_ADDR", "")
	cfg, fs := testConfig(t)

	transport := usbtest.NewTransport()
	transport.Plug(usb.DeviceInfo{Bus: 1, Address: 2, PortPath: "1-2", VendorID: 0x046d, ProductID: 0xc52b}, false)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()

	ready := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg,
			WithTransport(transport),
			WithListener(lis),
			WithFs(fs),
			WithEventHandler(func(ev boot.Event) {
				if ev.Kind == boot.EventReady {
					close(ready)
				}
			}))
	}()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("scanner not ready")
	}

	client := api.NewClient(addr)
	devices, err := client.QueryDevices(false)
	require.NoError(t, err)
	require.Len(t, devices.Devices, 1)
	assert.Equal(t, "1:2", devices.Devices[0].ID)
	assert.False(t, devices.Devices[0].BootCapable)

	infos, err := client.QueryAllTransactions()
	require.NoError(t, err)
	assert.Empty(t, infos)

	resp, err := http.Get("http://" + addr + api.APIPathMetrics)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "usbboot_active_transactions 0")
	assert.Contains(t, string(body), "go_goroutines")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	_, err = http.Get("http://" + addr + api.APIPathMetrics)
	assert.Error(t, err)
}

func TestRunListenError(t *testing.T) {
	cfg, fs := testConfig(t)
	cfg.API.Addr = "127.0.0.1:-1"

	err := Run(context.Background(), cfg, WithTransport(usbtest.NewTransport()), WithFs(fs))
	assert.Error(t, err)
}

func TestRunWithoutAPI(t *testing.T) {
	cfg, fs := testConfig(t)
	cfg.API.Addr = ""

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, Run(ctx, cfg, WithTransport(usbtest.NewTransport()), WithFs(fs)))
}
