package api

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zxhio/usbboot/internal/boot"
	"github.com/zxhio/usbboot/internal/errcode"
	"github.com/zxhio/usbboot/internal/usb"
	"github.com/zxhio/usbboot/pkg/utils"
)

const queryTimeout = 3 * time.Second

// TransactionQuerier is implemented by boot.Scanner.
type TransactionQuerier interface {
	Transactions(ctx context.Context) ([]boot.TransactionInfo, error)
}

// DeviceQuerier is implemented by usb.Transport.
type DeviceQuerier interface {
	Devices() ([]usb.DeviceInfo, error)
}

type QueryTransactionsResp QueryPageResp[boot.TransactionInfo]

type DeviceStatus struct {
	usb.DeviceInfo
	ID          string `json:"id"`
	Stage       string `json:"stage"`
	BootCapable bool   `json:"boot_capable"`
}

func NewDeviceStatus(info usb.DeviceInfo) DeviceStatus {
	return DeviceStatus{
		DeviceInfo:  info,
		ID:          info.DeviceID(),
		Stage:       boot.Identify(info).String(),
		BootCapable: boot.BootCapable(info),
	}
}

type QueryDevicesResp struct {
	Devices []DeviceStatus `json:"devices"`
}

type BootHandler struct {
	scanner   TransactionQuerier
	transport DeviceQuerier
}

func (h *BootHandler) transactions(c *gin.Context) ([]boot.TransactionInfo, error) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()
	infos, err := h.scanner.Transactions(ctx)
	if err != nil {
		return nil, errcode.NewError(errcode.CodeUnavailable, err)
	}
	return infos, nil
}

func (h *BootHandler) QueryTransactions(c *gin.Context) {
	p, err := NewPageFromRequest(c.Request)
	if err != nil {
		Error(c, err)
		return
	}
	infos, err := h.transactions(c)
	if err != nil {
		Error(c, err)
		return
	}

	var filter func(boot.TransactionInfo) bool
	if stage := c.Query("stage"); stage != "" {
		filter = func(info boot.TransactionInfo) bool { return info.Stage == stage }
	}

	var resp QueryTransactionsResp
	resp.Data, resp.Total = utils.LimitPageSliceFunc(infos, p.Page, p.Limit, filter)
	resp.Page, resp.Limit = p.Page, p.Limit
	Success(c, resp)
}

func (h *BootHandler) QueryTransaction(c *gin.Context) {
	infos, err := h.transactions(c)
	if err != nil {
		Error(c, err)
		return
	}
	port := c.Param("port")
	for _, info := range infos {
		if info.PortID == port {
			Success(c, info)
			return
		}
	}
	Error(c, errcode.New(errcode.CodeNotExist, "no transaction on port %s", port))
}

func (h *BootHandler) QueryDevices(c *gin.Context) {
	capableOnly, _ := strconv.ParseBool(c.Query("capable"))

	devices, err := h.transport.Devices()
	if err != nil {
		Error(c, errcode.NewError(errcode.CodeInternal, err))
		return
	}

	resp := QueryDevicesResp{Devices: make([]DeviceStatus, 0, len(devices))}
	for _, info := range devices {
		if info.Partial {
			continue
		}
		status := NewDeviceStatus(info)
		if capableOnly && !status.BootCapable {
			continue
		}
		resp.Devices = append(resp.Devices, status)
	}
	Success(c, resp)
}
