//go:build linux

package usbfs

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// asm-generic ioctl encoding, shared by x86, arm and arm64.
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<iocDirShift | 'U'<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

// struct usbdevfs_ctrltransfer
type ctrlTransfer struct {
	requestType uint8
	request     uint8
	value       uint16
	index       uint16
	length      uint16
	timeout     uint32 // ms
	data        unsafe.Pointer
}

// struct usbdevfs_bulktransfer
type bulkTransfer struct {
	ep      uint32
	length  uint32
	timeout uint32 // ms, 0 waits forever
	data    unsafe.Pointer
}

// struct usbdevfs_getdriver
type getDriver struct {
	iface  uint32
	driver [256]byte
}

// struct usbdevfs_ioctl
type ioctlArg struct {
	iface int32
	code  int32
	data  unsafe.Pointer
}

var (
	ioctlControl          = ioc(iocRead|iocWrite, 0, unsafe.Sizeof(ctrlTransfer{}))
	ioctlBulk             = ioc(iocRead|iocWrite, 2, unsafe.Sizeof(bulkTransfer{}))
	ioctlGetDriver        = ioc(iocWrite, 8, unsafe.Sizeof(getDriver{}))
	ioctlClaimInterface   = ioc(iocRead, 15, unsafe.Sizeof(uint32(0)))
	ioctlReleaseInterface = ioc(iocRead, 16, unsafe.Sizeof(uint32(0)))
	ioctlIoctl            = ioc(iocRead|iocWrite, 18, unsafe.Sizeof(ioctlArg{}))
	ioctlDisconnect       = ioc(iocNone, 22, 0)
)

func ioctl(fd int, req uintptr, arg unsafe.Pointer) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return 0, errno
	}
	return int(r), nil
}

func controlTransfer(fd int, requestType, request uint8, value, index uint16, data []byte, timeoutMs uint32) (int, error) {
	ctrl := ctrlTransfer{
		requestType: requestType,
		request:     request,
		value:       value,
		index:       index,
		length:      uint16(len(data)),
		timeout:     timeoutMs,
	}
	if len(data) > 0 {
		ctrl.data = unsafe.Pointer(&data[0])
	}
	n, err := ioctl(fd, ioctlControl, unsafe.Pointer(&ctrl))
	runtime.KeepAlive(data)
	return n, err
}

func bulkTransferIO(fd int, ep uint8, data []byte, timeoutMs uint32) (int, error) {
	bulk := bulkTransfer{ep: uint32(ep), length: uint32(len(data)), timeout: timeoutMs}
	if len(data) > 0 {
		bulk.data = unsafe.Pointer(&data[0])
	}
	n, err := ioctl(fd, ioctlBulk, unsafe.Pointer(&bulk))
	runtime.KeepAlive(data)
	return n, err
}

func claimInterface(fd int, iface uint8) error {
	num := uint32(iface)
	_, err := ioctl(fd, ioctlClaimInterface, unsafe.Pointer(&num))
	return err
}

func releaseInterface(fd int, iface uint8) error {
	num := uint32(iface)
	_, err := ioctl(fd, ioctlReleaseInterface, unsafe.Pointer(&num))
	return err
}

// boundDriver returns the kernel driver bound to iface, or "" when none is.
func boundDriver(fd int, iface uint8) (string, error) {
	arg := getDriver{iface: uint32(iface)}
	_, err := ioctl(fd, ioctlGetDriver, unsafe.Pointer(&arg))
	if err == unix.ENODATA {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return unix.ByteSliceToString(arg.driver[:]), nil
}

func disconnectDriver(fd int, iface uint8) error {
	arg := ioctlArg{iface: int32(iface), code: int32(ioctlDisconnect)}
	_, err := ioctl(fd, ioctlIoctl, unsafe.Pointer(&arg))
	if err == unix.ENODATA {
		return nil
	}
	return err
}
