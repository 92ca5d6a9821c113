package netaddr

import (
	"net"

	"github.com/pkg/errors"
)

// IPv4Addr holds an address in host order, so that it can be written to a
// header with binary.BigEndian directly.
type IPv4Addr uint32

func IPv4(a, b, c, d byte) IPv4Addr {
	return IPv4Addr(uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d))
}

func ParseIPv4Addr(s string) (IPv4Addr, error) {
	var v4 IPv4Addr
	err := v4.Set(s)
	return v4, err
}

func (v4 IPv4Addr) ToIP() net.IP {
	return net.IPv4(byte(v4>>24), byte(v4>>16), byte(v4>>8), byte(v4))
}

func (v4 IPv4Addr) String() string {
	return v4.ToIP().String()
}

// Type and Set make IPv4Addr a pflag.Value.
func (IPv4Addr) Type() string { return "ipv4" }

func (v4 *IPv4Addr) Set(s string) error {
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return errors.Errorf("invalid ipv4: %q", s)
	}
	*v4 = IPv4(ip[0], ip[1], ip[2], ip[3])
	return nil
}

// SameSubnet reports whether v4 and other are in the network of mask.
func (v4 IPv4Addr) SameSubnet(other, mask IPv4Addr) bool {
	return v4&mask == other&mask
}
