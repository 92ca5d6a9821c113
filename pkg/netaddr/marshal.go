package netaddr

// Addresses travel as text in the API, in config files and in flags.

func (addr HwAddr) MarshalText() ([]byte, error)  { return []byte(addr.String()), nil }
func (v4 IPv4Addr) MarshalText() ([]byte, error)  { return []byte(v4.String()), nil }
func (addr *HwAddr) UnmarshalText(b []byte) error { return addr.Set(string(b)) }
func (v4 *IPv4Addr) UnmarshalText(b []byte) error { return v4.Set(string(b)) }
