package humanize

import (
	"fmt"
	"time"
)

const (
	// For decimal (SI) units: KB, MB, GB, etc.
	SIUnitBase = 1000

	// For binary (IEC) units: KiB, MiB, GiB, etc.
	IECUnitBase = 1024
)

var (
	siUnits  = []string{"", "K", "M", "G", "T", "P", "E"}
	iecUnits = []string{"", "Ki", "Mi", "Gi", "Ti", "Pi", "Ei"}
)

type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func Bytes[T Integer](b T) string  { return formatUnit(float64(b), SIUnitBase, siUnits) + "B" }
func IBytes[T Integer](b T) string { return formatUnit(float64(b), IECUnitBase, iecUnits) + "B" }

// BitsRate formats a bits per second rate as measured by netutil.StatisticsRate.
func BitsRate(bps float64) string { return formatUnit(bps, SIUnitBase, siUnits) + "bit/s" }

// Age formats d to whole seconds, or milliseconds below one second.
func Age(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Second {
		return d.Truncate(time.Millisecond).String()
	}
	return d.Truncate(time.Second).String()
}

func formatUnit(b, base float64, units []string) string {
	if b < base {
		return fmt.Sprintf("%.0f %s", b, units[0])
	}
	value := b
	for i := 1; i < len(units); i++ {
		value /= base
		if value < base {
			return fmt.Sprintf("%.1f %s", value, units[i])
		}
	}
	return fmt.Sprintf("%.1f %s", value, units[len(units)-1])
}
