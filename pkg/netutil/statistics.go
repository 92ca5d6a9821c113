package netutil

import "time"

// Statistics counts link traffic of one device.
type Statistics struct {
	RxFrames  uint64    `json:"rx_frames"`
	TxFrames  uint64    `json:"tx_frames"`
	RxBytes   uint64    `json:"rx_bytes"`
	TxBytes   uint64    `json:"tx_bytes"`
	RxIgnored uint64    `json:"rx_ignored"` // received and not answered
	TxErrors  uint64    `json:"tx_errors"`
	Timestamp time.Time `json:"timestamp"` // Get statistics time
}

type StatisticsRate struct {
	RxFPS float64 // Frames Per Second
	TxFPS float64
	RxBPS float64 // Bits Per Second
	TxBPS float64
}

func (s *Statistics) AddRx(n int, ignored bool) {
	s.RxFrames++
	s.RxBytes += uint64(n)
	if ignored {
		s.RxIgnored++
	}
}

func (s *Statistics) AddTx(n int) {
	s.TxFrames++
	s.TxBytes += uint64(n)
}

func (s Statistics) Rate(prev Statistics) StatisticsRate {
	fps := func(prev, curr uint64, period float64) float64 {
		frames := curr - prev
		return float64(frames) / period
	}

	bps := func(prev, curr uint64, period float64) float64 {
		bytes := curr - prev
		return float64(bytes*8) / period
	}

	period := float64(s.Timestamp.Sub(prev.Timestamp)) / float64(time.Second)
	if period <= 0.0 {
		return StatisticsRate{}
	}
	return StatisticsRate{
		RxFPS: fps(prev.RxFrames, s.RxFrames, period),
		TxFPS: fps(prev.TxFrames, s.TxFrames, period),
		RxBPS: bps(prev.RxBytes, s.RxBytes, period),
		TxBPS: bps(prev.TxBytes, s.TxBytes, period),
	}
}
