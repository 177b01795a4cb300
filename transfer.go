package hdrbridge

import (
	"math"
	"sync"
)

// BT.2100 HLG constants.
const (
	hlgA = 0.17883277
	hlgB = 0.28466892 // 1 - 4a
	hlgC = 0.55991073 // 0.5 - a*ln(4a)
)

// SMPTE ST 2084 constants.
const (
	pqM1 = 2610.0 / 16384.0
	pqM2 = 2523.0 / 4096.0 * 128.0
	pqC1 = 3424.0 / 4096.0
	pqC2 = 2413.0 / 4096.0 * 32.0
	pqC3 = 2392.0 / 4096.0 * 32.0
)

// BT.2020 luminance weights.
const (
	bt2020Kr = 0.2627
	bt2020Kg = 0.6780
	bt2020Kb = 0.0593
)

// hlgInvOetf maps an HLG signal in [0, 1] to normalized scene light in [0, 1].
func hlgInvOetf(e float64) float64 {
	if e <= 0 {
		return 0
	}
	if e <= 0.5 {
		return e * e / 3
	}
	return (math.Exp((e-hlgC)/hlgA) + hlgB) / 12
}

// hlgOetf maps normalized scene light in [0, 1] to an HLG signal.
func hlgOetf(e float64) float64 {
	if e <= 0 {
		return 0
	}
	if e <= 1.0/12.0 {
		return math.Sqrt(3 * e)
	}
	return hlgA*math.Log(12*e-hlgB) + hlgC
}

// pqEotf maps a PQ signal in [0, 1] to display light normalized to 10000 nits.
func pqEotf(e float64) float64 {
	if e <= 0 {
		return 0
	}
	p := math.Pow(e, 1/pqM2)
	num := math.Max(p-pqC1, 0)
	return math.Pow(num/(pqC2-pqC3*p), 1/pqM1)
}

// pqInvEotf maps display light normalized to 10000 nits to a PQ signal.
func pqInvEotf(y float64) float64 {
	if y <= 0 {
		return 0
	}
	if y > 1 {
		y = 1
	}
	p := math.Pow(y, pqM1)
	return math.Pow((pqC1+pqC2*p)/(1+pqC3*p), pqM2)
}

// transferTables are built once per process and only read afterwards.
type transferTables struct {
	hlgScene  [maxCode10 + 1]float32 // code -> normalized scene light
	pqDisplay [maxCode10 + 1]float32 // code -> display light relative to SDR white
	srgbDec   [256]float32           // 8-bit sRGB code -> linear
	srgbEnc   []uint8                // linear * 65535 -> 8-bit sRGB code
}

var (
	tablesOnce sync.Once
	tables     *transferTables
)

func loadTables() *transferTables {
	tablesOnce.Do(func() {
		t := &transferTables{srgbEnc: make([]uint8, 65536)}
		for c := 0; c <= maxCode10; c++ {
			e := float64(c) / maxCode10
			t.hlgScene[c] = float32(hlgInvOetf(e))
			t.pqDisplay[c] = float32(pqEotf(e) * pqMaxNits / sdrWhiteNits)
		}
		for c := 0; c < 256; c++ {
			t.srgbDec[c] = srgbInvOetf(float32(c) / 255)
		}
		for i := range t.srgbEnc {
			v := srgbOetf(float32(i)/65535) * 255
			t.srgbEnc[i] = uint8(math.Min(255, math.Max(0, float64(v)+0.5)))
		}
		tables = t
	})
	return tables
}

// encodeSRGB8 quantizes linear [0, 1] light to an 8-bit sRGB code.
func (t *transferTables) encodeSRGB8(v float32) uint8 {
	v = clamp01(v)
	return t.srgbEnc[int(v*65535+0.5)]
}

// hlgDisplayFromScene applies the BT.2100 OOTF for a 1000 nit display and returns
// display light relative to SDR white.
func hlgDisplayFromScene(s rgb) rgb {
	ys := bt2020Kr*s.r + bt2020Kg*s.g + bt2020Kb*s.b
	if ys <= 0 {
		return rgb{}
	}
	gain := float32(math.Pow(float64(ys), hlgGamma-1)) * (hlgMaxNits / sdrWhiteNits)
	return s.scale(gain)
}

// hlgSceneFromDisplay inverts hlgDisplayFromScene.
func hlgSceneFromDisplay(d rgb) rgb {
	d = d.scale(sdrWhiteNits / hlgMaxNits)
	yd := bt2020Kr*d.r + bt2020Kg*d.g + bt2020Kb*d.b
	if yd <= 0 {
		return rgb{}
	}
	return d.scale(float32(math.Pow(float64(yd), (1-hlgGamma)/hlgGamma)))
}

// frameToHDR linearizes a raw frame into BT.2020 display light relative to SDR white.
func frameToHDR(f *RawFrame) *HDRImage {
	t := loadTables()
	out := NewHDRImage(f.Width, f.Height, GamutBT2020)
	n := f.Width * f.Height
	for i := 0; i < n; i++ {
		w := uint32(f.Pix[i*4]) | uint32(f.Pix[i*4+1])<<8 | uint32(f.Pix[i*4+2])<<16 | uint32(f.Pix[i*4+3])<<24
		r, g, b, _ := unpack1010102(w)
		var v rgb
		switch f.Transfer {
		case TransferPQ:
			v = rgb{r: t.pqDisplay[r], g: t.pqDisplay[g], b: t.pqDisplay[b]}
		default:
			v = hlgDisplayFromScene(rgb{r: t.hlgScene[r], g: t.hlgScene[g], b: t.hlgScene[b]})
		}
		out.Pix[i*3] = v.r
		out.Pix[i*3+1] = v.g
		out.Pix[i*3+2] = v.b
	}
	return out
}

// encodeSignal maps linear light to a 10-bit code: normalized scene light for HLG,
// display light relative to SDR white for PQ.
func encodeSignal(v float32, tf TransferFunction) uint16 {
	var e float64
	switch tf {
	case TransferPQ:
		e = pqInvEotf(float64(v) * sdrWhiteNits / pqMaxNits)
	default:
		e = hlgOetf(float64(v))
	}
	c := math.Round(e * maxCode10)
	if c < 0 {
		return 0
	}
	if c > maxCode10 {
		return maxCode10
	}
	return uint16(c)
}
