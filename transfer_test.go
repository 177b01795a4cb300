package hdrbridge

import (
	"math"
	"testing"
)

func TestHLGCurveInverse(t *testing.T) {
	for _, e := range []float64{0, 0.1, 0.25, 0.5, 0.6, 0.75, 0.9, 1} {
		got := hlgOetf(hlgInvOetf(e))
		if math.Abs(got-e) > 1e-6 {
			t.Fatalf("hlg round trip %v -> %v", e, got)
		}
	}
	// Reference white of the HLG signal sits at 0.5 => scene 1/12.
	if v := hlgInvOetf(0.5); math.Abs(v-1.0/12) > 1e-9 {
		t.Fatalf("hlgInvOetf(0.5) = %v", v)
	}
	if v := hlgInvOetf(1); math.Abs(v-1) > 1e-6 {
		t.Fatalf("hlgInvOetf(1) = %v", v)
	}
}

func TestPQCurveInverse(t *testing.T) {
	for _, y := range []float64{0, 0.0001, 0.01, 0.0203, 0.1, 0.5, 1} {
		got := pqEotf(pqInvEotf(y))
		if math.Abs(got-y) > 1e-6 {
			t.Fatalf("pq round trip %v -> %v", y, got)
		}
	}
	if v := pqEotf(1); math.Abs(v-1) > 1e-9 {
		t.Fatalf("pqEotf(1) = %v", v)
	}
}

func TestHLGOOTFPeak(t *testing.T) {
	d := hlgDisplayFromScene(rgb{r: 1, g: 1, b: 1})
	want := float32(hlgMaxNits / sdrWhiteNits)
	if math.Abs(float64(d.r-want)) > 1e-4 {
		t.Fatalf("HLG peak maps to %v, want %v", d.r, want)
	}

	s := rgb{r: 0.2, g: 0.4, b: 0.05}
	back := hlgSceneFromDisplay(hlgDisplayFromScene(s))
	if math.Abs(float64(back.r-s.r)) > 1e-4 || math.Abs(float64(back.g-s.g)) > 1e-4 || math.Abs(float64(back.b-s.b)) > 1e-4 {
		t.Fatalf("OOTF round trip %+v -> %+v", s, back)
	}
}

func TestPackRGBA1010102RoundTrip(t *testing.T) {
	for _, tf := range []TransferFunction{TransferHLG, TransferPQ} {
		f := NewRawFrame(32, 4, tf)
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				c := uint16(64 + x*28)
				f.Set(x, y, c, uint16(64+y*200), c/2+100, 3)
			}
		}

		packed, err := PackRGBA1010102(frameToHDR(f), tf)
		if err != nil {
			t.Fatalf("%s: pack: %v", tf, err)
		}
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				r0, g0, b0, _ := f.At(x, y)
				r1, g1, b1, a1 := packed.At(x, y)
				if absDiff(r0, r1) > 1 || absDiff(g0, g1) > 1 || absDiff(b0, b1) > 1 || a1 != 3 {
					t.Fatalf("%s: pixel %d,%d: %d %d %d -> %d %d %d", tf, x, y, r0, g0, b0, r1, g1, b1)
				}
			}
		}
	}
}

func TestGamutConversionInverse(t *testing.T) {
	v := rgb{r: 0.3, g: 0.5, b: 0.2}
	back := bt2020ToBT709(bt709ToBT2020(v))
	if math.Abs(float64(back.r-v.r)) > 1e-4 || math.Abs(float64(back.g-v.g)) > 1e-4 || math.Abs(float64(back.b-v.b)) > 1e-4 {
		t.Fatalf("gamut round trip %+v -> %+v", v, back)
	}
	white := bt2020ToBT709(rgb{r: 1, g: 1, b: 1})
	if math.Abs(float64(white.r-1)) > 1e-3 || math.Abs(float64(white.g-1)) > 1e-3 || math.Abs(float64(white.b-1)) > 1e-3 {
		t.Fatalf("white not preserved: %+v", white)
	}
}

func TestToneMapper(t *testing.T) {
	tm := toneMapper{peak: float32(hlgMaxNits / sdrWhiteNits)}
	if v := tm.apply(rgb{r: tm.peak, g: tm.peak, b: tm.peak}); math.Abs(float64(v.r-1)) > 1e-5 {
		t.Fatalf("peak maps to %v", v.r)
	}
	prev := float32(-1)
	for l := float32(0); l <= tm.peak; l += 0.05 {
		v := tm.apply(rgb{r: l, g: l / 2, b: l / 4})
		if v.r < prev {
			t.Fatalf("tone curve not monotonic at %v", l)
		}
		if v.r > 0 && math.Abs(float64(v.g/v.r-0.5)) > 1e-4 {
			t.Fatalf("hue not preserved at %v: %+v", l, v)
		}
		prev = v.r
	}
}

func TestLoadTablesOnce(t *testing.T) {
	if loadTables() != loadTables() {
		t.Fatalf("tables rebuilt")
	}
}

func absDiff(a, b uint16) uint16 {
	if a > b {
		return a - b
	}
	return b - a
}
