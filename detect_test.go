package hdrbridge

import (
	"bytes"
	"testing"
)

func TestHasGainMap(t *testing.T) {
	data := encodeTestFrame(t, 24, 24, TransferHLG, func(x, y int) uint16 { return uint16(256 + x*10 + y*10) })

	ok, err := HasGainMap(bytes.NewReader(data))
	if err != nil || !ok {
		t.Fatalf("container: %v, %v", ok, err)
	}

	primary, _, err := splitContainer(data)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	plain, err := stripAppSegments(primary)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	if ok, err := HasGainMap(bytes.NewReader(plain)); err != nil || ok {
		t.Fatalf("plain jpeg: %v, %v", ok, err)
	}

	// Two plain JPEGs back to back are not a gain map container.
	double := append(append([]byte(nil), plain...), plain...)
	if ok, err := HasGainMap(bytes.NewReader(double)); err != nil || ok {
		t.Fatalf("two plain jpegs: %v, %v", ok, err)
	}

	if ok, err := HasGainMap(bytes.NewReader([]byte("garbage"))); err != nil || ok {
		t.Fatalf("garbage: %v, %v", ok, err)
	}
	if ok, err := HasGainMap(bytes.NewReader(data[:len(primary)+10])); err != nil || ok {
		t.Fatalf("truncated: %v, %v", ok, err)
	}
}
