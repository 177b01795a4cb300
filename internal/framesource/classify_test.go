package framesource_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vearutop/hdrbridge"
	"github.com/vearutop/hdrbridge/internal/framesource"
)

func TestClassify(t *testing.T) {
	standards := []framesource.ColorStandard{
		framesource.StandardUnknown,
		framesource.StandardBT709,
		framesource.StandardBT601PAL,
		framesource.StandardBT601NTSC,
		framesource.StandardBT2020,
		99,
	}
	transfers := []framesource.ColorTransfer{
		0,
		framesource.TransferLinear,
		framesource.TransferSDRVideo,
		framesource.TransferST2084,
		framesource.TransferHLG,
		42,
	}

	for _, s := range standards {
		for _, tr := range transfers {
			tf, err := framesource.Classify(s, tr)

			switch {
			case s == framesource.StandardBT2020 && tr == framesource.TransferHLG:
				require.NoError(t, err)
				assert.Equal(t, hdrbridge.TransferHLG, tf)
			case s == framesource.StandardBT2020 && tr == framesource.TransferST2084:
				require.NoError(t, err)
				assert.Equal(t, hdrbridge.TransferPQ, tf)
			default:
				assert.ErrorIs(t, err, hdrbridge.ErrRequiredHdrVideo, "standard %d transfer %d", s, tr)
			}
		}
	}
}

func TestVideoInfoDisplaySize(t *testing.T) {
	for _, tc := range []struct {
		rotation   int
		wantW      int
		wantHeight int
	}{
		{0, 1920, 1080},
		{90, 1080, 1920},
		{180, 1920, 1080},
		{270, 1080, 1920},
		{-90, 1080, 1920},
		{450, 1080, 1920},
	} {
		w, h := framesource.VideoInfo{Width: 1920, Height: 1080, Rotation: tc.rotation}.DisplaySize()
		assert.Equal(t, tc.wantW, w, "rotation %d", tc.rotation)
		assert.Equal(t, tc.wantHeight, h, "rotation %d", tc.rotation)
	}
}

func TestVideoInfoTransferDefaultsToSDR(t *testing.T) {
	_, err := framesource.VideoInfo{Width: 16, Height: 16}.Transfer()
	assert.ErrorIs(t, err, hdrbridge.ErrRequiredHdrVideo)
}
