// Package hdrbridge converts HDR video frames into UltraHDR (JPEG/R) still images and back.
//
// The encoder takes a raw RGBA1010102 frame tagged HLG or PQ, tone maps it to an SDR base
// rendition, derives a gain map and assembles the JPEG/R container (MPF + XMP + ISO 21496-1
// gain map metadata). The decoder splits such a container and reconstructs the HDR rendition,
// which the reverse path packs back into RGBA1010102 video frames.
package hdrbridge
