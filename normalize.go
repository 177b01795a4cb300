package hdrbridge

// Normalize decodes both images of an UltraHDR container and re-encodes them with the
// same gain map metadata. EXIF and ICC of the base are kept.
//
// Some gallery viewers only recognize the gain map after this round trip. Encode does
// not call it; the photo pipeline applies it to files before they are published.
func Normalize(data []byte, options ...func(o *EncodeOptions)) ([]byte, error) {
	im, err := Decode(data)
	if err != nil {
		return nil, err
	}
	opt := defaultEncodeOptions()
	for _, o := range options {
		o(&opt)
	}
	opt.normalize()

	base, err := encodeJPEG(im.Base, opt.Quality)
	if err != nil {
		return nil, err
	}
	if base, err = withExifAndIcc(base, im.PrimaryJPEG); err != nil {
		return nil, err
	}
	gm, err := encodeJPEG(im.GainMap, opt.GainMapQuality)
	if err != nil {
		return nil, err
	}
	meta := *im.Meta
	if meta.Version == "" {
		meta.Version = jpegrVersion
	}
	return assembleContainer(base, gm, &meta)
}
