package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vearutop/hdrbridge"
	"github.com/vearutop/hdrbridge/internal/compositor"
	"github.com/vearutop/hdrbridge/internal/framesource"
	"github.com/vearutop/hdrbridge/internal/mediastore"
	"github.com/vearutop/hdrbridge/internal/pipeline"
)

var commands = map[string]func(ctx context.Context, args []string) error{
	"encode":    runEncode,
	"frame":     runFrame,
	"video":     runVideo,
	"import":    runImport,
	"normalize": runNormalize,
	"detect":    runDetect,
	"inspect":   runInspect,
	"split":     runSplit,
	"join":      runJoin,
	"resize":    runResize,
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	run, ok := commands[os.Args[1]]
	if !ok {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[2:]); err != nil {
		fail(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: hdrbridge <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  encode    -in frame.raw -out out.jpg -w 1920 -h 1080 [-tf hlg|pq] [-q 95] [-gq 95] [-scale 1] [-single]")
	fmt.Fprintln(os.Stderr, "  frame     -in frame.tiff|frame.raw -root media [-w 1920 -h 1080] [-standard 6] [-transfer 7] [-rotation 0] [-bottom-up] [-pos 0]")
	fmt.Fprintln(os.Stderr, "  video     -in uhdr.jpg -root media [-frames 30] [-fps 30] [-max 3840]")
	fmt.Fprintln(os.Stderr, "  import    -in image.jpg -root media [-name photo.png]")
	fmt.Fprintln(os.Stderr, "  normalize -in uhdr.jpg -out out.jpg [-q 95]")
	fmt.Fprintln(os.Stderr, "  detect    -in input.jpg")
	fmt.Fprintln(os.Stderr, "  inspect   -in uhdr.jpg [-json]")
	fmt.Fprintln(os.Stderr, "  split     -in uhdr.jpg -primary-out primary.jpg -gainmap-out gainmap.jpg [-meta-out meta.json]")
	fmt.Fprintln(os.Stderr, "  join      -primary primary.jpg -gainmap gainmap.jpg -meta meta.json -out uhdr.jpg")
	fmt.Fprintln(os.Stderr, "  resize    -in uhdr.jpg -out out.jpg -w 2400 [-h 1600] [-q 95] [-gq 95] [-interp bilinear]")
}

func newFlagSet(name string) (*flag.FlagSet, *bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	verbose := fs.Bool("v", false, "debug logging")
	return fs, verbose
}

func logger(verbose bool) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return logrus.NewEntry(l)
}

func newService(root string, log *logrus.Entry) *pipeline.Service {
	store := mediastore.New(root)
	store.Log = log
	s := pipeline.New(store)
	s.Log = log
	return s
}

func runEncode(_ context.Context, args []string) error {
	fs, _ := newFlagSet("encode")
	inPath := fs.String("in", "", "raw RGBA1010102 frame")
	outPath := fs.String("out", "", "output UltraHDR JPEG")
	width := fs.Int("w", 0, "frame width")
	height := fs.Int("h", 0, "frame height")
	tfName := fs.String("tf", "hlg", "transfer function: hlg or pq")
	q := fs.Int("q", 95, "base quality")
	gq := fs.Int("gq", 95, "gainmap quality")
	scale := fs.Int("scale", 1, "gainmap downscale factor")
	single := fs.Bool("single", false, "single channel gainmap")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *outPath == "" || *width <= 0 || *height <= 0 {
		return errors.New("missing required arguments")
	}
	tf, err := hdrbridge.ParseTransferFunction(*tfName)
	if err != nil {
		return err
	}
	return hdrbridge.EncodeFile(*width, *height, filepath.Clean(*inPath), filepath.Clean(*outPath), tf, func(o *hdrbridge.EncodeOptions) {
		o.Quality = *q
		o.GainMapQuality = *gq
		o.GainMapScale = *scale
		o.UseMultiChannelGM = !*single
	})
}

func runFrame(ctx context.Context, args []string) error {
	fs, verbose := newFlagSet("frame")
	inPath := fs.String("in", "", "16-bit TIFF or raw RGBA1010102 frame")
	root := fs.String("root", "", "media root")
	width := fs.Int("w", 0, "raw frame width")
	height := fs.Int("h", 0, "raw frame height")
	standard := fs.Int("standard", int(framesource.StandardBT2020), "color standard code")
	transfer := fs.Int("transfer", int(framesource.TransferHLG), "color transfer code")
	rotation := fs.Int("rotation", 0, "clockwise rotation in degrees")
	bottomUp := fs.Bool("bottom-up", false, "raw rows are stored bottom-up")
	pos := fs.Int64("pos", 0, "position in milliseconds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *root == "" {
		return errors.New("missing required arguments")
	}

	info := framesource.VideoInfo{
		Width:         *width,
		Height:        *height,
		Rotation:      *rotation,
		ColorStandard: framesource.ColorStandard(*standard),
		ColorTransfer: framesource.ColorTransfer(*transfer),
	}

	var src framesource.Source
	switch strings.ToLower(filepath.Ext(*inPath)) {
	case ".tif", ".tiff":
		src = &framesource.TIFFSource{Path: filepath.Clean(*inPath), Meta: info}
	default:
		if *width <= 0 || *height <= 0 {
			return errors.New("raw frames need -w and -h")
		}
		src = &framesource.RawFileSource{Path: filepath.Clean(*inPath), Meta: info, BottomUp: *bottomUp}
	}

	p, err := newService(*root, logger(*verbose)).VideoFrameToUltraHDR(ctx, src, *pos)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, p)
	return nil
}

func runVideo(ctx context.Context, args []string) error {
	fs, verbose := newFlagSet("video")
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	root := fs.String("root", "", "media root")
	frames := fs.Int("frames", 30, "number of frames")
	fps := fs.Int("fps", 30, "frame rate")
	maxDim := fs.Int("max", 3840, "maximal video dimension, 0 keeps photo size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *root == "" {
		return errors.New("missing required arguments")
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}

	log := logger(*verbose)
	s := newService(*root, log)
	s.Compositor = compositor.New(func(c *compositor.Config) {
		c.FrameCount = *frames
		c.FrameRate = *fps
		c.MaxDimension = *maxDim
	})
	s.Compositor.Log = log

	p, err := s.UltraHDRToVideo(ctx, data)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, p)
	return nil
}

func runImport(ctx context.Context, args []string) error {
	fs, verbose := newFlagSet("import")
	inPath := fs.String("in", "", "image with a gain map")
	root := fs.String("root", "", "media root")
	name := fs.String("name", "", "display name, defaults to the input file name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *root == "" {
		return errors.New("missing required arguments")
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	if *name == "" {
		*name = filepath.Base(*inPath)
	}

	p, err := newService(*root, logger(*verbose)).ImportGainMapImage(ctx, data, *name)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, p)
	return nil
}

func runNormalize(_ context.Context, args []string) error {
	fs, _ := newFlagSet("normalize")
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	outPath := fs.String("out", "", "output UltraHDR JPEG")
	q := fs.Int("q", pipeline.SaveQuality, "quality of both images")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *outPath == "" {
		return errors.New("missing required arguments")
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	out, err := hdrbridge.Normalize(data, func(o *hdrbridge.EncodeOptions) {
		o.Quality = *q
		o.GainMapQuality = *q
	})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(*outPath), out, 0o644)
}

func runDetect(_ context.Context, args []string) error {
	fs, _ := newFlagSet("detect")
	inPath := fs.String("in", "", "input JPEG")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		return errors.New("missing required arguments")
	}
	f, err := os.Open(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	defer f.Close()
	ok, err := hdrbridge.HasGainMap(f)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(os.Stdout, "ultrahdr")
		return nil
	}
	fmt.Fprintln(os.Stdout, "not ultrahdr")
	return nil
}

func runInspect(_ context.Context, args []string) error {
	fs, _ := newFlagSet("inspect")
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		return errors.New("missing required arguments")
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	r, err := hdrbridge.Inspect(data)
	if err != nil {
		return err
	}
	if !*asJSON {
		fmt.Fprint(os.Stdout, r.String())
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func runSplit(_ context.Context, args []string) error {
	fs, _ := newFlagSet("split")
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	primaryOut := fs.String("primary-out", "", "primary output JPEG")
	gainmapOut := fs.String("gainmap-out", "", "gainmap output JPEG")
	metaOut := fs.String("meta-out", "", "metadata json output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *primaryOut == "" || *gainmapOut == "" {
		return errors.New("missing required arguments")
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	primary, gainmap, meta, err := hdrbridge.Split(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(*primaryOut), primary, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(*gainmapOut), gainmap, 0o644); err != nil {
		return err
	}
	if *metaOut != "" {
		payload, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Clean(*metaOut), payload, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func runJoin(_ context.Context, args []string) error {
	fs, _ := newFlagSet("join")
	metaPath := fs.String("meta", "", "metadata json")
	primaryPath := fs.String("primary", "", "primary JPEG")
	gainmapPath := fs.String("gainmap", "", "gainmap JPEG")
	outPath := fs.String("out", "", "output UltraHDR JPEG")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *metaPath == "" || *primaryPath == "" || *gainmapPath == "" || *outPath == "" {
		return errors.New("missing required arguments")
	}
	primary, err := os.ReadFile(filepath.Clean(*primaryPath))
	if err != nil {
		return err
	}
	gainmap, err := os.ReadFile(filepath.Clean(*gainmapPath))
	if err != nil {
		return err
	}
	metaData, err := os.ReadFile(filepath.Clean(*metaPath))
	if err != nil {
		return err
	}
	var meta hdrbridge.GainMapMetadata
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return fmt.Errorf("parse metadata: %w", err)
	}
	container, err := hdrbridge.Join(primary, gainmap, &meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(*outPath), container, 0o644)
}

func runResize(_ context.Context, args []string) error {
	fs, _ := newFlagSet("resize")
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	outPath := fs.String("out", "", "output UltraHDR JPEG")
	width := fs.Uint("w", 0, "target width, 0 keeps aspect ratio")
	height := fs.Uint("h", 0, "target height, 0 keeps aspect ratio")
	q := fs.Int("q", 95, "base quality")
	gq := fs.Int("gq", 95, "gainmap quality")
	interpName := fs.String("interp", "bilinear", "nearest, bilinear, bicubic, mitchell, lanczos2 or lanczos3")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *outPath == "" || (*width == 0 && *height == 0) {
		return errors.New("missing required arguments")
	}
	interp, err := hdrbridge.ParseInterpolation(*interpName)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	out, err := hdrbridge.Resize(data, *width, *height, func(o *hdrbridge.ResizeOptions) {
		o.Quality = *q
		o.GainMapQuality = *gq
		o.Interpolation = interp
	})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(*outPath), out, 0o644)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
