package compositor

import (
	"context"
	"sync"

	"github.com/vearutop/hdrbridge"
)

// framePool hands out at most size frames, allocating them on first use.
// Get blocks while all frames are checked out.
type framePool struct {
	free chan *hdrbridge.RawFrame

	mu        sync.Mutex
	allocated int
	size      int
	width     int
	height    int
	tf        hdrbridge.TransferFunction
}

func newFramePool(size, width, height int, tf hdrbridge.TransferFunction) *framePool {
	return &framePool{
		free:   make(chan *hdrbridge.RawFrame, size),
		size:   size,
		width:  width,
		height: height,
		tf:     tf,
	}
}

func (p *framePool) Get(ctx context.Context) (*hdrbridge.RawFrame, error) {
	select {
	case f := <-p.free:
		return f, nil
	default:
	}

	p.mu.Lock()
	if p.allocated < p.size {
		p.allocated++
		p.mu.Unlock()

		return hdrbridge.NewRawFrame(p.width, p.height, p.tf), nil
	}
	p.mu.Unlock()

	select {
	case f := <-p.free:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *framePool) Put(f *hdrbridge.RawFrame) {
	if f == nil {
		return
	}
	p.free <- f
}

// outstanding returns the number of frames not yet returned.
func (p *framePool) outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.allocated - len(p.free)
}
