package camera

import (
	"bytes"
	"image"
	_ "image/jpeg" // register decoder for DecodeConfig
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/errors"
)

// ReplayOpener serves JPEG files from a directory in name order, looping
// when the directory is exhausted. The device index is ignored.
type ReplayOpener struct {
	Dir string
}

func (o ReplayOpener) Open(_ int) (Camera, error) {
	errFactory := errors.New()

	entries, err := os.ReadDir(o.Dir)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrCameraUnavailable, err)
	}

	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.Type().IsRegular() && (ext == ".jpg" || ext == ".jpeg") {
			files = append(files, filepath.Join(o.Dir, e.Name()))
		}
	}
	slices.Sort(files)

	if len(files) == 0 {
		return nil, errFactory.WithMessage(errors.ErrCameraUnavailable, "no frames in "+o.Dir)
	}

	return &replayCamera{files: files}, nil
}

type replayCamera struct {
	mu     sync.Mutex
	files  []string
	next   int
	seq    uint64
	closed bool
}

func (c *replayCamera) Read() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	errFactory := errors.New()

	if c.closed {
		return Frame{}, errFactory.WithMessage(errors.ErrFrameRead, "camera closed")
	}

	path := c.files[c.next%len(c.files)]
	c.next++

	data, err := os.ReadFile(path)
	if err != nil {
		return Frame{}, errFactory.Wrap(errors.ErrFrameRead, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Frame{}, errFactory.Wrap(errors.ErrFrameRead, err)
	}

	c.seq++

	return Frame{
		Seq:       c.seq,
		Timestamp: time.Now(),
		Width:     cfg.Width,
		Height:    cfg.Height,
		Data:      data,
	}, nil
}

func (c *replayCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
