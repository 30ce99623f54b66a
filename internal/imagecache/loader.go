package imagecache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// Request asks for url to be cached as a size×size bitmap.
type Request struct {
	URL  string
	Size int
}

type Result struct {
	Downloaded int
	Missing    int
}

// Loader fills a Cache from the network and, optionally, a directory of
// previously downloaded PNG files.
type Loader struct {
	Client  *http.Client
	Dir     string
	Workers int
	Logger  *slog.Logger
}

func NewLoader(dir string, workers int, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		Client:  &http.Client{Timeout: 30 * time.Second},
		Dir:     dir,
		Workers: workers,
		Logger:  logger,
	}
}

// LoadDisk reads every image in l.Dir into c. Images keep the size they were
// saved with. A missing directory is created and counts as empty.
func (l *Loader) LoadDisk(c *Cache) (int, error) {
	if l.Dir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(l.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, os.MkdirAll(l.Dir, 0755)
	}
	if err != nil {
		return 0, err
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) == ".tmp" {
			continue
		}
		p := filepath.Join(l.Dir, e.Name())
		img, err := decodeFile(p)
		if err != nil {
			l.Logger.Warn("skipping unreadable cache file", slog.String("path", p), slog.Any("err", err))
			continue
		}
		c.Put(Key(e.Name()), toRGBA(img))
		n++
	}
	return n, nil
}

// Populate downloads every request whose key is not cached yet. Failures are
// logged and counted as missing; only cancellation of ctx is returned.
func (l *Loader) Populate(ctx context.Context, c *Cache, reqs []Request) (Result, error) {
	var downloaded, missing atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	workers := l.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	seen := make(map[string]struct{})
	for _, req := range reqs {
		key := Key(req.URL)
		if _, dup := seen[key]; dup || c.Has(key) {
			continue
		}
		seen[key] = struct{}{}

		req := req
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := l.fetch(gctx, c, key, req); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				missing.Add(1)
				l.Logger.Warn("image unavailable", slog.String("url", req.URL), slog.Any("err", err))
				return nil
			}
			downloaded.Add(1)
			return nil
		})
	}

	err := g.Wait()
	return Result{Downloaded: int(downloaded.Load()), Missing: int(missing.Load())}, err
}

func (l *Loader) fetch(ctx context.Context, c *Cache, key string, req Request) error {
	l.Logger.Debug("downloading image", slog.String("url", req.URL))

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingResource, err)
	}
	resp, err := l.Client.Do(hreq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingResource, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: http status %d", ErrMissingResource, resp.StatusCode)
	}

	src, _, err := image.Decode(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: decode: %v", ErrMissingResource, err)
	}

	scaled := Resize(src, req.Size)
	c.Put(key, scaled)

	if l.Dir != "" {
		if err := savePNG(filepath.Join(l.Dir, key+".png"), scaled); err != nil {
			l.Logger.Warn("could not write cache file", slog.String("key", key), slog.Any("err", err))
		}
	}
	return nil
}

// Resize scales src to a size×size RGBA bitmap.
func Resize(src image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func savePNG(path string, img image.Image) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
