package compositor

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/chat2video/internal/chatlog"
	"github.com/ivlev/chat2video/internal/imagecache"
	"github.com/ivlev/chat2video/internal/layout"
	"github.com/ivlev/chat2video/internal/typeface"
)

var (
	bg  = color.RGBA{R: 15, G: 15, B: 15, A: 255}
	red = color.RGBA{R: 255, A: 255}
)

func solid(size int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

type fixture struct {
	metrics layout.Metrics
	cache   *imagecache.Cache
	fonts   typeface.Set
	engine  *layout.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fonts, warnings := typeface.LoadSet("", "", typeface.BaseSize)
	require.Empty(t, warnings)
	t.Cleanup(fonts.Close)

	m := layout.NewMetrics(400, 200, 24, 1)
	cache := imagecache.New()
	return &fixture{
		metrics: m,
		cache:   cache,
		fonts:   fonts,
		engine:  layout.NewEngine(m, fonts.Author, fonts.Message, cache, true),
	}
}

func (f *fixture) compositor(transparent bool) *Compositor {
	return New(f.metrics, Options{
		Background:  bg,
		AuthorColor: color.RGBA{R: 183, G: 183, B: 183, A: 255},
		Transparent: transparent,
		Fonts:       f.fonts,
	})
}

func (f *fixture) frame() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, f.metrics.Width, f.metrics.Height))
}

func regionIs(img *image.RGBA, r image.Rectangle, c color.RGBA) bool {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.RGBAAt(x, y) != c {
				return false
			}
		}
	}
	return true
}

func TestPaintBackground(t *testing.T) {
	f := newFixture(t)
	dst := f.frame()

	require.NoError(t, f.compositor(false).Paint(dst, nil, f.cache))
	assert.True(t, regionIs(dst, dst.Bounds(), bg))

	draw.Draw(dst, dst.Bounds(), image.NewUniform(red), image.Point{}, draw.Src)
	require.NoError(t, f.compositor(true).Paint(dst, nil, nil))
	assert.True(t, regionIs(dst, dst.Bounds(), color.RGBA{}))
}

func TestPaintAvatarIsCircular(t *testing.T) {
	f := newFixture(t)
	f.cache.Put(imagecache.Key("https://a/bob.jpg"), solid(24, red))

	events := []chatlog.Event{{Author: "Bob", AvatarURL: "https://a/bob.jpg", Runs: []chatlog.Run{chatlog.TextRun{Text: "hi"}}}}
	layouts := f.engine.Compute(events)
	dst := f.frame()
	require.NoError(t, f.compositor(false).Paint(dst, layouts, f.cache))

	// The only message is 32px tall and sits on the bottom edge.
	top := f.metrics.Height - 32
	ax, ay := f.metrics.AvatarX(), top+4
	assert.Equal(t, red, dst.RGBAAt(ax+12, ay+12))
	assert.Equal(t, bg, dst.RGBAAt(ax, ay))
	assert.Equal(t, bg, dst.RGBAAt(ax+23, ay+23))
}

func TestPaintMissingAvatarKeepsText(t *testing.T) {
	f := newFixture(t)
	events := []chatlog.Event{{Author: "Bob", AvatarURL: "https://a/gone.jpg", Runs: []chatlog.Run{chatlog.TextRun{Text: "Hello"}}}}
	layouts := f.engine.Compute(events)
	dst := f.frame()
	require.NoError(t, f.compositor(false).Paint(dst, layouts, f.cache))

	top := f.metrics.Height - 32
	avatar := image.Rect(f.metrics.AvatarX(), top+4, f.metrics.AvatarX()+24, top+28)
	assert.True(t, regionIs(dst, avatar, bg), "no avatar is drawn")

	text := image.Rect(f.metrics.AuthorX(), top+4, f.metrics.RightEdge(), top+28)
	assert.False(t, regionIs(dst, text, bg), "author and message are drawn")
	assert.True(t, regionIs(dst, image.Rect(0, 0, f.metrics.Width, top), bg), "nothing above the message")
}

func TestPaintDimensionMismatchLeavesFrame(t *testing.T) {
	f := newFixture(t)
	events := []chatlog.Event{{Author: "Bob", AvatarURL: "https://a/bob.jpg", Runs: []chatlog.Run{chatlog.TextRun{Text: "hi"}}}}
	layouts := f.engine.Compute(events)

	// Replaced after layout, so the cache no longer matches the metrics.
	f.cache.Put(imagecache.Key("https://a/bob.jpg"), solid(10, red))

	dst := f.frame()
	draw.Draw(dst, dst.Bounds(), image.NewUniform(red), image.Point{}, draw.Src)

	err := f.compositor(false).Paint(dst, layouts, f.cache)
	var mismatch *CacheDimensionMismatch
	require.True(t, errors.As(err, &mismatch), "got %v", err)
	assert.Equal(t, image.Pt(24, 24), mismatch.Want)
	assert.Equal(t, image.Pt(10, 10), mismatch.Got)
	assert.True(t, regionIs(dst, dst.Bounds(), red), "frame must not be touched")
}

func TestPaintEmoji(t *testing.T) {
	f := newFixture(t)
	blue := color.RGBA{B: 255, A: 255}
	f.cache.Put(imagecache.Key("https://e/x.png"), solid(16, blue))

	events := []chatlog.Event{{Runs: []chatlog.Run{chatlog.EmojiRun{URL: "https://e/x.png"}}}}
	layouts := f.engine.Compute(events)
	require.Len(t, layouts, 1)
	item := layouts[0].Lines[0].Items[0]

	dst := f.frame()
	require.NoError(t, f.compositor(false).Paint(dst, layouts, f.cache))
	top := f.metrics.Height - layouts[0].Height
	at := item.Pos.Add(image.Pt(0, top))
	assert.True(t, regionIs(dst, image.Rectangle{Min: at, Max: at.Add(image.Pt(16, 16))}, blue))

	f.cache.Put(imagecache.Key("https://e/x.png"), solid(20, blue))
	var mismatch *CacheDimensionMismatch
	assert.True(t, errors.As(f.compositor(false).Paint(dst, layouts, f.cache), &mismatch))
}

func TestCircleMask(t *testing.T) {
	assert.Nil(t, CircleMask(0))

	m := CircleMask(24)
	require.NotNil(t, m)
	assert.Equal(t, image.Rect(0, 0, 24, 24), m.Bounds())
	assert.Equal(t, uint8(0xff), m.AlphaAt(12, 12).A)
	assert.Equal(t, uint8(0), m.AlphaAt(0, 0).A)
	assert.Equal(t, m.AlphaAt(3, 12), m.AlphaAt(20, 12), "symmetric")
}
