// Package compositor paints computed message layouts into an RGBA frame.
package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/chat2video/internal/imagecache"
	"github.com/ivlev/chat2video/internal/layout"
	"github.com/ivlev/chat2video/internal/typeface"
)

// maskSupersample is how much larger the avatar circle is drawn before it is
// scaled down, which antialiases its edge.
const maskSupersample = 4

// CacheDimensionMismatch means a cached bitmap does not have the size the
// layout was computed for. The frame is left untouched when it is returned.
type CacheDimensionMismatch struct {
	Key  string
	Want image.Point
	Got  image.Point
}

func (e *CacheDimensionMismatch) Error() string {
	return fmt.Sprintf("cached image %q is %dx%d, expected %dx%d", e.Key, e.Got.X, e.Got.Y, e.Want.X, e.Want.Y)
}

type Options struct {
	Background   color.RGBA
	AuthorColor  color.RGBA
	MessageColor color.RGBA
	Transparent  bool
	Fonts        typeface.Set
}

type Compositor struct {
	metrics layout.Metrics
	opts    Options
	mask    *image.Alpha
}

func New(m layout.Metrics, opts Options) *Compositor {
	if opts.MessageColor == (color.RGBA{}) {
		opts.MessageColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return &Compositor{
		metrics: m,
		opts:    opts,
		mask:    CircleMask(m.AvatarSize),
	}
}

// CircleMask returns an antialiased filled circle of the given diameter, or
// nil when size is not positive.
func CircleMask(size int) *image.Alpha {
	if size < 1 {
		return nil
	}
	big := size * maskSupersample
	src := image.NewAlpha(image.Rect(0, 0, big, big))
	r := float64(big) / 2
	for y := 0; y < big; y++ {
		dy := float64(y) + 0.5 - r
		for x := 0; x < big; x++ {
			dx := float64(x) + 0.5 - r
			if dx*dx+dy*dy <= r*r {
				src.Pix[y*src.Stride+x] = 0xff
			}
		}
	}

	mask := image.NewAlpha(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(mask, mask.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return mask
}

// Paint clears dst and draws layouts, newest first, stacked up from the bottom
// edge. Avatars and emoji that are not in images are skipped.
func (c *Compositor) Paint(dst *image.RGBA, layouts []layout.MessageLayout, images imagecache.Lookup) error {
	if images == nil {
		images = emptyLookup{}
	}
	if err := c.check(layouts, images); err != nil {
		return err
	}

	c.clear(dst)

	bottom := dst.Bounds().Min.Y + c.metrics.Height
	left := dst.Bounds().Min.X
	for _, ml := range layouts {
		bottom -= ml.Height
		origin := image.Pt(left, bottom)
		c.paintMessage(dst, origin, ml, images)
	}
	return nil
}

func (c *Compositor) check(layouts []layout.MessageLayout, images imagecache.Lookup) error {
	want := func(key string, size int) error {
		img, ok := images.Get(key)
		if !ok {
			return nil
		}
		if img.Width() != size || img.Height() != size {
			return &CacheDimensionMismatch{
				Key:  key,
				Want: image.Pt(size, size),
				Got:  image.Pt(img.Width(), img.Height()),
			}
		}
		return nil
	}

	for _, ml := range layouts {
		if ml.AvatarKey != "" {
			if err := want(ml.AvatarKey, c.metrics.AvatarSize); err != nil {
				return err
			}
		}
		for _, line := range ml.Lines {
			for _, item := range line.Items {
				if item.Kind != layout.ItemEmoji {
					continue
				}
				if err := want(item.Key, c.metrics.EmojiSize); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (c *Compositor) clear(dst *image.RGBA) {
	var bg image.Image = image.Transparent
	if !c.opts.Transparent {
		bg = image.NewUniform(c.opts.Background)
	}
	draw.Draw(dst, dst.Bounds(), bg, image.Point{}, draw.Src)
}

func (c *Compositor) paintMessage(dst *image.RGBA, origin image.Point, ml layout.MessageLayout, images imagecache.Lookup) {
	if avatar, ok := images.Get(ml.AvatarKey); ok && ml.AvatarKey != "" && c.mask != nil {
		at := origin.Add(ml.Avatar)
		r := image.Rectangle{Min: at, Max: at.Add(image.Pt(c.metrics.AvatarSize, c.metrics.AvatarSize))}
		draw.DrawMask(dst, r, avatar.Pixels, avatar.Pixels.Bounds().Min, c.mask, image.Point{}, draw.Over)
	}

	if ml.Event != nil {
		at := origin.Add(ml.Author)
		c.opts.Fonts.Author.Draw(dst, at.X, at.Y, ml.Event.Author, c.opts.AuthorColor)
	}

	for _, line := range ml.Lines {
		for _, item := range line.Items {
			at := origin.Add(item.Pos)
			switch item.Kind {
			case layout.ItemText:
				c.opts.Fonts.Message.Draw(dst, at.X, at.Y, item.Text, c.opts.MessageColor)
			case layout.ItemEmoji:
				emoji, ok := images.Get(item.Key)
				if !ok {
					continue
				}
				r := image.Rectangle{Min: at, Max: at.Add(image.Pt(c.metrics.EmojiSize, c.metrics.EmojiSize))}
				draw.Draw(dst, r, emoji.Pixels, emoji.Pixels.Bounds().Min, draw.Over)
			}
		}
	}
}

type emptyLookup struct{}

func (emptyLookup) Get(string) (*imagecache.Image, bool) { return nil, false }
