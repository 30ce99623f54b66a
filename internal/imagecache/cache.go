// Package imagecache stores pre-scaled avatar and emoji bitmaps keyed by a
// canonical resource key. It is filled before rendering and only read after.
package imagecache

import (
	"errors"
	"image"
	"path"
	"regexp"
	"strings"
	"sync"
)

// ErrMissingResource marks an image that could not be obtained. Rendering
// omits the element; it is never fatal.
var ErrMissingResource = errors.New("missing resource")

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Key canonicalizes an image URL or cache file name: the extension and the
// protocol are dropped and every character outside [a-zA-Z0-9_-] becomes '_'.
// Key is idempotent, so Key(Key(u)+".png") == Key(u).
func Key(ref string) string {
	noExt := strings.TrimSuffix(ref, path.Ext(ref))
	if i := strings.Index(noExt, "://"); i >= 0 {
		noExt = noExt[i+3:]
	}
	return unsafeKeyChars.ReplaceAllString(noExt, "_")
}

type Image struct {
	Key    string
	Pixels *image.RGBA
}

func (i *Image) Width() int  { return i.Pixels.Bounds().Dx() }
func (i *Image) Height() int { return i.Pixels.Bounds().Dy() }

// Lookup is the read side used by layout and compositing.
type Lookup interface {
	Get(key string) (*Image, bool)
}

type Cache struct {
	mu     sync.RWMutex
	images map[string]*Image
}

func New() *Cache {
	return &Cache{images: make(map[string]*Image)}
}

func (c *Cache) Get(key string) (*Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.images[key]
	return img, ok
}

func (c *Cache) Put(key string, pixels *image.RGBA) *Image {
	img := &Image{Key: key, Pixels: pixels}
	c.mu.Lock()
	c.images[key] = img
	c.mu.Unlock()
	return img
}

func (c *Cache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}
