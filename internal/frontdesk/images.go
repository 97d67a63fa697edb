package frontdesk

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	MaxImages    = 3
	MaxEdge      = 1024
	TargetBytes  = 400 << 10
	startQuality = 85
	minQuality   = 35
	qualityStep  = 10
)

// Image: 圧縮済み JPEG
type Image struct {
	Name string
	Data []byte
}

func (i Image) Size() int64 { return int64(len(i.Data)) }

// Compress: 長辺 MaxEdge に縮小し、TargetBytes 以下になるまで品質を下げて JPEG にする。
// 最低品質でも超える場合はそのまま返す
func Compress(r io.Reader, name string) (Image, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return Image{}, fmt.Errorf("decode %s: %w", name, err)
	}
	img := fit(src, MaxEdge)

	var buf bytes.Buffer
	for q := startQuality; ; q -= qualityStep {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return Image{}, fmt.Errorf("encode %s: %w", name, err)
		}
		if buf.Len() <= TargetBytes || q-qualityStep < minQuality {
			break
		}
	}
	return Image{Name: jpegName(name), Data: bytes.Clone(buf.Bytes())}, nil
}

func fit(src image.Image, edge int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= edge && h <= edge {
		return src
	}
	if w >= h {
		h = max(1, h*edge/w)
		w = edge
	} else {
		w = max(1, w*edge/h)
		h = edge
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func jpegName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." {
		base = "image"
	}
	return base + ".jpg"
}
