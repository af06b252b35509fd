package web

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/rwcarlsen/goexif/exif"
)

const jpegQuality = 90

// prepareImage decodes the file at path, turns it upright and scales it to
// fit within maxW x maxH. The result is JPEG encoded.
func prepareImage(path string, orientation, maxW, maxH int) ([]byte, image.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, image.Point{}, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if orientation <= 1 {
		if _, err := f.Seek(0, 0); err == nil {
			orientation = readOrientation(f)
		}
	}
	img = orient(img, orientation)

	if maxW > 0 && maxH > 0 {
		img = resize.Thumbnail(uint(maxW), uint(maxH), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, image.Point{}, fmt.Errorf("encode %s: %w", path, err)
	}
	b := img.Bounds()
	return buf.Bytes(), image.Pt(b.Dx(), b.Dy()), nil
}

func readOrientation(f *os.File) int {
	x, err := exif.Decode(f)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

// orient applies an EXIF orientation (1-8) so the image displays upright.
func orient(src image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(src)
	case 3:
		return imaging.Rotate180(src)
	case 4:
		return imaging.FlipV(src)
	case 5:
		return imaging.Transpose(src)
	case 6:
		return imaging.Rotate270(src)
	case 7:
		return imaging.Transverse(src)
	case 8:
		return imaging.Rotate90(src)
	}
	return src
}
