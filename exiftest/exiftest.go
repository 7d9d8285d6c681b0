// Package exiftest writes JPEG fixtures carrying a minimal EXIF block with
// capture dates and GPS coordinates.
package exiftest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

// GPS is a position in signed decimal degrees.
type GPS struct {
	Lat, Lon float64
}

// Options selects which tags the EXIF block carries. Empty strings and a
// nil GPS leave the tag out.
type Options struct {
	DateTimeOriginal string
	DateTime         string
	GPS              *GPS
}

const (
	typeASCII    = 2
	typeLong     = 4
	typeRational = 5

	tagDateTime         = 0x0132
	tagExifIFD          = 0x8769
	tagGPSIFD           = 0x8825
	tagDateTimeOriginal = 0x9003
	tagGPSLatitudeRef   = 0x0001
	tagGPSLatitude      = 0x0002
	tagGPSLongitudeRef  = 0x0003
	tagGPSLongitude     = 0x0004
)

var order = binary.LittleEndian

type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

type ifd []entry

func (d ifd) size() uint32 {
	n := uint32(2 + 12*len(d) + 4)
	for _, e := range d {
		if len(e.data) > 4 {
			n += uint32(len(e.data) + len(e.data)%2)
		}
	}
	return n
}

// encode lays the directory out at offset base of the TIFF stream, with
// values longer than four bytes following it.
func (d ifd) encode(base uint32) []byte {
	var head, tail bytes.Buffer
	binary.Write(&head, order, uint16(len(d)))
	dataOff := base + uint32(2+12*len(d)+4)
	for _, e := range d {
		binary.Write(&head, order, e.tag)
		binary.Write(&head, order, e.typ)
		binary.Write(&head, order, e.count)
		if len(e.data) <= 4 {
			v := make([]byte, 4)
			copy(v, e.data)
			head.Write(v)
			continue
		}
		binary.Write(&head, order, dataOff+uint32(tail.Len()))
		tail.Write(e.data)
		if len(e.data)%2 == 1 {
			tail.WriteByte(0)
		}
	}
	binary.Write(&head, order, uint32(0))
	head.Write(tail.Bytes())
	return head.Bytes()
}

func ascii(tag uint16, s string) entry {
	b := append([]byte(s), 0)
	return entry{tag: tag, typ: typeASCII, count: uint32(len(b)), data: b}
}

func long(tag uint16, v uint32) entry {
	b := make([]byte, 4)
	order.PutUint32(b, v)
	return entry{tag: tag, typ: typeLong, count: 1, data: b}
}

func rationals(tag uint16, vals ...[2]uint32) entry {
	b := make([]byte, 0, 8*len(vals))
	for _, v := range vals {
		b = order.AppendUint32(b, v[0])
		b = order.AppendUint32(b, v[1])
	}
	return entry{tag: tag, typ: typeRational, count: uint32(len(vals)), data: b}
}

// dms splits an absolute decimal angle into rational degrees, minutes and
// milliseconds-precision seconds.
func dms(v float64) [][2]uint32 {
	v = math.Abs(v)
	deg := math.Floor(v)
	minutes := math.Floor((v - deg) * 60)
	sec := math.Round(((v-deg)*60 - minutes) * 60 * 1000)
	return [][2]uint32{{uint32(deg), 1}, {uint32(minutes), 1}, {uint32(sec), 1000}}
}

// TIFF builds the little-endian TIFF stream of an EXIF block.
func TIFF(opts Options) []byte {
	var ifd0, exifDir, gpsDir ifd
	if opts.DateTime != "" {
		ifd0 = append(ifd0, ascii(tagDateTime, opts.DateTime))
	}
	if opts.DateTimeOriginal != "" {
		exifDir = append(exifDir, ascii(tagDateTimeOriginal, opts.DateTimeOriginal))
		ifd0 = append(ifd0, long(tagExifIFD, 0))
	}
	if opts.GPS != nil {
		latRef, lonRef := "N", "E"
		if opts.GPS.Lat < 0 {
			latRef = "S"
		}
		if opts.GPS.Lon < 0 {
			lonRef = "W"
		}
		gpsDir = ifd{
			ascii(tagGPSLatitudeRef, latRef),
			rationals(tagGPSLatitude, dms(opts.GPS.Lat)...),
			ascii(tagGPSLongitudeRef, lonRef),
			rationals(tagGPSLongitude, dms(opts.GPS.Lon)...),
		}
		ifd0 = append(ifd0, long(tagGPSIFD, 0))
	}

	exifOff := 8 + ifd0.size()
	gpsOff := exifOff + exifDir.size()
	for i := range ifd0 {
		switch ifd0[i].tag {
		case tagExifIFD:
			ifd0[i] = long(tagExifIFD, exifOff)
		case tagGPSIFD:
			ifd0[i] = long(tagGPSIFD, gpsOff)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("II")
	binary.Write(&buf, order, uint16(42))
	binary.Write(&buf, order, uint32(8))
	buf.Write(ifd0.encode(8))
	if len(exifDir) > 0 {
		buf.Write(exifDir.encode(exifOff))
	}
	if len(gpsDir) > 0 {
		buf.Write(gpsDir.encode(gpsOff))
	}
	return buf.Bytes()
}

// Encode writes img as a JPEG with an APP1 EXIF segment right after SOI.
func Encode(w io.Writer, img image.Image, opts Options) error {
	var plain bytes.Buffer
	if err := jpeg.Encode(&plain, img, &jpeg.Options{Quality: 95}); err != nil {
		return err
	}
	raw := plain.Bytes()

	payload := append([]byte("Exif\x00\x00"), TIFF(opts)...)
	seg := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	seg = append(seg, payload...)

	if _, err := w.Write(raw[:2]); err != nil {
		return err
	}
	if _, err := w.Write(seg); err != nil {
		return err
	}
	_, err := w.Write(raw[2:])
	return err
}

// WriteJPEG writes an EXIF-tagged JPEG to path, creating parent folders.
func WriteJPEG(t testing.TB, path string, img image.Image, opts Options) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := Encode(f, img, opts); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// Sharp returns colorful noise in 2x2 blocks, aligned with JPEG chroma
// subsampling, that passes every importance heuristic.
func Sharp(w, h int, seed int64) image.Image {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x += 2 {
			c := color.NRGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255}
			img.SetNRGBA(x, y, c)
			img.SetNRGBA(x+1, y, c)
			img.SetNRGBA(x, y+1, c)
			img.SetNRGBA(x+1, y+1, c)
		}
	}
	return img
}

// Flat returns a single-color image, which the blur heuristic rejects.
func Flat(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 128, 128, 128, 255
	}
	return img
}
