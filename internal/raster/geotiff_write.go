package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
)

// stripTargetBytes bounds the uncompressed size of one strip.
const stripTargetBytes = 64 << 10

// WriteOptions configures GeoTIFF output.
type WriteOptions struct {
	Deflate bool
}

type tiffTag struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func shortTag(tag uint16, vals ...uint16) tiffTag {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[i*2:], v)
	}
	return tiffTag{tag: tag, typ: typeShort, count: uint32(len(vals)), data: b}
}

func longTag(tag uint16, vals ...uint32) tiffTag {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return tiffTag{tag: tag, typ: typeLong, count: uint32(len(vals)), data: b}
}

func doubleTag(tag uint16, vals ...float64) tiffTag {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return tiffTag{tag: tag, typ: typeDouble, count: uint32(len(vals)), data: b}
}

func asciiTag(tag uint16, s string) tiffTag {
	b := append([]byte(s), 0)
	return tiffTag{tag: tag, typ: typeASCII, count: uint32(len(b)), data: b}
}

// WriteGeoTIFF writes g as a single-band float32 GeoTIFF, creating parent
// directories as needed.
func WriteGeoTIFF(path string, g *Grid, opts WriteOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "raster: create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "raster: create %s", path)
	}
	if err := EncodeGeoTIFF(f, g, opts); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "raster: write %s", path)
	}
	return eris.Wrapf(f.Close(), "raster: close %s", path)
}

// EncodeGeoTIFF encodes g as a little-endian float32 GeoTIFF. NaN cells are
// written as NaN and flagged through the GDAL nodata tag.
func EncodeGeoTIFF(w io.Writer, g *Grid, opts WriteOptions) error {
	rps := max(1, stripTargetBytes/(g.Cols*4))
	if rps > g.Rows {
		rps = g.Rows
	}
	strips := (g.Rows + rps - 1) / rps

	chunks := make([][]byte, strips)
	counts := make([]uint32, strips)
	for s := 0; s < strips; s++ {
		height := min(rps, g.Rows-s*rps)
		raw := make([]byte, g.Cols*height*4)
		for r := 0; r < height; r++ {
			for c := 0; c < g.Cols; c++ {
				v := float32(g.At(c, s*rps+r))
				binary.LittleEndian.PutUint32(raw[(r*g.Cols+c)*4:], math.Float32bits(v))
			}
		}
		if opts.Deflate {
			var buf bytes.Buffer
			zw := zlib.NewWriter(&buf)
			if _, err := zw.Write(raw); err != nil {
				return eris.Wrap(err, "raster: deflate strip")
			}
			if err := zw.Close(); err != nil {
				return eris.Wrap(err, "raster: deflate strip")
			}
			raw = buf.Bytes()
		}
		chunks[s] = raw
		counts[s] = uint32(len(raw))
	}

	compression := uint16(compressionNone)
	if opts.Deflate {
		compression = compressionDeflate
	}

	tags := []tiffTag{
		longTag(tagImageWidth, uint32(g.Cols)),
		longTag(tagImageLength, uint32(g.Rows)),
		shortTag(tagBitsPerSample, 32),
		shortTag(tagCompression, compression),
		shortTag(tagPhotometric, 1),
		longTag(tagStripOffsets, make([]uint32, strips)...),
		shortTag(tagSamplesPerPixel, 1),
		longTag(tagRowsPerStrip, uint32(rps)),
		longTag(tagStripByteCounts, counts...),
		shortTag(tagPlanarConfig, 1),
		shortTag(tagSampleFormat, sampleFloat),
		doubleTag(tagPixelScale, g.ResX, g.ResY, 0),
		doubleTag(tagTiepoint, 0, 0, 0, g.OriginX, g.OriginY, 0),
		asciiTag(tagGDALNoData, "nan"),
	}
	if keys := geoKeyDirectory(g); keys != nil {
		tags = append(tags, shortTag(tagGeoKeyDirectory, keys...))
	}

	_, err := w.Write(assemble(tags, tagStripOffsets, chunks))
	return eris.Wrap(err, "raster: write tiff")
}

// geoKeyDirectory encodes the EPSG code of g's CRS, or returns nil when the CRS
// has no code.
func geoKeyDirectory(g *Grid) []uint16 {
	if g.CRS.EPSG == 0 {
		return nil
	}
	modelType, crsKey := uint16(1), uint16(keyProjectedCRS)
	if g.CRS.Geographic() {
		modelType, crsKey = 2, keyGeographicCRS
	}
	return []uint16{
		1, 1, 0, 3,
		keyModelType, 0, 1, modelType,
		keyRasterType, 0, 1, 1,
		crsKey, 0, 1, uint16(g.CRS.EPSG),
	}
}

// assemble lays out a little-endian TIFF with one IFD. Tag values longer than
// four bytes follow the IFD, then the chunks; the offsets tag is filled with
// the chunk positions.
func assemble(tags []tiffTag, offsetsTag uint16, chunks [][]byte) []byte {
	sort.Slice(tags, func(i, j int) bool { return tags[i].tag < tags[j].tag })

	ifdSize := 2 + 12*len(tags) + 4
	next := uint32(8 + ifdSize)
	valueAt := make([]uint32, len(tags))
	for i, t := range tags {
		if len(t.data) > 4 {
			valueAt[i] = next
			next += uint32(len(t.data) + len(t.data)%2)
		}
	}
	chunkAt := make([]uint32, len(chunks))
	for i, c := range chunks {
		chunkAt[i] = next
		next += uint32(len(c))
	}
	for i := range tags {
		if tags[i].tag == offsetsTag {
			tags[i] = longTag(offsetsTag, chunkAt...)
		}
	}

	var buf bytes.Buffer
	buf.Grow(int(next))
	le := binary.LittleEndian
	buf.WriteString("II")
	_ = binary.Write(&buf, le, uint16(42))
	_ = binary.Write(&buf, le, uint32(8))
	_ = binary.Write(&buf, le, uint16(len(tags)))
	for i, t := range tags {
		_ = binary.Write(&buf, le, t.tag)
		_ = binary.Write(&buf, le, t.typ)
		_ = binary.Write(&buf, le, t.count)
		if len(t.data) > 4 {
			_ = binary.Write(&buf, le, valueAt[i])
			continue
		}
		var inline [4]byte
		copy(inline[:], t.data)
		buf.Write(inline[:])
	}
	_ = binary.Write(&buf, le, uint32(0))
	for _, t := range tags {
		if len(t.data) > 4 {
			buf.Write(t.data)
			if len(t.data)%2 == 1 {
				buf.WriteByte(0)
			}
		}
	}
	for _, c := range chunks {
		buf.Write(c)
	}
	return buf.Bytes()
}
