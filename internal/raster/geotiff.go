package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/aquasite/internal/crs"
)

// TIFF and GeoTIFF tags.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagPredictor       = 317
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
	tagPixelScale      = 33550
	tagTiepoint        = 33922
	tagTransformation  = 34264
	tagGeoKeyDirectory = 34735
	tagGDALNoData      = 42113
)

// GeoKey IDs.
const (
	keyModelType     = 1024
	keyRasterType    = 1025
	keyGeographicCRS = 2048
	keyProjectedCRS  = 3072
	userDefined      = 32767
	rasterPixelPoint = 2
)

// TIFF field types.
const (
	typeByte   = 1
	typeASCII  = 2
	typeShort  = 3
	typeLong   = 4
	typeRation = 5
	typeSByte  = 6
	typeUndef  = 7
	typeSShort = 8
	typeSLong  = 9
	typeSRatio = 10
	typeFloat  = 11
	typeDouble = 12
)

// Compression and predictor schemes.
const (
	compressionNone       = 1
	compressionDeflate    = 8
	compressionDeflateOld = 32946
	predictorNone         = 1
	predictorHorizontal   = 2
)

// Sample formats.
const (
	sampleUint  = 1
	sampleInt   = 2
	sampleFloat = 3
)

var typeSizes = map[uint16]uint32{
	typeByte: 1, typeASCII: 1, typeSByte: 1, typeUndef: 1,
	typeShort: 2, typeSShort: 2,
	typeLong: 4, typeSLong: 4, typeFloat: 4,
	typeRation: 8, typeSRatio: 8, typeDouble: 8,
}

type ifdEntry struct {
	typ   uint16
	count uint32
	raw   []byte
}

type decoder struct {
	buf     []byte
	bo      binary.ByteOrder
	entries map[uint16]ifdEntry
}

// ReadGeoTIFF loads band 1 of a GeoTIFF file. The GDAL nodata value, when
// present, is mapped to NaN. The returned grid has a zero CRS when the file
// carries no EPSG GeoKey.
func ReadGeoTIFF(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", path)
	}
	g, err := DecodeGeoTIFF(data)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: decode %s", path)
	}
	zap.L().Debug("raster: read geotiff",
		zap.String("path", path),
		zap.Int("cols", g.Cols),
		zap.Int("rows", g.Rows),
		zap.Stringer("crs", g.CRS),
	)
	return g, nil
}

// DecodeGeoTIFF decodes a classic (non-BigTIFF) GeoTIFF held in memory.
func DecodeGeoTIFF(data []byte) (*Grid, error) {
	d := &decoder{buf: data}
	if err := d.readHeader(); err != nil {
		return nil, err
	}

	cols := int(d.scalar(tagImageWidth, 0))
	rows := int(d.scalar(tagImageLength, 0))
	if cols <= 0 || rows <= 0 {
		return nil, eris.New("raster: missing image dimensions")
	}
	if spp := d.scalar(tagSamplesPerPixel, 1); spp != 1 {
		return nil, eris.Errorf("raster: %d samples per pixel not supported", spp)
	}

	g, err := d.geoGrid(cols, rows)
	if err != nil {
		return nil, err
	}
	if err := d.readPixels(g); err != nil {
		return nil, err
	}

	if s, ok := d.ascii(tagGDALNoData); ok {
		nd, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil && !math.IsNaN(nd) {
			for i, v := range g.Data {
				if v == nd {
					g.Data[i] = math.NaN()
				}
			}
		}
	}
	return g, nil
}

func (d *decoder) readHeader() error {
	if len(d.buf) < 8 {
		return eris.New("raster: file too short for tiff header")
	}
	switch string(d.buf[:2]) {
	case "II":
		d.bo = binary.LittleEndian
	case "MM":
		d.bo = binary.BigEndian
	default:
		return eris.New("raster: not a tiff file")
	}
	switch magic := d.bo.Uint16(d.buf[2:4]); magic {
	case 42:
	case 43:
		return eris.New("raster: bigtiff not supported")
	default:
		return eris.Errorf("raster: bad tiff magic %d", magic)
	}

	off := d.bo.Uint32(d.buf[4:8])
	if uint64(off)+2 > uint64(len(d.buf)) {
		return eris.New("raster: ifd offset out of range")
	}
	n := uint32(d.bo.Uint16(d.buf[off:]))
	if uint64(off)+2+uint64(n)*12 > uint64(len(d.buf)) {
		return eris.New("raster: truncated ifd")
	}

	d.entries = make(map[uint16]ifdEntry, n)
	for i := uint32(0); i < n; i++ {
		p := off + 2 + i*12
		tag := d.bo.Uint16(d.buf[p:])
		typ := d.bo.Uint16(d.buf[p+2:])
		count := d.bo.Uint32(d.buf[p+4:])
		size, ok := typeSizes[typ]
		if !ok {
			continue
		}
		total := uint64(size) * uint64(count)
		var raw []byte
		if total <= 4 {
			raw = d.buf[p+8 : p+8+uint32(total)]
		} else {
			vo := uint64(d.bo.Uint32(d.buf[p+8:]))
			if vo+total > uint64(len(d.buf)) {
				return eris.Errorf("raster: tag %d value out of range", tag)
			}
			raw = d.buf[vo : vo+total]
		}
		d.entries[tag] = ifdEntry{typ: typ, count: count, raw: raw}
	}
	return nil
}

// uints returns an integer-typed tag's values.
func (d *decoder) uints(tag uint16) []uint64 {
	e, ok := d.entries[tag]
	if !ok {
		return nil
	}
	out := make([]uint64, 0, e.count)
	for i := uint32(0); i < e.count; i++ {
		switch e.typ {
		case typeByte, typeUndef:
			out = append(out, uint64(e.raw[i]))
		case typeShort:
			out = append(out, uint64(d.bo.Uint16(e.raw[i*2:])))
		case typeLong:
			out = append(out, uint64(d.bo.Uint32(e.raw[i*4:])))
		default:
			return nil
		}
	}
	return out
}

func (d *decoder) scalar(tag uint16, def uint64) uint64 {
	if v := d.uints(tag); len(v) > 0 {
		return v[0]
	}
	return def
}

// floats returns a numeric tag's values as float64.
func (d *decoder) floats(tag uint16) []float64 {
	e, ok := d.entries[tag]
	if !ok {
		return nil
	}
	out := make([]float64, 0, e.count)
	for i := uint32(0); i < e.count; i++ {
		switch e.typ {
		case typeDouble:
			out = append(out, math.Float64frombits(d.bo.Uint64(e.raw[i*8:])))
		case typeFloat:
			out = append(out, float64(math.Float32frombits(d.bo.Uint32(e.raw[i*4:]))))
		case typeRation:
			num, den := d.bo.Uint32(e.raw[i*8:]), d.bo.Uint32(e.raw[i*8+4:])
			out = append(out, float64(num)/float64(den))
		case typeShort:
			out = append(out, float64(d.bo.Uint16(e.raw[i*2:])))
		case typeLong:
			out = append(out, float64(d.bo.Uint32(e.raw[i*4:])))
		default:
			return nil
		}
	}
	return out
}

func (d *decoder) ascii(tag uint16) (string, bool) {
	e, ok := d.entries[tag]
	if !ok || e.typ != typeASCII {
		return "", false
	}
	return strings.TrimRight(string(e.raw), "\x00"), true
}

// geoGrid builds the grid geometry and CRS from the GeoTIFF tags.
func (d *decoder) geoGrid(cols, rows int) (*Grid, error) {
	keys := d.geoKeys()

	var originX, originY, resX, resY float64
	if m := d.floats(tagTransformation); len(m) == 16 {
		if m[1] != 0 || m[4] != 0 {
			return nil, eris.New("raster: rotated rasters not supported")
		}
		resX, resY = m[0], -m[5]
		originX, originY = m[3], m[7]
	} else {
		scale := d.floats(tagPixelScale)
		tie := d.floats(tagTiepoint)
		if len(scale) < 2 || len(tie) < 6 {
			return nil, eris.New("raster: missing georeferencing (pixel scale / tiepoint)")
		}
		resX, resY = scale[0], scale[1]
		originX = tie[3] - tie[0]*resX
		originY = tie[4] + tie[1]*resY
	}
	if keys[keyRasterType] == rasterPixelPoint {
		originX -= resX / 2
		originY += resY / 2
	}
	if !(resX > 0) || !(resY > 0) {
		return nil, eris.Errorf("raster: unsupported pixel size %gx%g", resX, resY)
	}

	var ref crs.CRS
	code := 0
	if c, ok := keys[keyProjectedCRS]; ok && c != userDefined {
		code = c
	} else if c, ok := keys[keyGeographicCRS]; ok && c != userDefined {
		code = c
	}
	if code != 0 {
		c, err := crs.FromEPSG(code)
		if err != nil {
			return nil, err
		}
		ref = c
	}

	return New(cols, rows, originX, originY, resX, resY, ref)
}

// geoKeys returns the short-valued GeoKeys.
func (d *decoder) geoKeys() map[int]int {
	out := map[int]int{}
	dir := d.uints(tagGeoKeyDirectory)
	if len(dir) < 4 {
		return out
	}
	n := int(dir[3])
	for i := 0; i < n && 4+i*4+3 < len(dir); i++ {
		k := dir[4+i*4:]
		if k[1] != 0 || k[2] != 1 {
			continue
		}
		out[int(k[0])] = int(k[3])
	}
	return out
}

// readPixels fills g from strip or tile chunks.
func (d *decoder) readPixels(g *Grid) error {
	bps := int(d.scalar(tagBitsPerSample, 1))
	format := int(d.scalar(tagSampleFormat, sampleUint))
	sample, err := sampleDecoder(d.bo, bps, format)
	if err != nil {
		return err
	}
	compression := d.scalar(tagCompression, compressionNone)
	predictor := d.scalar(tagPredictor, predictorNone)
	if predictor != predictorNone && (predictor != predictorHorizontal || format == sampleFloat) {
		return eris.Errorf("raster: predictor %d not supported for sample format %d", predictor, format)
	}
	bytesPer := bps / 8

	decode := func(offset, count uint64, width, height int) ([]byte, error) {
		if offset+count > uint64(len(d.buf)) {
			return nil, eris.New("raster: chunk out of range")
		}
		raw := d.buf[offset : offset+count]
		switch compression {
		case compressionNone:
			if predictor == predictorHorizontal {
				raw = append([]byte(nil), raw...)
			}
		case compressionDeflate, compressionDeflateOld:
			zr, err := zlib.NewReader(bytes.NewReader(raw))
			if err != nil {
				return nil, eris.Wrap(err, "raster: inflate chunk")
			}
			raw, err = io.ReadAll(zr)
			if err != nil {
				return nil, eris.Wrap(err, "raster: inflate chunk")
			}
		default:
			return nil, eris.Errorf("raster: compression %d not supported", compression)
		}
		need := width * height * bytesPer
		if len(raw) < need {
			return nil, eris.Errorf("raster: chunk has %d bytes, need %d", len(raw), need)
		}
		if predictor == predictorHorizontal {
			undoHorizontal(raw, d.bo, width, height, bytesPer)
		}
		return raw, nil
	}

	if tw := int(d.scalar(tagTileWidth, 0)); tw > 0 {
		th := int(d.scalar(tagTileLength, 0))
		offsets, counts := d.uints(tagTileOffsets), d.uints(tagTileByteCounts)
		across := (g.Cols + tw - 1) / tw
		down := (g.Rows + th - 1) / th
		if th <= 0 || len(offsets) < across*down || len(counts) < across*down {
			return eris.New("raster: incomplete tile layout")
		}
		for ty := 0; ty < down; ty++ {
			for tx := 0; tx < across; tx++ {
				i := ty*across + tx
				raw, err := decode(offsets[i], counts[i], tw, th)
				if err != nil {
					return err
				}
				for r := 0; r < th && ty*th+r < g.Rows; r++ {
					for c := 0; c < tw && tx*tw+c < g.Cols; c++ {
						g.Set(tx*tw+c, ty*th+r, sample(raw[(r*tw+c)*bytesPer:]))
					}
				}
			}
		}
		return nil
	}

	rps := int(d.scalar(tagRowsPerStrip, uint64(g.Rows)))
	if rps <= 0 || rps > g.Rows {
		rps = g.Rows
	}
	offsets, counts := d.uints(tagStripOffsets), d.uints(tagStripByteCounts)
	strips := (g.Rows + rps - 1) / rps
	if len(offsets) < strips || len(counts) < strips {
		return eris.New("raster: incomplete strip layout")
	}
	for s := 0; s < strips; s++ {
		height := min(rps, g.Rows-s*rps)
		raw, err := decode(offsets[s], counts[s], g.Cols, height)
		if err != nil {
			return err
		}
		for r := 0; r < height; r++ {
			for c := 0; c < g.Cols; c++ {
				g.Set(c, s*rps+r, sample(raw[(r*g.Cols+c)*bytesPer:]))
			}
		}
	}
	return nil
}

func sampleDecoder(bo binary.ByteOrder, bps, format int) (func([]byte) float64, error) {
	switch {
	case format == sampleFloat && bps == 32:
		return func(b []byte) float64 { return float64(math.Float32frombits(bo.Uint32(b))) }, nil
	case format == sampleFloat && bps == 64:
		return func(b []byte) float64 { return math.Float64frombits(bo.Uint64(b)) }, nil
	case format == sampleInt && bps == 8:
		return func(b []byte) float64 { return float64(int8(b[0])) }, nil
	case format == sampleInt && bps == 16:
		return func(b []byte) float64 { return float64(int16(bo.Uint16(b))) }, nil
	case format == sampleInt && bps == 32:
		return func(b []byte) float64 { return float64(int32(bo.Uint32(b))) }, nil
	case format == sampleUint && bps == 8:
		return func(b []byte) float64 { return float64(b[0]) }, nil
	case format == sampleUint && bps == 16:
		return func(b []byte) float64 { return float64(bo.Uint16(b)) }, nil
	case format == sampleUint && bps == 32:
		return func(b []byte) float64 { return float64(bo.Uint32(b)) }, nil
	}
	return nil, eris.Errorf("raster: %d-bit sample format %d not supported", bps, format)
}

// undoHorizontal reverses TIFF horizontal differencing on integer samples.
func undoHorizontal(raw []byte, bo binary.ByteOrder, width, height, bytesPer int) {
	for r := 0; r < height; r++ {
		row := raw[r*width*bytesPer:]
		for c := 1; c < width; c++ {
			cur, prev := row[c*bytesPer:], row[(c-1)*bytesPer:]
			switch bytesPer {
			case 1:
				cur[0] += prev[0]
			case 2:
				bo.PutUint16(cur, bo.Uint16(cur)+bo.Uint16(prev))
			case 4:
				bo.PutUint32(cur, bo.Uint32(cur)+bo.Uint32(prev))
			}
		}
	}
}
