package exifblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
)

// ErrUnsupportedValue is returned by Dump for values that cannot be encoded
// for their tag.
var ErrUnsupportedValue = errors.New("unsupported exif value")

const exifPrefix = "Exif\x00\x00"

// Tags that are rebuilt by the encoder itself and never copied verbatim.
var structuralTags = map[uint16]bool{
	0x8769: true, // Exif IFD pointer
	0x8825: true, // GPS IFD pointer
	0xa005: true, // Interop IFD pointer
	0x0201: true, // thumbnail offset
	0x0202: true, // thumbnail length
}

// Codec reads and writes EXIF blocks of JPEG files.
type Codec struct {
	mapping *exifcommon.IfdMapping
	index   *exif.TagIndex
	order   binary.ByteOrder
}

func NewCodec() (*Codec, error) {
	im := exifcommon.NewIfdMapping()
	if err := exifcommon.LoadStandardIfds(im); err != nil {
		return nil, fmt.Errorf("loading standard IFDs: %w", err)
	}
	return &Codec{
		mapping: im,
		index:   exif.NewTagIndex(),
		order:   exifcommon.EncodeDefaultByteOrder,
	}, nil
}

// Load reads the EXIF block of the JPEG at path. A JPEG without an EXIF
// segment yields an empty block.
func (c *Codec) Load(path string) (b *Block, err error) {
	defer recoverInto(&err, "loading exif")

	sl, err := parseJPEG(path)
	if err != nil {
		return nil, err
	}
	_, s, err := sl.FindExif()
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return New(), nil
		}
		return nil, fmt.Errorf("locating exif segment: %w", err)
	}
	if len(s.Data) < len(exifPrefix) {
		return nil, fmt.Errorf("exif segment too short (%d bytes)", len(s.Data))
	}
	return c.Decode(s.Data[len(exifPrefix):])
}

// Decode parses raw EXIF data (starting at the TIFF header).
func (c *Codec) Decode(rawExif []byte) (b *Block, err error) {
	defer recoverInto(&err, "decoding exif")

	_, index, err := exif.Collect(c.mapping, c.index, rawExif)
	if err != nil {
		return nil, fmt.Errorf("collecting exif: %w", err)
	}

	b = New()
	root := index.RootIfd
	if root == nil {
		return b, nil
	}
	collectIfd(b, Group0th, root)

	if ifd1 := root.NextIfd(); ifd1 != nil {
		collectIfd(b, Group1st, ifd1)
		if thumb, err := ifd1.Thumbnail(); err == nil {
			b.Thumbnail = bytes.Clone(thumb)
		}
	}
	return b, nil
}

func collectIfd(b *Block, group string, ifd *exif.Ifd) {
	tags := b.Group(group)
	for _, ite := range ifd.Entries() {
		if ite.ChildIfdPath() != "" || structuralTags[ite.TagId()] {
			continue
		}
		v, err := decodeEntry(ite)
		if err != nil {
			// unreadable tags are dropped, like the validator would
			continue
		}
		tags[ite.TagId()] = v
	}
	for _, child := range ifd.Children() {
		name, ok := childGroup(child.IfdIdentity())
		if !ok {
			continue
		}
		collectIfd(b, name, child)
	}
}

func childGroup(ii *exifcommon.IfdIdentity) (string, bool) {
	switch ii.UnindexedString() {
	case exifcommon.IfdExifStandardIfdIdentity.UnindexedString():
		return GroupExif, true
	case exifcommon.IfdGpsInfoStandardIfdIdentity.UnindexedString():
		return GroupGPS, true
	case exifcommon.IfdExifIopStandardIfdIdentity.UnindexedString():
		return GroupInterop, true
	}
	return "", false
}

func decodeEntry(ite *exif.IfdTagEntry) (any, error) {
	switch ite.TagType() {
	case exifcommon.TypeByte, exifcommon.TypeUndefined:
		raw, err := ite.GetRawBytes()
		if err != nil {
			return nil, err
		}
		return bytes.Clone(raw), nil
	}

	v, err := ite.Value()
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case string:
		return []byte(t), nil
	case []uint16:
		return integers(t), nil
	case []uint32:
		return integers(t), nil
	case []int32:
		return integers(t), nil
	case []exifcommon.Rational:
		out := make([]Tuple, len(t))
		for i, r := range t {
			out[i] = Tuple{int64(r.Numerator), int64(r.Denominator)}
		}
		if len(out) == 1 {
			return out[0], nil
		}
		return out, nil
	case []exifcommon.SignedRational:
		out := make([]Tuple, len(t))
		for i, r := range t {
			out[i] = Tuple{int64(r.Numerator), int64(r.Denominator)}
		}
		if len(out) == 1 {
			return out[0], nil
		}
		return out, nil
	case []float32:
		if len(t) == 1 {
			return float64(t[0]), nil
		}
		out := make([]float64, len(t))
		for i, f := range t {
			out[i] = float64(f)
		}
		return out, nil
	case []float64:
		if len(t) == 1 {
			return t[0], nil
		}
		return t, nil
	default:
		return v, nil
	}
}

func integers[T uint16 | uint32 | int32](vs []T) any {
	if len(vs) == 1 {
		return int64(vs[0])
	}
	out := make(Tuple, len(vs))
	for i, v := range vs {
		out[i] = int64(v)
	}
	return out
}

// Dump encodes a block into raw EXIF data. It fails on the first value that
// cannot be encoded for its tag.
func (c *Codec) Dump(b *Block) (data []byte, err error) {
	defer recoverInto(&err, "encoding exif")

	root, err := c.builder(b)
	if err != nil {
		return nil, err
	}
	ibe := exif.NewIfdByteEncoder()
	data, err = ibe.EncodeToExif(root)
	if err != nil {
		return nil, fmt.Errorf("encoding exif: %w", err)
	}
	return data, nil
}

func (c *Codec) newBuilder(ii *exifcommon.IfdIdentity) *exif.IfdBuilder {
	return exif.NewIfdBuilder(c.mapping, c.index, ii, c.order)
}

func (c *Codec) builder(b *Block) (*exif.IfdBuilder, error) {
	root := c.newBuilder(exifcommon.IfdStandardIfdIdentity)
	if err := c.addTags(root, exifcommon.IfdStandardIfdIdentity, b.Groups[Group0th]); err != nil {
		return nil, fmt.Errorf("group %s: %w", Group0th, err)
	}

	exifTags, iopTags := b.Groups[GroupExif], b.Groups[GroupInterop]
	if len(exifTags) > 0 || len(iopTags) > 0 {
		exifIb := c.newBuilder(exifcommon.IfdExifStandardIfdIdentity)
		if err := c.addTags(exifIb, exifcommon.IfdExifStandardIfdIdentity, exifTags); err != nil {
			return nil, fmt.Errorf("group %s: %w", GroupExif, err)
		}
		if len(iopTags) > 0 {
			iopIb := c.newBuilder(exifcommon.IfdExifIopStandardIfdIdentity)
			if err := c.addTags(iopIb, exifcommon.IfdExifIopStandardIfdIdentity, iopTags); err != nil {
				return nil, fmt.Errorf("group %s: %w", GroupInterop, err)
			}
			if err := exifIb.AddChildIb(iopIb); err != nil {
				return nil, fmt.Errorf("attaching %s: %w", GroupInterop, err)
			}
		}
		if err := root.AddChildIb(exifIb); err != nil {
			return nil, fmt.Errorf("attaching %s: %w", GroupExif, err)
		}
	}

	if gpsTags := b.Groups[GroupGPS]; len(gpsTags) > 0 {
		gpsIb := c.newBuilder(exifcommon.IfdGpsInfoStandardIfdIdentity)
		if err := c.addTags(gpsIb, exifcommon.IfdGpsInfoStandardIfdIdentity, gpsTags); err != nil {
			return nil, fmt.Errorf("group %s: %w", GroupGPS, err)
		}
		if err := root.AddChildIb(gpsIb); err != nil {
			return nil, fmt.Errorf("attaching %s: %w", GroupGPS, err)
		}
	}

	if ifd1Tags := b.Groups[Group1st]; len(ifd1Tags) > 0 || len(b.Thumbnail) > 0 {
		ifd1 := c.newBuilder(exifcommon.Ifd1StandardIfdIdentity)
		if err := c.addTags(ifd1, exifcommon.Ifd1StandardIfdIdentity, ifd1Tags); err != nil {
			return nil, fmt.Errorf("group %s: %w", Group1st, err)
		}
		if len(b.Thumbnail) > 0 {
			if err := ifd1.SetThumbnail(b.Thumbnail); err != nil {
				return nil, fmt.Errorf("setting thumbnail: %w", err)
			}
		}
		if err := root.SetNextIb(ifd1); err != nil {
			return nil, fmt.Errorf("attaching %s: %w", Group1st, err)
		}
	}

	return root, nil
}

func (c *Codec) addTags(ib *exif.IfdBuilder, ii *exifcommon.IfdIdentity, tags Tags) error {
	for _, id := range tags.sortedIDs() {
		if structuralTags[id] {
			continue
		}
		typ, raw, err := c.encodeValue(ii, id, tags[id])
		if err != nil {
			return fmt.Errorf("tag 0x%04x: %w", id, err)
		}
		bt := exif.NewBuilderTag(ii.UnindexedString(), id, typ, exif.NewIfdBuilderTagValueFromBytes(raw), c.order)
		if err := ib.Add(bt); err != nil {
			return fmt.Errorf("tag 0x%04x: %w", id, err)
		}
	}
	return nil
}

// supportedTypes returns the standard types of a tag, or nil if the tag is
// not in the index.
func (c *Codec) supportedTypes(ii *exifcommon.IfdIdentity, id uint16) []exifcommon.TagTypePrimitive {
	it, err := c.index.Get(ii, id)
	if err != nil || it == nil {
		return nil
	}
	return it.SupportedTypes
}

func (c *Codec) encodeValue(ii *exifcommon.IfdIdentity, id uint16, v any) (exifcommon.TagTypePrimitive, []byte, error) {
	types := c.supportedTypes(ii, id)
	enc := exifcommon.NewValueEncoder(c.order)

	switch t := v.(type) {
	case int:
		return encodeIntegers(enc, types, Tuple{int64(t)})
	case int64:
		return encodeIntegers(enc, types, Tuple{t})
	case Tuple:
		if len(t) == 0 {
			return 0, nil, fmt.Errorf("%w: empty tuple", ErrUnsupportedValue)
		}
		return encodeIntegers(enc, types, t)
	case []Tuple:
		return encodeRationals(enc, types, t)
	case []byte:
		return encodeBytes(enc, types, t)
	default:
		return 0, nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func fits(vals Tuple, lo, hi int64) bool {
	for _, v := range vals {
		if v < lo || v > hi {
			return false
		}
	}
	return true
}

func encodeIntegers(enc *exifcommon.ValueEncoder, types []exifcommon.TagTypePrimitive, vals Tuple) (exifcommon.TagTypePrimitive, []byte, error) {
	if len(types) == 0 {
		switch {
		case len(vals) == 2 && fits(vals, 0, math.MaxUint32):
			types = []exifcommon.TagTypePrimitive{exifcommon.TypeRational}
		case fits(vals, 0, math.MaxUint32):
			types = []exifcommon.TagTypePrimitive{exifcommon.TypeLong}
		default:
			types = []exifcommon.TagTypePrimitive{exifcommon.TypeSignedLong}
		}
	}

	for _, typ := range types {
		var value any
		switch typ {
		case exifcommon.TypeByte, exifcommon.TypeUndefined:
			if fits(vals, 0, math.MaxUint8) {
				raw := make([]byte, len(vals))
				for i, v := range vals {
					raw[i] = byte(v)
				}
				return typ, raw, nil
			}
		case exifcommon.TypeShort:
			if fits(vals, 0, math.MaxUint16) {
				out := make([]uint16, len(vals))
				for i, v := range vals {
					out[i] = uint16(v)
				}
				value = out
			}
		case exifcommon.TypeLong:
			if fits(vals, 0, math.MaxUint32) {
				out := make([]uint32, len(vals))
				for i, v := range vals {
					out[i] = uint32(v)
				}
				value = out
			}
		case exifcommon.TypeSignedLong:
			if fits(vals, math.MinInt32, math.MaxInt32) {
				out := make([]int32, len(vals))
				for i, v := range vals {
					out[i] = int32(v)
				}
				value = out
			}
		case exifcommon.TypeRational:
			if fits(vals, 0, math.MaxUint32) {
				switch len(vals) {
				case 1:
					value = []exifcommon.Rational{{Numerator: uint32(vals[0]), Denominator: 1}}
				case 2:
					value = []exifcommon.Rational{{Numerator: uint32(vals[0]), Denominator: uint32(vals[1])}}
				}
			}
		case exifcommon.TypeSignedRational:
			if fits(vals, math.MinInt32, math.MaxInt32) {
				switch len(vals) {
				case 1:
					value = []exifcommon.SignedRational{{Numerator: int32(vals[0]), Denominator: 1}}
				case 2:
					value = []exifcommon.SignedRational{{Numerator: int32(vals[0]), Denominator: int32(vals[1])}}
				}
			}
		}
		if value == nil {
			continue
		}
		ed, err := enc.Encode(value)
		if err != nil {
			return 0, nil, err
		}
		return typ, ed.Encoded, nil
	}
	return 0, nil, fmt.Errorf("%w: integers %v do not fit types %v", ErrUnsupportedValue, vals, types)
}

func encodeRationals(enc *exifcommon.ValueEncoder, types []exifcommon.TagTypePrimitive, vals []Tuple) (exifcommon.TagTypePrimitive, []byte, error) {
	if len(vals) == 0 {
		return 0, nil, fmt.Errorf("%w: empty rational list", ErrUnsupportedValue)
	}
	for _, r := range vals {
		if len(r) != 2 {
			return 0, nil, fmt.Errorf("%w: rational %v is not a pair", ErrUnsupportedValue, r)
		}
	}
	if len(types) == 0 {
		types = []exifcommon.TagTypePrimitive{exifcommon.TypeRational, exifcommon.TypeSignedRational}
	}

	for _, typ := range types {
		var value any
		switch typ {
		case exifcommon.TypeRational:
			out := make([]exifcommon.Rational, len(vals))
			ok := true
			for i, r := range vals {
				if !fits(r, 0, math.MaxUint32) {
					ok = false
					break
				}
				out[i] = exifcommon.Rational{Numerator: uint32(r[0]), Denominator: uint32(r[1])}
			}
			if ok {
				value = out
			}
		case exifcommon.TypeSignedRational:
			out := make([]exifcommon.SignedRational, len(vals))
			ok := true
			for i, r := range vals {
				if !fits(r, math.MinInt32, math.MaxInt32) {
					ok = false
					break
				}
				out[i] = exifcommon.SignedRational{Numerator: int32(r[0]), Denominator: int32(r[1])}
			}
			if ok {
				value = out
			}
		}
		if value == nil {
			continue
		}
		ed, err := enc.Encode(value)
		if err != nil {
			return 0, nil, err
		}
		return typ, ed.Encoded, nil
	}
	return 0, nil, fmt.Errorf("%w: rationals do not fit types %v", ErrUnsupportedValue, types)
}

func encodeBytes(enc *exifcommon.ValueEncoder, types []exifcommon.TagTypePrimitive, raw []byte) (exifcommon.TagTypePrimitive, []byte, error) {
	if len(types) == 0 {
		return exifcommon.TypeUndefined, raw, nil
	}
	for _, typ := range types {
		switch typ {
		case exifcommon.TypeUndefined, exifcommon.TypeByte:
			return typ, raw, nil
		case exifcommon.TypeAscii, exifcommon.TypeAsciiNoNul:
			s, _ := Text(raw)
			ed, err := enc.Encode(s)
			if err != nil {
				return 0, nil, err
			}
			return exifcommon.TypeAscii, ed.Encoded, nil
		}
	}
	return 0, nil, fmt.Errorf("%w: bytes for types %v", ErrUnsupportedValue, types)
}

// Insert replaces the EXIF segment of the JPEG at path with data (as
// produced by Dump), adding a segment if the file has none. The file is
// rewritten through a temporary file in the same directory.
func (c *Codec) Insert(data []byte, path string) (err error) {
	defer recoverInto(&err, "embedding exif")

	sl, err := parseJPEG(path)
	if err != nil {
		return err
	}

	_, s, err := sl.FindExif()
	if err != nil {
		// let the library place an empty APP1 segment, then fill it
		if err := sl.SetExif(c.newBuilder(exifcommon.IfdStandardIfdIdentity)); err != nil {
			return fmt.Errorf("adding exif segment: %w", err)
		}
		if _, s, err = sl.FindExif(); err != nil {
			return fmt.Errorf("locating new exif segment: %w", err)
		}
	}

	segment := make([]byte, 0, len(exifPrefix)+len(data))
	segment = append(segment, exifPrefix...)
	s.Data = append(segment, data...)

	return writeFileAtomic(path, sl.Write)
}

func parseJPEG(path string) (*jpegstructure.SegmentList, error) {
	jmp := jpegstructure.NewJpegMediaParser()
	intfc, err := jmp.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing jpeg %s: %w", filepath.Base(path), err)
	}
	sl, ok := intfc.(*jpegstructure.SegmentList)
	if !ok {
		return nil, fmt.Errorf("parsing jpeg %s: unexpected result %T", filepath.Base(path), intfc)
	}
	return sl, nil
}

// writeFileAtomic writes through a temp file and renames it over path.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".chronofix-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func recoverInto(err *error, op string) {
	if state := recover(); state != nil {
		*err = fmt.Errorf("%s: %v", op, state)
	}
}
