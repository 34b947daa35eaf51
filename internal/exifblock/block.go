// Package exifblock loads, encodes and embeds the EXIF block of JPEG files
// as a plain group -> tag -> value map.
package exifblock

import (
	"fmt"
	"sort"
)

// Group names of a Block.
const (
	Group0th     = "0th"
	GroupExif    = "Exif"
	GroupGPS     = "GPS"
	GroupInterop = "Interop"
	Group1st     = "1st"
)

// Tag ids touched by the normalizer.
const (
	TagDateTime          uint16 = 0x0132
	TagExifVersion       uint16 = 0x9000
	TagDateTimeOriginal  uint16 = 0x9003
	TagDateTimeDigitized uint16 = 0x9004
	TagBrightnessValue   uint16 = 0x9203
)

// Tuple is an ordered list of integers: a rational pair, an RGB-like
// triple or a multi-valued SHORT/LONG tag.
type Tuple []int64

// Tags maps tag ids to values. Values loaded from a file are int64,
// []byte, Tuple or []Tuple.
type Tags map[uint16]any

// Block is a decoded EXIF block.
type Block struct {
	Groups    map[string]Tags
	Thumbnail []byte
}

func New() *Block {
	return &Block{Groups: make(map[string]Tags)}
}

// Group returns the tags of the named group, creating it if needed.
func (b *Block) Group(name string) Tags {
	if b.Groups == nil {
		b.Groups = make(map[string]Tags)
	}
	g, ok := b.Groups[name]
	if !ok {
		g = make(Tags)
		b.Groups[name] = g
	}
	return g
}

// Lookup returns the value of a tag and whether it is present.
func (b *Block) Lookup(group string, tag uint16) (any, bool) {
	g, ok := b.Groups[group]
	if !ok {
		return nil, false
	}
	v, ok := g[tag]
	return v, ok
}

// Len counts tags over all groups.
func (b *Block) Len() int {
	n := 0
	for _, g := range b.Groups {
		n += len(g)
	}
	return n
}

func (t Tags) sortedIDs() []uint16 {
	ids := make([]uint16, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Text returns a value as a string when it is stored as text bytes.
func Text(v any) (string, error) {
	switch t := v.(type) {
	case []byte:
		end := len(t)
		for end > 0 && t[end-1] == 0 {
			end--
		}
		return string(t[:end]), nil
	case string:
		return t, nil
	default:
		return "", fmt.Errorf("value of type %T is not text", v)
	}
}
