package chunk

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// BlockType is a block state: a namespaced name plus string properties.
// Two block types are the same when their names and property sets match.
type BlockType struct {
	Name       string            `nbt:"Name"`
	Properties map[string]string `nbt:"Properties,omitempty"`
}

// Air is the block every fresh section is filled with.
var Air = BlockType{Name: "minecraft:air"}

// NewBlockType returns a block type with the given name and optional
// alternating key/value property pairs.
func NewBlockType(name string, kv ...string) BlockType {
	b := BlockType{Name: name}
	if len(kv) > 0 {
		b.Properties = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			b.Properties[kv[i]] = kv[i+1]
		}
	}
	return b
}

// ParseBlockType parses the text form produced by String, for example
// "minecraft:oak_log[axis=y]".
func ParseBlockType(s string) (BlockType, error) {
	s = strings.TrimSpace(s)
	name, rest, hasProps := strings.Cut(s, "[")
	if name == "" {
		return BlockType{}, fmt.Errorf("parse block %q: empty name", s)
	}
	b := BlockType{Name: name}
	if !hasProps {
		return b, nil
	}
	body, ok := strings.CutSuffix(rest, "]")
	if !ok {
		return BlockType{}, fmt.Errorf("parse block %q: missing ']'", s)
	}
	if body == "" {
		return b, nil
	}
	b.Properties = make(map[string]string)
	for _, pair := range strings.Split(body, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" {
			return BlockType{}, fmt.Errorf("parse block %q: bad property %q", s, pair)
		}
		b.Properties[k] = v
	}
	return b, nil
}

func (b BlockType) propertyKeys() []string {
	keys := make([]string, 0, len(b.Properties))
	for k := range b.Properties {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// String returns the canonical text form, name[k=v,...] with sorted keys.
// It doubles as the palette lookup key.
func (b BlockType) String() string {
	if len(b.Properties) == 0 {
		return b.Name
	}
	var sb strings.Builder
	sb.WriteString(b.Name)
	sb.WriteByte('[')
	for i, k := range b.propertyKeys() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(b.Properties[k])
	}
	sb.WriteByte(']')
	return sb.String()
}

// Equal reports whether b and o are the same block state.
func (b BlockType) Equal(o BlockType) bool {
	if b.Name != o.Name || len(b.Properties) != len(o.Properties) {
		return false
	}
	for k, v := range b.Properties {
		if ov, ok := o.Properties[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Compare orders block types by name, then by their sorted properties.
func (b BlockType) Compare(o BlockType) int {
	if c := cmp.Compare(b.Name, o.Name); c != 0 {
		return c
	}
	bkeys, okeys := b.propertyKeys(), o.propertyKeys()
	for i := 0; i < len(bkeys) && i < len(okeys); i++ {
		if c := cmp.Compare(bkeys[i], okeys[i]); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Properties[bkeys[i]], o.Properties[okeys[i]]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(bkeys), len(okeys))
}

func (b BlockType) clone() BlockType {
	if b.Properties == nil {
		return b
	}
	props := make(map[string]string, len(b.Properties))
	for k, v := range b.Properties {
		props[k] = v
	}
	return BlockType{Name: b.Name, Properties: props}
}
