package decoder

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/chainscope/logdecoder/pkg/abi"
	"github.com/chainscope/logdecoder/pkg/utils"
)

const wordSize = 32

// DecodeError is the row-level failure class: insufficient data for a
// declared size, a length or offset word pointing outside the buffer, or
// an unsupported type string. It is never fatal to the pipeline.
type DecodeError struct {
	Message string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: %s", e.Message)
}

func decodeErrorf(format string, args ...any) *DecodeError {
	return &DecodeError{Message: fmt.Sprintf(format, args...)}
}

var (
	fixedBytesRegex = regexp.MustCompile(`^bytes([0-9]+)$`)
	arrayTypeRegex  = regexp.MustCompile(`^(.+)\[([0-9]*)\]$`)
	intTypeRegex    = regexp.MustCompile(`^u?int([0-9]*)$`)
)

// parseArrayType splits a type string into its element type and declared
// length. Length 0 with ok=true means a dynamic array.
func parseArrayType(t string) (elem string, length int, ok bool) {
	m := arrayTypeRegex.FindStringSubmatch(t)
	if m == nil {
		return "", 0, false
	}
	length = 0
	if m[2] != "" {
		length, _ = strconv.Atoi(m[2])
	}
	return m[1], length, true
}

// elementInput derives the abi.Input describing one element of an array
// input. Tuple components carry over unchanged.
func elementInput(input abi.Input, elemType string) abi.Input {
	return abi.Input{
		Name:       input.Name,
		Type:       elemType,
		Components: input.Components,
	}
}

// isDynamic reports whether a type uses tail encoding: bytes, string, any
// T[], fixed arrays of dynamic elements, and tuples with a dynamic
// component.
func isDynamic(input abi.Input) bool {
	t := input.Type
	if t == "bytes" || t == "string" {
		return true
	}
	if elem, length, ok := parseArrayType(t); ok {
		if length == 0 {
			return true
		}
		return isDynamic(elementInput(input, elem))
	}
	if strings.HasPrefix(t, "tuple") {
		for _, c := range input.Components {
			if isDynamic(c) {
				return true
			}
		}
	}
	return false
}

func readWord(buf []byte, offset int) ([]byte, error) {
	if offset < 0 || offset+wordSize > len(buf) {
		return nil, decodeErrorf("insufficient data reading 32 bytes at offset %d (buffer %d)", offset, len(buf))
	}
	return buf[offset : offset+wordSize], nil
}

// readLength reads a length/offset word as a bounded int. Values past the
// buffer are rejected so a corrupt word cannot drive a huge allocation.
func readLength(buf []byte, offset int) (int, error) {
	word, err := readWord(buf, offset)
	if err != nil {
		return 0, err
	}
	n := new(big.Int).SetBytes(word)
	if !n.IsUint64() || n.Uint64() > uint64(len(buf)) {
		return 0, decodeErrorf("length word %s exceeds buffer size %d", n.String(), len(buf))
	}
	return int(n.Uint64()), nil
}

// DecodeValues decodes a typed value sequence from ABI-encoded hex data
// using the head/tail layout: static values sit contiguously in the head,
// dynamic values hang off byte offsets relative to the start of the
// region.
func (d *Decoder) DecodeValues(inputs []abi.Input, data string) ([]Value, error) {
	buf, err := utils.HexToBytes(data)
	if err != nil {
		return nil, decodeErrorf("bad hex data: %v", err)
	}
	return d.decodeRegion(inputs, buf)
}

// decodeRegion runs the head/tail walk over one tuple region. Offsets
// inside the region are relative to its first byte.
func (d *Decoder) decodeRegion(inputs []abi.Input, region []byte) ([]Value, error) {
	values := make([]Value, len(inputs))

	type dynamicSlot struct {
		index  int
		offset int
	}
	dynamics := make([]dynamicSlot, 0)

	cursor := 0
	for i, input := range inputs {
		if isDynamic(input) {
			offset, err := readLength(region, cursor)
			if err != nil {
				return nil, err
			}
			dynamics = append(dynamics, dynamicSlot{index: i, offset: offset})
			cursor += wordSize
			continue
		}
		v, next, err := d.decodeStatic(input, region, cursor)
		if err != nil {
			return nil, err
		}
		values[i] = v
		cursor = next
	}

	for _, slot := range dynamics {
		v, err := d.decodeDynamic(inputs[slot.index], region, slot.offset)
		if err != nil {
			return nil, err
		}
		values[slot.index] = v
	}

	return values, nil
}

// decodeStatic decodes a static value in place and returns the cursor
// after it.
func (d *Decoder) decodeStatic(input abi.Input, buf []byte, offset int) (Value, int, error) {
	t := input.Type

	if elem, length, ok := parseArrayType(t); ok {
		elemIn := elementInput(input, elem)
		list := make(ListValue, 0, length)
		cursor := offset
		for i := 0; i < length; i++ {
			v, next, err := d.decodeStatic(elemIn, buf, cursor)
			if err != nil {
				return nil, 0, err
			}
			list = append(list, v)
			cursor = next
		}
		return list, cursor, nil
	}

	if strings.HasPrefix(t, "tuple") {
		tuple := NewTupleValue()
		cursor := offset
		for i, c := range input.Components {
			v, next, err := d.decodeStatic(c, buf, cursor)
			if err != nil {
				return nil, 0, err
			}
			tuple.Set(componentKey(c, i), v)
			cursor = next
		}
		return tuple, cursor, nil
	}

	v, err := d.decodeScalarWord(input, buf, offset)
	if err != nil {
		return nil, 0, err
	}
	return v, offset + wordSize, nil
}

// decodeDynamic decodes a dynamic value whose body starts at offset
// within buf.
func (d *Decoder) decodeDynamic(input abi.Input, buf []byte, offset int) (Value, error) {
	t := input.Type

	switch t {
	case "bytes":
		b, err := d.decodeDynamicBytes(buf, offset)
		if err != nil {
			return nil, err
		}
		return BytesValue(b), nil
	case "string":
		b, err := d.decodeDynamicBytes(buf, offset)
		if err != nil {
			return nil, err
		}
		if d.config.StrictUTF8 && !utf8.Valid(b) {
			return nil, decodeErrorf("string value at offset %d is not valid UTF-8", offset)
		}
		return StringValue(b), nil
	}

	if elem, length, ok := parseArrayType(t); ok {
		body := offset
		if length == 0 {
			// Dynamic array: length word, then the packed body
			var err error
			length, err = readLength(buf, offset)
			if err != nil {
				return nil, err
			}
			body = offset + wordSize
		}
		return d.decodeArrayBody(elementInput(input, elem), buf, body, length)
	}

	if strings.HasPrefix(t, "tuple") {
		if offset < 0 || offset > len(buf) {
			return nil, decodeErrorf("tuple offset %d outside buffer of %d bytes", offset, len(buf))
		}
		values, err := d.decodeRegion(input.Components, buf[offset:])
		if err != nil {
			return nil, err
		}
		tuple := NewTupleValue()
		for i, c := range input.Components {
			tuple.Set(componentKey(c, i), values[i])
		}
		return tuple, nil
	}

	return nil, decodeErrorf("type %q is not dynamic", t)
}

// decodeArrayBody decodes length packed elements starting at body. When
// the element type is dynamic each head slot holds an offset relative to
// the array body.
func (d *Decoder) decodeArrayBody(elemIn abi.Input, buf []byte, body int, length int) (Value, error) {
	list := make(ListValue, 0, length)

	if isDynamic(elemIn) {
		for i := 0; i < length; i++ {
			rel, err := readLength(buf[body:], i*wordSize)
			if err != nil {
				return nil, err
			}
			v, err := d.decodeDynamic(elemIn, buf[body:], rel)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	}

	cursor := body
	for i := 0; i < length; i++ {
		v, next, err := d.decodeStatic(elemIn, buf, cursor)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
		cursor = next
	}
	return list, nil
}

func (d *Decoder) decodeDynamicBytes(buf []byte, offset int) ([]byte, error) {
	length, err := readLength(buf, offset)
	if err != nil {
		return nil, err
	}
	start := offset + wordSize
	if start+length > len(buf) {
		return nil, decodeErrorf("bytes length %d at offset %d exceeds buffer of %d bytes", length, offset, len(buf))
	}
	out := make([]byte, length)
	copy(out, buf[start:start+length])
	return out, nil
}

// decodeScalarWord decodes one 32-byte word as a scalar of the input's
// declared type.
func (d *Decoder) decodeScalarWord(input abi.Input, buf []byte, offset int) (Value, error) {
	t := input.Type
	word, err := readWord(buf, offset)
	if err != nil {
		return nil, err
	}

	switch {
	case t == "address":
		return StringValue(utils.ConvertBytesToString(word[wordSize-20:])), nil
	case t == "bool":
		for _, b := range word {
			if b != 0 {
				return BoolValue(true), nil
			}
		}
		return BoolValue(false), nil
	case strings.HasPrefix(t, "uint"):
		if !intTypeRegex.MatchString(t) {
			return nil, decodeErrorf("unsupported type %q", t)
		}
		return IntValue(new(big.Int).SetBytes(word).String()), nil
	case strings.HasPrefix(t, "int"):
		if !intTypeRegex.MatchString(t) {
			return nil, decodeErrorf("unsupported type %q", t)
		}
		return IntValue(decodeSignedWord(word)), nil
	}

	if m := fixedBytesRegex.FindStringSubmatch(t); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n < 1 || n > wordSize {
			return nil, decodeErrorf("unsupported type %q", t)
		}
		out := make([]byte, n)
		copy(out, word[:n])
		return BytesValue(out), nil
	}

	return nil, decodeErrorf("unsupported type %q", t)
}

var twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)

// decodeSignedWord interprets a 32-byte word as a two's-complement int256
// and renders it in decimal.
func decodeSignedWord(word []byte) string {
	n := new(big.Int).SetBytes(word)
	if word[0]&0x80 != 0 {
		n.Sub(n, twoTo256)
	}
	return n.String()
}

// componentKey names a tuple component in the decoded map; unnamed
// components fall back to their position.
func componentKey(c abi.Input, i int) string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("param%d", i)
}
