package decoder

import (
	"encoding/json"

	"github.com/chainscope/logdecoder/pkg/utils"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Value is the tagged sum over everything the ABI decoder can produce:
// integers as decimal strings, bools, byte sequences, text, lists and
// tuples. Callers dispatch on the concrete type; every variant marshals
// itself to JSON.
type Value interface {
	json.Marshaler
	isValue()
}

// IntValue carries any integer width as a base-10 string, '-' prefixed
// when negative. Strings preserve the full 256-bit range without pushing
// a bignum type into the public surface.
type IntValue string

func (IntValue) isValue() {}

func (v IntValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(v))
}

type BoolValue bool

func (BoolValue) isValue() {}

func (v BoolValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(v))
}

// BytesValue marshals as 0x-prefixed lowercase hex.
type BytesValue []byte

func (BytesValue) isValue() {}

func (v BytesValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(utils.ConvertBytesToString(v))
}

type StringValue string

func (StringValue) isValue() {}

func (v StringValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(v))
}

type ListValue []Value

func (ListValue) isValue() {}

func (v ListValue) MarshalJSON() ([]byte, error) {
	// Marshal nil as an empty array rather than null
	if v == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Value(v))
}

// TupleValue maps component names to values, preserving declaration order
// in the marshaled object.
type TupleValue struct {
	*orderedmap.OrderedMap[string, Value]
}

func (TupleValue) isValue() {}

func NewTupleValue() TupleValue {
	return TupleValue{orderedmap.New[string, Value]()}
}

func (v TupleValue) MarshalJSON() ([]byte, error) {
	return v.OrderedMap.MarshalJSON()
}
