package decoder

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/chainscope/logdecoder/pkg/abi"
	"github.com/chainscope/logdecoder/pkg/types"
	"github.com/stretchr/testify/assert"
)

const erc20Abi = `[
	{
		"type": "event",
		"name": "Transfer",
		"anonymous": false,
		"inputs": [
			{"name": "from", "type": "address", "indexed": true},
			{"name": "to", "type": "address", "indexed": true},
			{"name": "value", "type": "uint256", "indexed": false}
		]
	}
]`

// word left-pads hex digits into one 32-byte word.
func word(hexDigits string) string {
	return strings.Repeat("0", 64-len(hexDigits)) + hexDigits
}

// rightPadded right-pads hex digits into one 32-byte word.
func rightPadded(hexDigits string) string {
	return hexDigits + strings.Repeat("0", 64-len(hexDigits))
}

func newTestDecoder(t *testing.T, abiJson string, cfg Config) *Decoder {
	t.Helper()
	a, err := abi.ParseString(abiJson)
	assert.Nil(t, err)
	return NewDecoder(a, cfg)
}

func valueDecoder() *Decoder {
	return NewDecoder(&abi.ABI{}, DefaultConfig())
}

func Test_DecodeScalars(t *testing.T) {
	d := valueDecoder()

	t.Run("bool decodes from the word content", func(t *testing.T) {
		values, err := d.DecodeValues([]abi.Input{{Type: "bool"}}, word("1"))
		assert.Nil(t, err)
		assert.Equal(t, BoolValue(true), values[0])

		values, err = d.DecodeValues([]abi.Input{{Type: "bool"}}, word("0"))
		assert.Nil(t, err)
		assert.Equal(t, BoolValue(false), values[0])
	})

	t.Run("uint256 decodes to a decimal string", func(t *testing.T) {
		values, err := d.DecodeValues([]abi.Input{{Type: "uint256"}}, word("186a0"))
		assert.Nil(t, err)
		assert.Equal(t, IntValue("100000"), values[0])
	})

	t.Run("int256 with the sign bit set is negative", func(t *testing.T) {
		allOnes := strings.Repeat("f", 64)
		values, err := d.DecodeValues([]abi.Input{{Type: "int256"}}, allOnes)
		assert.Nil(t, err)
		assert.Equal(t, IntValue("-1"), values[0])
	})

	t.Run("int256 without the sign bit stays positive", func(t *testing.T) {
		values, err := d.DecodeValues([]abi.Input{{Type: "int256"}}, word("2a"))
		assert.Nil(t, err)
		assert.Equal(t, IntValue("42"), values[0])
	})

	t.Run("the uint and int aliases decode as 256-bit", func(t *testing.T) {
		values, err := d.DecodeValues([]abi.Input{{Type: "uint"}, {Type: "int"}}, word("5")+word("6"))
		assert.Nil(t, err)
		assert.Equal(t, IntValue("5"), values[0])
		assert.Equal(t, IntValue("6"), values[1])
	})

	t.Run("address keeps the last 20 bytes", func(t *testing.T) {
		values, err := d.DecodeValues(
			[]abi.Input{{Type: "address"}},
			word("a9d1e08c7793af67e9d92fe308d5697fb81d3e43"),
		)
		assert.Nil(t, err)
		assert.Equal(t, StringValue("0xa9d1e08c7793af67e9d92fe308d5697fb81d3e43"), values[0])
	})

	t.Run("bytes4 keeps the first 4 bytes", func(t *testing.T) {
		values, err := d.DecodeValues([]abi.Input{{Type: "bytes4"}}, rightPadded("deadbeef"))
		assert.Nil(t, err)
		assert.Equal(t, BytesValue{0xde, 0xad, 0xbe, 0xef}, values[0])
	})

	t.Run("unsupported types are decode errors", func(t *testing.T) {
		_, err := d.DecodeValues([]abi.Input{{Type: "function"}}, word("0"))
		assert.NotNil(t, err)
		assert.IsType(t, &DecodeError{}, err)
	})
}

func Test_DecodeDynamicValues(t *testing.T) {
	d := valueDecoder()

	t.Run("dynamic bytes discard the padding", func(t *testing.T) {
		data := word("20") + word("3") + rightPadded("abcdef")
		values, err := d.DecodeValues([]abi.Input{{Type: "bytes"}}, data)
		assert.Nil(t, err)
		assert.Equal(t, BytesValue{0xab, 0xcd, 0xef}, values[0])
	})

	t.Run("string decodes as text", func(t *testing.T) {
		// "hello world"
		data := word("20") + word("b") + rightPadded("68656c6c6f20776f726c64")
		values, err := d.DecodeValues([]abi.Input{{Type: "string"}}, data)
		assert.Nil(t, err)
		assert.Equal(t, StringValue("hello world"), values[0])
	})

	t.Run("mixed static and dynamic values honor head/tail layout", func(t *testing.T) {
		// (uint256 5, string "foo", bool true)
		data := word("5") + word("60") + word("1") + word("3") + rightPadded("666f6f")
		values, err := d.DecodeValues(
			[]abi.Input{{Type: "uint256"}, {Type: "string"}, {Type: "bool"}},
			data,
		)
		assert.Nil(t, err)
		assert.Equal(t, IntValue("5"), values[0])
		assert.Equal(t, StringValue("foo"), values[1])
		assert.Equal(t, BoolValue(true), values[2])
	})

	t.Run("dynamic uint256 array", func(t *testing.T) {
		data := word("20") + word("2") + word("a") + word("14")
		values, err := d.DecodeValues([]abi.Input{{Type: "uint256[]"}}, data)
		assert.Nil(t, err)
		assert.Equal(t, ListValue{IntValue("10"), IntValue("20")}, values[0])
	})

	t.Run("static address array decodes in place", func(t *testing.T) {
		data := word("a9d1e08c7793af67e9d92fe308d5697fb81d3e43") +
			word("77696bb39917c91a0c3908d577d5e322095425ca")
		values, err := d.DecodeValues([]abi.Input{{Type: "address[2]"}}, data)
		assert.Nil(t, err)
		assert.Equal(t, ListValue{
			StringValue("0xa9d1e08c7793af67e9d92fe308d5697fb81d3e43"),
			StringValue("0x77696bb39917c91a0c3908d577d5e322095425ca"),
		}, values[0])
	})

	t.Run("array of dynamic elements uses offsets relative to the body", func(t *testing.T) {
		// ["a", "b"]
		data := word("20") + // array offset
			word("2") + // length
			word("40") + // element 0 offset, relative to the body
			word("80") + // element 1 offset
			word("1") + rightPadded("61") +
			word("1") + rightPadded("62")
		values, err := d.DecodeValues([]abi.Input{{Type: "string[]"}}, data)
		assert.Nil(t, err)
		assert.Equal(t, ListValue{StringValue("a"), StringValue("b")}, values[0])
	})

	t.Run("static tuple decodes inline", func(t *testing.T) {
		input := abi.Input{Type: "tuple", Components: []abi.Input{
			{Name: "amount", Type: "uint256"},
			{Name: "ok", Type: "bool"},
		}}
		data := word("7b") + word("1")
		values, err := d.DecodeValues([]abi.Input{input}, data)
		assert.Nil(t, err)

		tuple, ok := values[0].(TupleValue)
		assert.True(t, ok)
		amount, _ := tuple.Get("amount")
		assert.Equal(t, IntValue("123"), amount)
		okVal, _ := tuple.Get("ok")
		assert.Equal(t, BoolValue(true), okVal)
	})

	t.Run("tuple with a dynamic component uses region-relative offsets", func(t *testing.T) {
		input := abi.Input{Type: "tuple", Components: []abi.Input{
			{Name: "amount", Type: "uint256"},
			{Name: "note", Type: "string"},
		}}
		// tuple at offset 0x20; inside: amount, then note at region offset 0x40
		data := word("20") + word("7b") + word("40") + word("5") + rightPadded("68656c6c6f")
		values, err := d.DecodeValues([]abi.Input{input}, data)
		assert.Nil(t, err)

		tuple, ok := values[0].(TupleValue)
		assert.True(t, ok)
		note, _ := tuple.Get("note")
		assert.Equal(t, StringValue("hello"), note)
	})
}

func Test_DecodeErrors(t *testing.T) {
	d := valueDecoder()

	t.Run("offset outside the buffer", func(t *testing.T) {
		_, err := d.DecodeValues([]abi.Input{{Type: "string"}}, word("2000"))
		assert.NotNil(t, err)
		assert.IsType(t, &DecodeError{}, err)
	})

	t.Run("length word exceeding the remaining buffer", func(t *testing.T) {
		_, err := d.DecodeValues([]abi.Input{{Type: "bytes"}}, word("20")+word("ff"))
		assert.NotNil(t, err)
	})

	t.Run("insufficient data for a declared word", func(t *testing.T) {
		_, err := d.DecodeValues([]abi.Input{{Type: "uint256"}}, "0x")
		assert.NotNil(t, err)
	})

	t.Run("strict mode rejects invalid UTF-8 strings", func(t *testing.T) {
		strict := NewDecoder(&abi.ABI{}, Config{Heuristics: true, StrictUTF8: true})
		data := word("20") + word("2") + rightPadded("fffe")
		_, err := strict.DecodeValues([]abi.Input{{Type: "string"}}, data)
		assert.NotNil(t, err)

		// The default keeps the bytes as-is in the text form
		values, err := d.DecodeValues([]abi.Input{{Type: "string"}}, data)
		assert.Nil(t, err)
		assert.Equal(t, StringValue("\xff\xfe"), values[0])
	})
}

func Test_DecodeLog(t *testing.T) {
	transferEntry := types.LogEntry{
		Address: "0x1234567890abcdef1234567890abcdef12345678",
		Topics: []string{
			Erc20TransferTopic,
			"0x" + word("a9d1e08c7793af67e9d92fe308d5697fb81d3e43"),
			"0x" + word("77696bb39917c91a0c3908d577d5e322095425ca"),
		},
		Data: "0x" + word("186a0"),
	}

	t.Run("ERC-20 Transfer with a known ABI", func(t *testing.T) {
		d := newTestDecoder(t, erc20Abi, DefaultConfig())

		decoded, err := d.DecodeLog(transferEntry)
		assert.Nil(t, err)
		assert.Equal(t, "Transfer", decoded.EventName)
		assert.Equal(t, Erc20TransferTopic, decoded.EventSignature)
		assert.Equal(t, "Transfer(address,address,uint256)", decoded.Signature)

		assert.Equal(t, 3, len(decoded.Params))
		assert.Equal(t, "from", decoded.Params[0].Name)
		assert.Equal(t, StringValue("0xa9d1e08c7793af67e9d92fe308d5697fb81d3e43"), decoded.Params[0].Value)
		assert.Equal(t, "to", decoded.Params[1].Name)
		assert.Equal(t, StringValue("0x77696bb39917c91a0c3908d577d5e322095425ca"), decoded.Params[1].Value)
		assert.Equal(t, "value", decoded.Params[2].Name)
		assert.Equal(t, IntValue("100000"), decoded.Params[2].Value)
	})

	t.Run("ERC-20 Transfer through the heuristic", func(t *testing.T) {
		d := newTestDecoder(t, `[]`, DefaultConfig())

		decoded, err := d.DecodeLog(transferEntry)
		assert.Nil(t, err)
		assert.Equal(t, "Transfer", decoded.EventName)
		assert.Equal(t, Erc20TransferTopic, decoded.EventSignature)
		assert.Equal(t, "", decoded.Signature)

		assert.Equal(t, 3, len(decoded.Params))
		assert.Equal(t, StringValue("0xa9d1e08c7793af67e9d92fe308d5697fb81d3e43"), decoded.Params[0].Value)
		assert.Equal(t, StringValue("0x77696bb39917c91a0c3908d577d5e322095425ca"), decoded.Params[1].Value)
		assert.Equal(t, IntValue("100000"), decoded.Params[2].Value)
	})

	t.Run("ERC-20 Approval through the heuristic", func(t *testing.T) {
		d := newTestDecoder(t, `[]`, DefaultConfig())

		entry := transferEntry
		entry.Topics = append([]string{}, entry.Topics...)
		entry.Topics[0] = Erc20ApprovalTopic

		decoded, err := d.DecodeLog(entry)
		assert.Nil(t, err)
		assert.Equal(t, "Approval", decoded.EventName)
		assert.Equal(t, "owner", decoded.Params[0].Name)
		assert.Equal(t, "spender", decoded.Params[1].Name)
		assert.Equal(t, "value", decoded.Params[2].Name)
	})

	t.Run("unrecognized topic-0 surfaces topics and data", func(t *testing.T) {
		d := newTestDecoder(t, `[]`, DefaultConfig())

		entry := types.LogEntry{
			Topics: []string{
				"0x" + strings.Repeat("11", 32),
				"0x" + strings.Repeat("22", 32),
			},
			Data: "0x" + word("5"),
		}
		decoded, err := d.DecodeLog(entry)
		assert.Nil(t, err)
		assert.Equal(t, UnknownEventName, decoded.EventName)
		assert.Equal(t, entry.Topics[0], decoded.EventSignature)

		assert.Equal(t, 2, len(decoded.Params))
		assert.Equal(t, "topic1", decoded.Params[0].Name)
		assert.Equal(t, "bytes32", decoded.Params[0].Type)
		assert.Equal(t, "data", decoded.Params[1].Name)
		assert.Equal(t, "bytes", decoded.Params[1].Type)
	})

	t.Run("unknown events fail when heuristics are disabled", func(t *testing.T) {
		d := newTestDecoder(t, `[]`, Config{Heuristics: false})

		_, err := d.DecodeLog(transferEntry)
		assert.NotNil(t, err)
		assert.IsType(t, &DecodeError{}, err)
	})

	t.Run("a log without topics is a decode error", func(t *testing.T) {
		d := newTestDecoder(t, erc20Abi, DefaultConfig())
		_, err := d.DecodeLog(types.LogEntry{Data: "0x"})
		assert.NotNil(t, err)
	})

	t.Run("indexed dynamic parameters return the topic hash verbatim", func(t *testing.T) {
		abiJson := `[
			{
				"type": "event",
				"name": "Named",
				"inputs": [{"name": "name", "type": "string", "indexed": true}]
			}
		]`
		d := newTestDecoder(t, abiJson, DefaultConfig())

		a, err := abi.ParseString(abiJson)
		assert.Nil(t, err)

		hashTopic := "0x" + strings.Repeat("ab", 32)
		decoded, err := d.DecodeLog(types.LogEntry{
			Topics: []string{a.Events[0].Signature, hashTopic},
			Data:   "0x",
		})
		assert.Nil(t, err)
		assert.Equal(t, 1, len(decoded.Params))
		assert.Equal(t, StringValue(hashTopic), decoded.Params[0].Value)
	})
}

func Test_ValueJsonMarshaling(t *testing.T) {
	t.Run("bytes marshal as prefixed hex", func(t *testing.T) {
		out, err := json.Marshal(BytesValue{0xde, 0xad})
		assert.Nil(t, err)
		assert.Equal(t, `"0xdead"`, string(out))
	})

	t.Run("integers marshal as decimal strings", func(t *testing.T) {
		out, err := json.Marshal(IntValue("-1"))
		assert.Nil(t, err)
		assert.Equal(t, `"-1"`, string(out))
	})

	t.Run("lists marshal as arrays", func(t *testing.T) {
		out, err := json.Marshal(ListValue{IntValue("1"), BoolValue(true)})
		assert.Nil(t, err)
		assert.Equal(t, `["1",true]`, string(out))
	})

	t.Run("tuples marshal preserving declaration order", func(t *testing.T) {
		tuple := NewTupleValue()
		tuple.Set("zeta", IntValue("1"))
		tuple.Set("alpha", BoolValue(false))
		out, err := json.Marshal(tuple)
		assert.Nil(t, err)
		assert.Equal(t, `{"zeta":"1","alpha":false}`, string(out))
	})
}
