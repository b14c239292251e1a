package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const erc20TransferAbi = `[
	{
		"type": "event",
		"name": "Transfer",
		"anonymous": false,
		"inputs": [
			{"name": "from", "type": "address", "indexed": true},
			{"name": "to", "type": "address", "indexed": true},
			{"name": "value", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "function",
		"name": "transfer",
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "value", "type": "uint256"}
		]
	}
]`

const transferTopic0 = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

func Test_Parse(t *testing.T) {
	t.Run("retains only events", func(t *testing.T) {
		a, err := ParseString(erc20TransferAbi)
		assert.Nil(t, err)
		assert.Equal(t, 1, len(a.Events))
		assert.Equal(t, "Transfer", a.Events[0].Name)
	})

	t.Run("computes the well-known Transfer topic-0", func(t *testing.T) {
		a, err := ParseString(erc20TransferAbi)
		assert.Nil(t, err)
		assert.Equal(t, transferTopic0, a.Events[0].Signature)

		event, found := a.EventBySignature(transferTopic0)
		assert.True(t, found)
		assert.Equal(t, "Transfer", event.Name)
	})

	t.Run("signature recomputation is deterministic", func(t *testing.T) {
		first, err := ParseString(erc20TransferAbi)
		assert.Nil(t, err)
		second, err := ParseString(erc20TransferAbi)
		assert.Nil(t, err)
		assert.Equal(t, first.Events[0].Signature, second.Events[0].Signature)
	})

	t.Run("lookup tolerates prefix and case differences", func(t *testing.T) {
		a, err := ParseString(erc20TransferAbi)
		assert.Nil(t, err)

		_, found := a.EventBySignature("ddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
		assert.True(t, found)

		_, found = a.EventBySignature("0xDDF252AD1BE2C89B69C2B068FC378DAA952BA7F163C4A11628F55A4DF523B3EF")
		assert.True(t, found)
	})

	t.Run("malformed JSON returns a parse error", func(t *testing.T) {
		_, err := ParseString(`{not json`)
		assert.NotNil(t, err)
		assert.IsType(t, &ParseError{}, err)
	})

	t.Run("missing name is a parse error", func(t *testing.T) {
		_, err := ParseString(`[{"type": "event", "inputs": []}]`)
		assert.NotNil(t, err)
		assert.IsType(t, &ParseError{}, err)
	})

	t.Run("missing input type is a parse error", func(t *testing.T) {
		_, err := ParseString(`[{"type": "event", "name": "Broken", "inputs": [{"name": "x"}]}]`)
		assert.NotNil(t, err)
	})

	t.Run("duplicate signatures keep the latest entry", func(t *testing.T) {
		duplicated := `[
			{"type": "event", "name": "Ping", "inputs": [{"name": "a", "type": "uint256"}]},
			{"type": "event", "name": "Ping", "inputs": [{"name": "b", "type": "uint256"}]}
		]`
		a, err := ParseString(duplicated)
		assert.Nil(t, err)
		assert.Equal(t, 2, len(a.Events))

		event, found := a.EventBySignature(a.Events[0].Signature)
		assert.True(t, found)
		assert.Equal(t, "b", event.Inputs[0].Name)
	})
}

func Test_CanonicalType(t *testing.T) {
	t.Run("expands the integer and byte aliases", func(t *testing.T) {
		assert.Equal(t, "uint256", CanonicalType(Input{Type: "uint"}))
		assert.Equal(t, "int256", CanonicalType(Input{Type: "int"}))
		assert.Equal(t, "bytes1", CanonicalType(Input{Type: "byte"}))
	})

	t.Run("passes concrete types through", func(t *testing.T) {
		assert.Equal(t, "uint128", CanonicalType(Input{Type: "uint128"}))
		assert.Equal(t, "address", CanonicalType(Input{Type: "address"}))
		assert.Equal(t, "bytes32[4]", CanonicalType(Input{Type: "bytes32[4]"}))
	})

	t.Run("expands tuples with their array suffix", func(t *testing.T) {
		input := Input{
			Type: "tuple[]",
			Components: []Input{
				{Name: "token", Type: "address"},
				{Name: "amount", Type: "uint256"},
			},
		}
		assert.Equal(t, "(address,uint256)[]", CanonicalType(input))
	})

	t.Run("expands nested tuples", func(t *testing.T) {
		input := Input{
			Type: "tuple",
			Components: []Input{
				{Name: "inner", Type: "tuple", Components: []Input{
					{Name: "x", Type: "uint"},
				}},
				{Name: "flag", Type: "bool"},
			},
		}
		assert.Equal(t, "((uint256),bool)", CanonicalType(input))
	})
}

func Test_CanonicalSignature(t *testing.T) {
	a, err := ParseString(erc20TransferAbi)
	assert.Nil(t, err)
	assert.Equal(t, "Transfer(address,address,uint256)", a.Events[0].CanonicalSignature())
}
