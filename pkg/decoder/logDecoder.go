// Package decoder turns raw event logs into structured records using the
// ABI head/tail encoding rules. Indexed parameters come out of topics,
// everything else out of the data payload, and the two are merged back
// into declaration order.
package decoder

import (
	"strconv"
	"strings"

	"github.com/chainscope/logdecoder/pkg/abi"
	"github.com/chainscope/logdecoder/pkg/types"
	"github.com/chainscope/logdecoder/pkg/utils"
)

const (
	// Topic-0 hashes of the ERC-20 events recognized by the
	// unknown-event fallback.
	Erc20TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	Erc20ApprovalTopic = "0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925"

	UnknownEventName = "UnknownEvent"
)

// Config controls per-decoder behavior. Heuristics enables the
// unknown-event fallback; StrictUTF8 turns invalid string payloads into
// decode errors.
type Config struct {
	Heuristics bool
	StrictUTF8 bool
}

func DefaultConfig() Config {
	return Config{Heuristics: true}
}

// Decoder decodes logs against one parsed ABI. It holds no mutable state
// and is safe for concurrent use.
type Decoder struct {
	abi    *abi.ABI
	config Config
}

func NewDecoder(a *abi.ABI, cfg Config) *Decoder {
	return &Decoder{abi: a, config: cfg}
}

// DecodedParam is one named parameter of a decoded event. Type is the
// declared ABI type verbatim.
type DecodedParam struct {
	Name  string
	Type  string
	Value Value
}

// DecodedLog is the decoder output for one log entry. Signature is empty
// when the event was not found in the ABI.
type DecodedLog struct {
	EventName      string
	EventSignature string
	Signature      string
	Params         []DecodedParam
}

// DecodeLog decodes one log entry. Rows without topics and rows whose
// topic-0 is unknown (with heuristics disabled) return a DecodeError;
// callers skip the row and continue.
func (d *Decoder) DecodeLog(entry types.LogEntry) (*DecodedLog, error) {
	if len(entry.Topics) == 0 {
		return nil, decodeErrorf("log entry has no topics")
	}

	event, found := d.abi.EventBySignature(entry.Topics[0])
	if !found {
		if d.config.Heuristics {
			return d.decodeUnknownEvent(entry), nil
		}
		return nil, decodeErrorf("no matching event for signature %s", entry.Topics[0])
	}

	decoded := &DecodedLog{
		EventName:      event.Name,
		EventSignature: event.Signature,
		Signature:      event.CanonicalSignature(),
	}

	indexedInputs := make([]abi.Input, 0)
	nonIndexedInputs := make([]abi.Input, 0)
	for _, input := range event.Inputs {
		if input.Indexed {
			indexedInputs = append(indexedInputs, input)
		} else {
			nonIndexedInputs = append(nonIndexedInputs, input)
		}
	}

	indexedParams, err := d.decodeTopics(entry.Topics[1:], indexedInputs)
	if err != nil {
		return nil, err
	}

	dataParams, err := d.decodeData(entry.Data, nonIndexedInputs)
	if err != nil {
		return nil, err
	}

	// Merge back into declaration order
	indexedIdx, dataIdx := 0, 0
	decoded.Params = make([]DecodedParam, 0, len(event.Inputs))
	for _, input := range event.Inputs {
		if input.Indexed {
			if indexedIdx < len(indexedParams) {
				decoded.Params = append(decoded.Params, indexedParams[indexedIdx])
				indexedIdx++
			}
		} else {
			if dataIdx < len(dataParams) {
				decoded.Params = append(decoded.Params, dataParams[dataIdx])
				dataIdx++
			}
		}
	}

	return decoded, nil
}

// decodeTopics decodes the indexed parameters from topics 1..N. Dynamic
// indexed types are unrecoverable: the chain stores only the keccak hash
// of the value, so the topic comes back verbatim.
func (d *Decoder) decodeTopics(topics []string, inputs []abi.Input) ([]DecodedParam, error) {
	params := make([]DecodedParam, 0, len(inputs))

	for i := 0; i < len(inputs) && i < len(topics); i++ {
		input := inputs[i]
		param := DecodedParam{Name: input.Name, Type: input.Type}

		if isHashedWhenIndexed(input) {
			param.Value = StringValue(topics[i])
		} else {
			buf, err := utils.HexToBytes(topics[i])
			if err != nil {
				return nil, decodeErrorf("bad topic hex: %v", err)
			}
			v, err := d.decodeScalarWord(input, buf, 0)
			if err != nil {
				return nil, err
			}
			param.Value = v
		}
		params = append(params, param)
	}

	return params, nil
}

// isHashedWhenIndexed reports whether an indexed parameter of this type
// stores only the keccak hash of its value in the topic. This covers all
// reference types, including fixed arrays of static elements.
func isHashedWhenIndexed(input abi.Input) bool {
	t := input.Type
	if t == "bytes" || t == "string" || strings.HasPrefix(t, "tuple") {
		return true
	}
	_, _, isArray := parseArrayType(t)
	return isArray
}

// decodeData decodes the non-indexed parameters from the data payload.
func (d *Decoder) decodeData(data string, inputs []abi.Input) ([]DecodedParam, error) {
	if len(inputs) == 0 || data == "" || data == "0x" {
		return []DecodedParam{}, nil
	}

	values, err := d.DecodeValues(inputs, data)
	if err != nil {
		return nil, err
	}

	params := make([]DecodedParam, 0, len(inputs))
	for i := 0; i < len(inputs) && i < len(values); i++ {
		params = append(params, DecodedParam{
			Name:  inputs[i].Name,
			Type:  inputs[i].Type,
			Value: values[i],
		})
	}
	return params, nil
}

// decodeUnknownEvent is the compatibility shim for logs whose topic-0 is
// not in the ABI: well-known ERC-20 shapes get named parameters, anything
// else surfaces its topics and data untouched.
func (d *Decoder) decodeUnknownEvent(entry types.LogEntry) *DecodedLog {
	decoded := &DecodedLog{
		EventName:      UnknownEventName,
		EventSignature: entry.Topics[0],
		Params:         make([]DecodedParam, 0),
	}

	topic0 := "0x" + strings.ToLower(utils.StripHexPrefix(entry.Topics[0]))

	switch topic0 {
	case Erc20TransferTopic:
		decoded.EventName = "Transfer"
		d.appendErc20Params(decoded, entry, "from", "to", "value")
	case Erc20ApprovalTopic:
		decoded.EventName = "Approval"
		d.appendErc20Params(decoded, entry, "owner", "spender", "value")
	default:
		for i := 1; i < len(entry.Topics); i++ {
			topic, err := utils.HexToBytes(entry.Topics[i])
			if err != nil {
				continue
			}
			decoded.Params = append(decoded.Params, DecodedParam{
				Name:  "topic" + strconv.Itoa(i),
				Type:  "bytes32",
				Value: BytesValue(topic),
			})
		}
		if entry.Data != "" && entry.Data != "0x" {
			if data, err := utils.HexToBytes(entry.Data); err == nil {
				decoded.Params = append(decoded.Params, DecodedParam{
					Name:  "data",
					Type:  "bytes",
					Value: BytesValue(data),
				})
			}
		}
	}

	return decoded
}

// appendErc20Params fills the Transfer/Approval shape: two address topics
// followed by a uint256 amount from the data payload.
func (d *Decoder) appendErc20Params(decoded *DecodedLog, entry types.LogEntry, first, second, amount string) {
	addressInput := abi.Input{Type: "address"}

	if len(entry.Topics) >= 3 {
		for i, name := range []string{first, second} {
			buf, err := utils.HexToBytes(entry.Topics[i+1])
			if err != nil {
				continue
			}
			v, err := d.decodeScalarWord(addressInput, buf, 0)
			if err != nil {
				continue
			}
			decoded.Params = append(decoded.Params, DecodedParam{Name: name, Type: "address", Value: v})
		}
	}

	if entry.Data != "" && entry.Data != "0x" {
		values, err := d.DecodeValues([]abi.Input{{Type: "uint256"}}, entry.Data)
		if err == nil && len(values) == 1 {
			decoded.Params = append(decoded.Params, DecodedParam{Name: amount, Type: "uint256", Value: values[0]})
			return
		}
		if data, err := utils.HexToBytes(entry.Data); err == nil {
			decoded.Params = append(decoded.Params, DecodedParam{Name: "data", Type: "bytes", Value: BytesValue(data)})
		}
	}
}
