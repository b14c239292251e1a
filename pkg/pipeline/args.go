package pipeline

import (
	"github.com/chainscope/logdecoder/pkg/decoder"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// newOrderedArgs backs the args object with an insertion-ordered map so
// the serialised JSON keeps the event's declared parameter order.
func newOrderedArgs() *orderedmap.OrderedMap[string, decoder.Value] {
	return orderedmap.New[string, decoder.Value]()
}
