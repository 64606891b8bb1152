package visualiser

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype for the skeleton messages.
const codecName = "posewire"

type wireMessage interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

type wireCodec struct{}

func (wireCodec) Name() string { return codecName }

func (wireCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("posewire: cannot marshal %T", v)
	}
	return m.Marshal()
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("posewire: cannot unmarshal into %T", v)
	}
	return m.Unmarshal(data)
}

func init() {
	encoding.RegisterCodec(wireCodec{})
}
