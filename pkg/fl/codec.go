package fl

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

const ContentType = "application/cbor"

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}

	return em
}

func Encode(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}

	return data, nil
}

func Decode(data []byte, v any) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %T: %w", v, err)
	}

	return nil
}

// EncodeGlobalModel produces the opaque bytes handed to user clients.
func EncodeGlobalModel(m GlobalModel) ([]byte, error) {
	return Encode(m)
}

// DecodeGlobalModel is the inverse of EncodeGlobalModel, for user clients.
func DecodeGlobalModel(data []byte) (GlobalModel, error) {
	var m GlobalModel
	if err := Decode(data, &m); err != nil {
		return GlobalModel{}, err
	}

	return m, nil
}
