package wasm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const valueSize = 8

var errInvalidLength = errors.New("model bytes are not a whole number of float64 values")

func encodeValues(values []float64) []byte {
	buf := make([]byte, len(values)*valueSize)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*valueSize:], math.Float64bits(v))
	}

	return buf
}

func decodeValues(data []byte) ([]float64, error) {
	if len(data)%valueSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", errInvalidLength, len(data))
	}

	values := make([]float64, len(data)/valueSize)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*valueSize:]))
	}

	return values, nil
}
