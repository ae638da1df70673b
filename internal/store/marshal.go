package store

import (
	"fmt"

	"github.com/roach88/qchain/internal/ir"
)

// marshalItem converts an item to canonical JSON TEXT for storage.
func marshalItem(v ir.Value) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal item: %w", err)
	}
	return string(data), nil
}

// marshalParams converts bound statement parameters to canonical JSON TEXT.
func marshalParams(params []any) (string, error) {
	arr := make(ir.Array, len(params))
	for i, p := range params {
		v, err := ir.FromGo(p)
		if err != nil {
			return "", fmt.Errorf("marshal param %d: %w", i+1, err)
		}
		arr[i] = v
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	return string(data), nil
}

// unmarshalItem parses a JSON item column. SQL NULL is ir.Null.
// Integers keep full int64 precision.
func unmarshalItem(data *string) (ir.Value, error) {
	if data == nil {
		return ir.Null{}, nil
	}
	v, err := ir.ParseJSON([]byte(*data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return v, nil
}
