package redstruct

import (
	"slices"
	"strconv"

	"github.com/go-json-experiment/json"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes container values into store-safe byte strings and back.
// Both methods are total: they either succeed or return an error, never
// silently corrupt data. Decode errors are distinguishable from ErrNotFound.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

// Msgpack encodes values with msgpack.
type Msgpack struct{}

func (Msgpack) Encode(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, codecErrf(nil, err, "msgpack encode %T", v)
	}
	return data, nil
}

func (Msgpack) Decode(data []byte, out any) error {
	if err := msgpack.Unmarshal(data, out); err != nil {
		return codecErrf(data, err, "msgpack decode into %T", out)
	}
	return nil
}

// JSON encodes values with JSON.
type JSON struct{}

func (JSON) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, codecErrf(nil, err, "json encode %T", v)
	}
	return data, nil
}

func (JSON) Decode(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return codecErrf(data, err, "json decode into %T", out)
	}
	return nil
}

// Raw passes strings and byte strings through unmodified and formats
// numbers as canonical decimal strings, matching what the store's own
// increment commands produce. It refuses structured values.
type Raw struct{}

func (Raw) Encode(v any) ([]byte, error) {
	switch v := v.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return slices.Clone(v), nil
	case int:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int64:
		return strconv.AppendInt(nil, v, 10), nil
	case uint64:
		return strconv.AppendUint(nil, v, 10), nil
	case float64:
		return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
	case bool:
		if v {
			return []byte("1"), nil
		}
		return []byte("0"), nil
	default:
		return nil, codecErrf(nil, nil, "raw codec cannot encode %T", v)
	}
}

func (Raw) Decode(data []byte, out any) error {
	switch out := out.(type) {
	case *string:
		*out = string(data)
		return nil
	case *[]byte:
		*out = slices.Clone(data)
		return nil
	case *int:
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return codecErrf(data, err, "raw decode into int")
		}
		*out = int(n)
		return nil
	case *int64:
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return codecErrf(data, err, "raw decode into int64")
		}
		*out = n
		return nil
	case *uint64:
		n, err := strconv.ParseUint(string(data), 10, 64)
		if err != nil {
			return codecErrf(data, err, "raw decode into uint64")
		}
		*out = n
		return nil
	case *float64:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return codecErrf(data, err, "raw decode into float64")
		}
		*out = f
		return nil
	case *bool:
		*out = len(data) > 0 && string(data) != "0"
		return nil
	default:
		return codecErrf(data, nil, "raw codec cannot decode into %T", out)
	}
}

// decodeLenient decodes data with the container's codec, reading canonical
// numeric payloads raw where the codec would misread or reject them.
// Increment commands bypass the codec and leave store-native numeric strings
// behind, and those must still come back readable instead of failing the
// whole operation.
func decodeLenient(c Codec, data []byte, out any) error {
	// A canonical decimal into a numeric target never goes through the
	// codec: a digit byte is also a valid msgpack fixint, so the codec
	// would decode the ASCII code point instead of the number.
	if isCanonicalNumber(data) && isNumericTarget(out) {
		if err := (Raw{}).Decode(data, out); err == nil {
			return nil
		}
	}
	err := c.Decode(data, out)
	if err == nil {
		return nil
	}
	if isCanonicalNumber(data) {
		if rerr := (Raw{}).Decode(data, out); rerr == nil {
			return nil
		}
	}
	return err
}

func isNumericTarget(out any) bool {
	switch out.(type) {
	case *int, *int64, *uint64, *float64:
		return true
	}
	return false
}

func isCanonicalNumber(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	start := 0
	if data[0] == '-' {
		if len(data) == 1 {
			return false
		}
		start = 1
	}
	for _, b := range data[start:] {
		if b < '0' || b > '9' {
			return false
		}
	}
	return true
}
