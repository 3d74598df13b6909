package vectortile

import (
	"math"
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"
)

// ValueType identifies which field of a value message was set.
type ValueType int

const (
	NullValue ValueType = iota
	StringValue
	FloatValue
	DoubleValue
	IntValue
	UintValue
	SintValue
	BoolValue
)

const (
	valueString protowire.Number = 1
	valueFloat  protowire.Number = 2
	valueDouble protowire.Number = 3
	valueInt    protowire.Number = 4
	valueUint   protowire.Number = 5
	valueSint   protowire.Number = 6
	valueBool   protowire.Number = 7
)

// Value is a decoded property value. Only the field matching Type is set.
type Value struct {
	Type   ValueType
	String string
	Double float64
	Int    int64
	Uint   uint64
	Bool   bool
}

// Interface converts the value to a plain Go value: string, float64, bool
// or nil. Integer types are widened to float64.
func (v Value) Interface() interface{} {
	switch v.Type {
	case StringValue:
		return v.String
	case FloatValue, DoubleValue:
		return v.Double
	case IntValue, SintValue:
		return float64(v.Int)
	case UintValue:
		return float64(v.Uint)
	case BoolValue:
		return v.Bool
	default:
		return nil
	}
}

func (v Value) GoString() string {
	switch v.Type {
	case StringValue:
		return strconv.Quote(v.String)
	case FloatValue, DoubleValue:
		return strconv.FormatFloat(v.Double, 'g', -1, 64)
	case IntValue, SintValue:
		return strconv.FormatInt(v.Int, 10)
	case UintValue:
		return strconv.FormatUint(v.Uint, 10)
	case BoolValue:
		return strconv.FormatBool(v.Bool)
	default:
		return "null"
	}
}

// DecodeValue decodes an encoded value message. If several fields are set
// the last one wins, as with any protobuf oneof-like message.
func DecodeValue(data []byte) (Value, error) {
	var v Value
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Value{}, malformed("value: %v", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == valueString && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return Value{}, malformed("string value: %v", protowire.ParseError(n))
			}
			v = Value{Type: StringValue, String: s}
			data = data[n:]

		case num == valueFloat && typ == protowire.Fixed32Type:
			bits, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return Value{}, malformed("float value: %v", protowire.ParseError(n))
			}
			v = Value{Type: FloatValue, Double: float64(math.Float32frombits(bits))}
			data = data[n:]

		case num == valueDouble && typ == protowire.Fixed64Type:
			bits, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return Value{}, malformed("double value: %v", protowire.ParseError(n))
			}
			v = Value{Type: DoubleValue, Double: math.Float64frombits(bits)}
			data = data[n:]

		case (num == valueInt || num == valueUint || num == valueSint || num == valueBool) && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Value{}, malformed("integer value: %v", protowire.ParseError(n))
			}
			switch num {
			case valueInt:
				v = Value{Type: IntValue, Int: int64(x)}
			case valueUint:
				v = Value{Type: UintValue, Uint: x}
			case valueSint:
				v = Value{Type: SintValue, Int: protowire.DecodeZigZag(x)}
			default:
				v = Value{Type: BoolValue, Bool: x != 0}
			}
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Value{}, malformed("value field %d: %v", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return v, nil
}

// AppendValue appends the encoded value message for v to b.
func AppendValue(b []byte, v Value) []byte {
	switch v.Type {
	case StringValue:
		b = protowire.AppendTag(b, valueString, protowire.BytesType)
		b = protowire.AppendString(b, v.String)
	case FloatValue:
		b = protowire.AppendTag(b, valueFloat, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(float32(v.Double)))
	case DoubleValue:
		b = protowire.AppendTag(b, valueDouble, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v.Double))
	case IntValue:
		b = protowire.AppendTag(b, valueInt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v.Int))
	case UintValue:
		b = protowire.AppendTag(b, valueUint, protowire.VarintType)
		b = protowire.AppendVarint(b, v.Uint)
	case SintValue:
		b = protowire.AppendTag(b, valueSint, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(v.Int))
	case BoolValue:
		b = protowire.AppendTag(b, valueBool, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(v.Bool))
	}
	return b
}
