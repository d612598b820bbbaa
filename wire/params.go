package wire

// Recognized setup/request parameter types (draft-ietf-moq-transport-15
// §6.2). Unknown types are ignored on receipt and passed through unchanged
// on forward, per spec §6.
const (
	ParamRole         uint64 = 0x00 // even → varint value
	ParamPath         uint64 = 0x01 // odd  → length-prefixed byte string
	ParamMaxRequestID uint64 = 0x02 // even → varint value
	ParamEndpointID   uint64 = 0xf0 // odd  → length-prefixed byte string
)

// Param is a single (type, value) parameter entry. Even types carry a
// varint Value; odd types carry a length-prefixed Bytes payload.
type Param struct {
	Type  uint64
	Value uint64
	Bytes []byte
}

func (p Param) isVarint() bool { return p.Type%2 == 0 }

// Params is an ordered parameter list, as carried by CLIENT_SETUP,
// SERVER_SETUP, SUBSCRIBE, ANNOUNCE, and the SUBSCRIBE_ANNOUNCES family.
type Params []Param

// VarintValue returns the varint value of the first parameter with the
// given type, if present.
func (p Params) VarintValue(typ uint64) (uint64, bool) {
	for _, e := range p {
		if e.Type == typ {
			return e.Value, true
		}
	}
	return 0, false
}

// BytesValue returns the byte payload of the first parameter with the
// given type, if present.
func (p Params) BytesValue(typ uint64) ([]byte, bool) {
	for _, e := range p {
		if e.Type == typ {
			return e.Bytes, true
		}
	}
	return nil, false
}

// AppendParams serializes a parameter count followed by each (type, value)
// entry.
func AppendParams(buf []byte, params Params) []byte {
	buf = AppendVarint(buf, uint64(len(params)))
	for _, p := range params {
		buf = AppendVarint(buf, p.Type)
		if p.isVarint() {
			buf = AppendVarint(buf, p.Value)
		} else {
			buf = AppendVarintBytes(buf, p.Bytes)
		}
	}
	return buf
}

// decodeParams reads a parameter count and that many (type, value) entries
// from r.
func decodeParams(r *fieldReader) (Params, error) {
	count, err := r.varint()
	if err != nil {
		return nil, &ParseError{Field: "num_params", Err: err}
	}
	if count == 0 {
		return nil, nil
	}
	out := make(Params, 0, count)
	for i := uint64(0); i < count; i++ {
		typ, err := r.varint()
		if err != nil {
			return nil, &ParseError{Field: "param_type", Err: err}
		}
		if typ%2 == 0 {
			v, err := r.varint()
			if err != nil {
				return nil, &ParseError{Field: "param_value", Err: err}
			}
			out = append(out, Param{Type: typ, Value: v})
		} else {
			v, err := r.bytes()
			if err != nil {
				return nil, &ParseError{Field: "param_value", Err: err}
			}
			out = append(out, Param{Type: typ, Bytes: v})
		}
	}
	return out, nil
}
