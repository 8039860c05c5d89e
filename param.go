package dbclient

// ParamKind discriminates which field of Param is populated.
type ParamKind int

const (
	ParamNull ParamKind = iota
	ParamInt64
	ParamUint64
	ParamFloat64
	ParamString
	ParamBytes
	ParamBool
)

// Param is one bound value in backend-agnostic form (spec §4.7 "parameter
// accumulator"); mysqlconn and pgconn translate a Param into their own
// wire encoding (MySQL type byte + value bytes, or Postgres OID + binary
// format bytes) at bind time.
type Param struct {
	Kind ParamKind
	I64  int64
	U64  uint64
	F64  float64
	Str  string
	Byt  []byte
}

// Int64Param binds a signed integer.
func Int64Param(v int64) Param { return Param{Kind: ParamInt64, I64: v} }

// Uint64Param binds an unsigned integer.
func Uint64Param(v uint64) Param { return Param{Kind: ParamUint64, U64: v} }

// Float64Param binds a floating-point value.
func Float64Param(v float64) Param { return Param{Kind: ParamFloat64, F64: v} }

// StringParam binds a text value.
func StringParam(v string) Param { return Param{Kind: ParamString, Str: v} }

// BytesParam binds an opaque binary value.
func BytesParam(v []byte) Param { return Param{Kind: ParamBytes, Byt: v} }

// BoolParam binds a boolean value.
func BoolParam(v bool) Param { return Param{Kind: ParamBool, I64: boolToInt64(v)} }

// NullParam binds SQL NULL.
func NullParam() Param { return Param{Kind: ParamNull} }

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

// ParamBuilder accumulates bound parameters in call order (spec §4.7: "a
// backend-specific parameter-accumulator that records (value, type, null
// bit) tuples in binding order").
type ParamBuilder struct {
	params []Param
}

// NewParamBuilder returns an empty builder.
func NewParamBuilder() *ParamBuilder { return &ParamBuilder{} }

// Add appends p and returns the builder, so calls can be chained.
func (b *ParamBuilder) Add(p Param) *ParamBuilder {
	b.params = append(b.params, p)
	return b
}

// Params returns the accumulated parameters in binding order.
func (b *ParamBuilder) Params() []Param {
	return b.params
}

// Len returns the number of accumulated parameters.
func (b *ParamBuilder) Len() int { return len(b.params) }
