package dbclient

// ParamDescription describes one inferred parameter type of a prepared
// statement (spec §3 "Describe"). TypeID is the backend's native type
// identifier: a MySQL FieldType byte widened to uint32, or a Postgres
// type OID.
type ParamDescription struct {
	TypeID uint32
}

// Describe is the immutable result of describing a prepared statement:
// its parameter types and its result columns (spec §3 "Describe").
type Describe struct {
	Params  []ParamDescription
	Columns []ColumnInfo
}
