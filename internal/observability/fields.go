package observability

import "go.uber.org/zap"

// Field aliases so callers outside the http layer do not need a direct zap
// import for structured fields.
var (
	String  = zap.String
	Int     = zap.Int
	Int64   = zap.Int64
	Uint64  = zap.Uint64
	Bool    = zap.Bool
	Float64 = zap.Float64
	Error   = zap.Error
)
