package errx

// Type categorizes an error for transport mapping and retry decisions.
type Type string

const (
	// TypeInternal represents internal failures
	TypeInternal Type = "INTERNAL"

	// TypeValidation represents malformed or rejected input
	TypeValidation Type = "VALIDATION"

	// TypeNotFound represents a missing resource
	TypeNotFound Type = "NOT_FOUND"

	// TypeConflict represents a state conflict (concurrent modification, duplicates)
	TypeConflict Type = "CONFLICT"

	// TypeBusiness represents domain rule violations
	TypeBusiness Type = "BUSINESS"

	// TypeExternal represents failures of external collaborators (broker, media store, catalog API)
	TypeExternal Type = "EXTERNAL"
)

// String returns the string representation of the error type
func (t Type) String() string {
	return string(t)
}

// httpStatusFor maps error types to HTTP status codes
func httpStatusFor(t Type) int {
	switch t {
	case TypeValidation:
		return 400
	case TypeNotFound:
		return 404
	case TypeConflict:
		return 409
	case TypeBusiness:
		return 422
	case TypeExternal:
		return 502
	default:
		return 500
	}
}
