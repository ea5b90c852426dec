package errors

// ErrorCode is a stable, machine readable identifier such as
// "camera_unavailable". Codes are what callers branch on; messages are for
// humans.
type ErrorCode string

// Error is a coded error. Two Errors match under Is when their codes match,
// so a bare Factory.New(code) works as a sentinel.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
	Is(target error) bool
}

// Factory creates coded errors.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
