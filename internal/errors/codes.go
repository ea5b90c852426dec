package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig    ErrorCode = "invalid_configuration"
	ErrReadConfig       ErrorCode = "read_config_failed"
	ErrInvalidThreshold ErrorCode = "invalid_threshold"
	ErrInvalidRunLength ErrorCode = "invalid_run_length"
	ErrInvalidCooldown  ErrorCode = "invalid_cooldown"
	ErrInvalidCadence   ErrorCode = "invalid_cadence"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Capture pipeline errors
	ErrCameraUnavailable ErrorCode = "camera_unavailable"
	ErrFrameRead         ErrorCode = "frame_read_failed"
	ErrDetectionFailed   ErrorCode = "detection_failed"
	ErrLogWrite          ErrorCode = "log_write_failed"
	ErrLogSchema         ErrorCode = "log_schema_error"
	ErrLogRead           ErrorCode = "log_read_failed"

	// Operation errors
	ErrTimeout          ErrorCode = "operation_timeout"
	ErrInvalidOperation ErrorCode = "invalid_operation"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrUnavailable:       "Service unavailable",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrInvalidConfig:     "Invalid configuration",
	ErrReadConfig:        "Failed to read config file",
	ErrInvalidThreshold:  "EAR threshold must be within (0, 1)",
	ErrInvalidRunLength:  "Run length must be at least 2 frames",
	ErrInvalidCooldown:   "Cooldown must not be negative",
	ErrInvalidCadence:    "Cadence must be positive",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrInitFailed:        "Initialization failed",
	ErrShutdownFailed:    "Shutdown failed",
	ErrCameraUnavailable: "Camera unavailable",
	ErrFrameRead:         "Failed to read camera frame",
	ErrDetectionFailed:   "Landmark detection failed",
	ErrLogWrite:          "Failed to append measurement",
	ErrLogSchema:         "Measurement log has no ear column",
	ErrLogRead:           "Failed to read measurement log",
	ErrTimeout:           "Operation timed out",
	ErrInvalidOperation:  "Invalid operation",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
