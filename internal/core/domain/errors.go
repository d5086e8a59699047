package domain

import "errors"

// Sentinel errors implementing the error taxonomy: IoError, ConfigError,
// EngineNotLoaded, ModelShapeError, StorageError, IdConflict, NotFound,
// BadRequest. Adapters wrap these with fmt.Errorf("...: %w", ErrX) so
// callers can still errors.Is against the sentinel.
var (
	// ErrIO indicates a file was missing or unreadable, disk was full,
	// or permission was denied.
	ErrIO = errors.New("io error")

	// ErrConfig indicates an invalid CLI flag value or log level.
	ErrConfig = errors.New("config error")

	// ErrEngineNotLoaded indicates an embedding was requested before
	// the inference engine finished loading a model.
	ErrEngineNotLoaded = errors.New("inference engine not loaded")

	// ErrModelShape indicates the model's output tensor rank did not
	// match the expected [B, S, H] shape.
	ErrModelShape = errors.New("model output shape error")

	// ErrStorage indicates an underlying relational storage failure.
	ErrStorage = errors.New("storage error")

	// ErrIDConflict indicates a user-supplied id already exists.
	ErrIDConflict = errors.New("id conflict")

	// ErrNotFound indicates a get/update/delete referenced an unknown id.
	ErrNotFound = errors.New("not found")

	// ErrBadRequest indicates a required field was missing from an
	// HTTP request body.
	ErrBadRequest = errors.New("bad request")
)
