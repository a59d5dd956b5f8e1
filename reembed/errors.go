package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrStoreRequired indicates the orchestrator was built without a store.
	ErrStoreRequired = errors.New("store is required")

	// ErrProviderRequired indicates the orchestrator was built without an
	// embedding provider.
	ErrProviderRequired = errors.New("provider is required")

	// ErrRegistryRequired indicates the orchestrator was built without a
	// pool registry.
	ErrRegistryRequired = errors.New("pool registry is required")

	// ErrQueueRequired indicates the orchestrator was built without a work
	// queue.
	ErrQueueRequired = errors.New("work queue is required")

	// ErrUnknownTaskKind indicates a task with an unrecognized kind.
	ErrUnknownTaskKind = errors.New("unknown task kind")

	// ErrBatchNotRetryable indicates a retry request for a batch that is
	// neither failed nor canceled.
	ErrBatchNotRetryable = errors.New("batch is not in a retryable state")

	// ErrNoRetainedMetadata indicates a retry request for a batch whose
	// staging records are gone.
	ErrNoRetainedMetadata = errors.New("no retained chunk metadata for batch")
)
