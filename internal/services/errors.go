package services

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by the ingestion pipeline. Rejections are not errors;
// they come back as a structured outcome. These sentinels let the HTTP layer
// distinguish the failing stage without leaking raw provider errors.
var (
	ErrInferenceUnavailable = errors.New("inference service unavailable")
	ErrStorageCommit        = errors.New("storage commit failed")
	ErrPersistence          = errors.New("resource persistence failed")
	ErrLedger               = errors.New("point ledger update failed")

	ErrResourceNotFound = errors.New("resource not found")
	ErrAlreadyClaimed   = errors.New("resource already claimed")
	ErrOwnResource      = errors.New("cannot claim own resource")
)

// inferenceFailure tags a model or transport error with the
// inference-unavailable kind before the caller degrades, so logs keep the
// failure classification even though no error escapes.
func inferenceFailure(err error) error {
	return fmt.Errorf("%w: %v", ErrInferenceUnavailable, err)
}
