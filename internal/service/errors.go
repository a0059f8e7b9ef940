package service

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	appErrors "github.com/noah-isme/agency-case-api/pkg/errors"
)

// Postgres SQLSTATE codes that mean a competing writer won.
var concurrencyStates = map[pq.ErrorCode]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// translateStoreError maps repository errors onto typed application errors.
func translateStoreError(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && concurrencyStates[pqErr.Code] {
		return appErrors.Wrap(err, appErrors.ErrConcurrentModification.Code, appErrors.ErrConcurrentModification.Status, appErrors.ErrConcurrentModification.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
}

func concurrentModification(message string) error {
	return appErrors.Clone(appErrors.ErrConcurrentModification, message)
}

func validationError(message string) error {
	return appErrors.Clone(appErrors.ErrValidation, message)
}

// resultLabel classifies an outcome for metrics.
func resultLabel(err error) string {
	if err == nil {
		return resultOK
	}
	switch appErrors.FromError(err).Code {
	case appErrors.ErrConcurrentModification.Code:
		return resultConflict
	case appErrors.ErrInternal.Code, appErrors.ErrAuditWriteFailure.Code, appErrors.ErrCascadeFailure.Code:
		return resultError
	}
	return resultRejected
}
