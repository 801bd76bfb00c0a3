// Package repository implements the data access layer for the application.
package repository

import (
	"errors"

	"inkwell/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// mapError turns a gorm error into an AppError. AppErrors pass through unchanged.
func mapError(err error, resource string, id any) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewUpstreamError("database "+resource, err)
}

// forUpdate adds a row lock on Postgres. SQLite serializes writers on its own.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
