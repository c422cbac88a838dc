package db

import (
	"errors"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Custom database errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("duplicate record")
	ErrForeignKey   = errors.New("foreign key constraint violation")
	ErrConstraint   = errors.New("check constraint violation")
	ErrInvalidInput = errors.New("invalid input")
)

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate checks if error is a duplicate error
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsForeignKey checks if error is a foreign key constraint violation
func IsForeignKey(err error) bool {
	return errors.Is(err, ErrForeignKey)
}

// MapGormError maps GORM errors to custom domain errors
func MapGormError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	// SQLite reports constraint failures only through the message text
	errMsg := strings.ToLower(err.Error())
	switch {
	case containsAny(errMsg, "unique constraint"):
		return ErrDuplicate
	case containsAny(errMsg, "foreign key constraint"):
		return ErrForeignKey
	case containsAny(errMsg, "check constraint"):
		return ErrConstraint
	}

	return err
}

func containsAny(s string, substrs ...string) bool {
	return lo.SomeBy(substrs, func(sub string) bool {
		return strings.Contains(s, sub)
	})
}
