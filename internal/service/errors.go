package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/restaurant-cms-api/internal/models"
)

var (
	// ErrNotFound is returned when an article does not exist or is not
	// visible to the caller
	ErrNotFound = errors.New("article not found")
	// ErrSlugTaken is returned when an explicit slug belongs to another article
	ErrSlugTaken = errors.New("slug already in use")
)

// ValidationErrors carries field errors for a rejected payload
type ValidationErrors struct {
	Errors []models.ValidationError
}

func (e *ValidationErrors) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		fields = append(fields, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, "; "))
}
