package service

import (
	"errors"
	"fmt"

	"fieldserve/internal/domain"
	"fieldserve/internal/repository"
)

// lookupErr turns a missing row into a NotFound outcome and wraps anything else.
func lookupErr(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFound(what)
	}
	return fmt.Errorf("load %s: %w", what, err)
}
