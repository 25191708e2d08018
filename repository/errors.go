package repository

import "errors"

var (
	// ErrProviderRequired is returned when a container provider is not provided.
	ErrProviderRequired = errors.New("container provider required")

	// ErrDatabasePathRequired is returned when the database path is empty.
	ErrDatabasePathRequired = errors.New("database path required")

	// ErrContainerNameRequired is returned when the container name is empty.
	ErrContainerNameRequired = errors.New("container name required")
)
