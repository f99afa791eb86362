package batch

import "errors"

var (
	// ErrNoTrees indicates the batch file lists no trees
	ErrNoTrees = errors.New("batch file must list at least one tree")

	// ErrEmptyURL indicates a tree entry is missing its URL
	ErrEmptyURL = errors.New("tree URL cannot be empty")

	// ErrInvalidFormat indicates the batch file is not valid YAML or JSON
	ErrInvalidFormat = errors.New("batch file must be valid YAML or JSON")

	// ErrFileNotFound indicates the batch file does not exist
	ErrFileNotFound = errors.New("batch file not found")

	// ErrUnsupportedExt indicates an unsupported file extension
	ErrUnsupportedExt = errors.New("unsupported file extension (use .yaml, .yml, or .json)")
)
