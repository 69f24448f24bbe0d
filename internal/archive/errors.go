package archive

import (
	"errors"
	"fmt"
)

var (
	ErrMissingRequired   = errors.New("required entry missing from archive")
	ErrDestinationExists = errors.New("destination already exists")
	ErrUnsupported       = errors.New("archive format does not support extraction")
	ErrNotDirectory      = errors.New("merged relocation source is not a directory")
)

// ExtractionError is fatal to the processing of one archive.
type ExtractionError struct {
	Archive string
	Op      string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %s: %v", e.Archive, e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// RenameCollisionError reports a name that would normalize onto an existing
// sibling. The rename is skipped.
type RenameCollisionError struct {
	Dir  string
	From string
	To   string
}

func (e *RenameCollisionError) Error() string {
	return fmt.Sprintf("rename %s -> %s in %s: target name already taken", e.From, e.To, e.Dir)
}
