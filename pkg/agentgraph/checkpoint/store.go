// Package checkpoint persists workflow snapshots so runs can resume.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store persists encoded checkpoint documents addressed by
// (workflow, name). Implementations must be safe for concurrent use.
type Store interface {
	// Save stores data, overwriting any existing checkpoint with the same
	// address. It returns a human-readable location for the artifact.
	Save(ctx context.Context, workflow, name string, data []byte) (string, error)

	// Load returns the stored bytes or ErrNotFound.
	Load(ctx context.Context, workflow, name string) ([]byte, error)

	// List returns the checkpoints of a workflow ordered by name.
	// An unknown workflow yields an empty slice, not an error.
	List(ctx context.Context, workflow string) ([]Info, error)

	// Delete removes a checkpoint. Missing checkpoints are not an error.
	Delete(ctx context.Context, workflow, name string) error

	// Close releases resources. Further calls return ErrStoreClosed.
	Close() error
}

// Formatter is implemented by stores that prefer a document format other
// than JSON.
type Formatter interface {
	Format() Format
}

// Info describes a stored checkpoint without loading it.
type Info struct {
	Workflow  string
	Name      string
	Size      int64
	UpdatedAt time.Time
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrCorrupt indicates stored bytes are not a readable checkpoint.
	ErrCorrupt = errors.New("checkpoint corrupt")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrInvalidName indicates a workflow or checkpoint name that cannot be
	// used as an address.
	ErrInvalidName = errors.New("invalid checkpoint name")
)

// ValidateName rejects empty names and names that could escape a
// directory or key namespace.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

func validateAddress(workflow, name string) error {
	if err := ValidateName(workflow); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	return ValidateName(name)
}

// Save encodes c in the store's preferred format and saves it under
// (c.Workflow, c.Name). It returns the artifact location and size.
func Save(ctx context.Context, store Store, c *Checkpoint) (string, int, error) {
	data, err := Encode(c, formatOf(store))
	if err != nil {
		return "", 0, fmt.Errorf("encode checkpoint: %w", err)
	}
	loc, err := store.Save(ctx, c.Workflow, c.Name, data)
	if err != nil {
		return "", 0, err
	}
	return loc, len(data), nil
}

// Load reads and decodes the checkpoint at (workflow, name).
func Load(ctx context.Context, store Store, workflow, name string) (*Checkpoint, error) {
	data, err := store.Load(ctx, workflow, name)
	if err != nil {
		return nil, err
	}
	return Decode(data, formatOf(store))
}

func formatOf(store Store) Format {
	if f, ok := store.(Formatter); ok {
		return f.Format()
	}
	return FormatJSON
}
