package joqular

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultIdentifierKey is the property that holds an instance's identifier.
const DefaultIdentifierKey = "#"

// IDSeparator separates the entity name from the unique suffix.
const IDSeparator = "@"

// NewID generates an identifier for an instance of entity. The suffix is a
// UUIDv7 so identifiers of one entity sort by creation time.
func NewID(entity string) string {
	return entity + IDSeparator + uuid.Must(uuid.NewV7()).String()
}

// IDPrefix returns the prefix shared by every identifier of entity.
func IDPrefix(entity string) string {
	return entity + IDSeparator
}

// EntityOf extracts the entity name from an identifier.
func EntityOf(id string) (string, bool) {
	i := strings.Index(id, IDSeparator)
	if i <= 0 {
		return "", false
	}
	return id[:i], true
}

// ValidID reports whether id is an identifier of entity.
func ValidID(entity, id string) bool {
	return strings.HasPrefix(id, IDPrefix(entity)) && len(id) > len(entity)+1
}

// CheckID returns ErrInvalidIdentifier if id does not belong to entity.
func CheckID(entity, id string) error {
	if !ValidID(entity, id) {
		return fmt.Errorf("%w: %q is not an identifier of %s", ErrInvalidIdentifier, id, entity)
	}
	return nil
}

// IDRange returns the half-open range [start, end) covering every
// identifier of entity.
func IDRange(entity string) (start, end string) {
	prefix := IDPrefix(entity)
	b := []byte(prefix)
	b[len(b)-1]++
	return prefix, string(b)
}
