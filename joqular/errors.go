package joqular

import "errors"

var (
	// ErrShapeMismatch is returned when an insert does not match the shape
	// its schema expects. No writes are performed.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnknownAlias is returned when a condition tree names an alias that
	// was never bound with From or Into.
	ErrUnknownAlias = errors.New("unknown alias")

	// ErrUnknownEntity is returned for an entity that has no schema.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrInvalidIdentifier is returned for identifiers that do not start
	// with "<Entity>@".
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrUnknownOperator is returned when a name is not in the operator or
	// transform catalog.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrNotSerializable is returned when a pattern or condition contains a
	// function that has no catalog name.
	ErrNotSerializable = errors.New("not serializable")

	// ErrNotFound is returned by writes that target a missing instance.
	ErrNotFound = errors.New("not found")

	// ErrSchemaConflict is returned when an entity is redefined differently.
	ErrSchemaConflict = errors.New("schema conflict")
)
