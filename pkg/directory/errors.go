package directory

import "errors"

// ErrDynamicFieldsRequired is returned when resolving a Path that contains
// Field segments without a Binding that supplies every one of them.
var ErrDynamicFieldsRequired = errors.New("directory: dynamic field value required")

// ErrPolymorphicDynamicSegment is returned by ValidatePolymorphic when a
// protocol's shared directory path contains a dynamic segment.
var ErrPolymorphicDynamicSegment = errors.New("directory: polymorphic protocol directories must use only static segments")
