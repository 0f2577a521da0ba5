package entity

import "errors"

// ErrOwnedEntity is returned when a remote snapshot is applied to an entity
// the caller owns. Owned entities only change through local input.
var ErrOwnedEntity = errors.New("entity: snapshot applied to locally owned entity")
