package entity

import "github.com/google/uuid"

// NewID returns a fresh entity id. Ids carry no ordering.
func NewID() string {
	return uuid.NewString()
}
