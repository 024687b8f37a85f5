package postgresadapter

import (
	"context"

	"github.com/google/uuid"
)

// UUIDGenerator issues identifiers for bills, votes, sessions and events.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
