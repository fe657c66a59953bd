package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/aretw0/sessionstore/pkg/observability"
)

// IDBytes is the entropy of a generated session id.
const IDBytes = 16

// IDGenerator produces candidate session ids.
type IDGenerator func() (string, error)

// RandomID returns IDBytes of crypto/rand output as lowercase hex.
func RandomID() (string, error) {
	b := make([]byte, IDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateID draws ids until one is not present in the backend.
// There is no retry bound; the loop stops early only on ctx cancellation or
// a backend error.
func (c *Coordinator) GenerateID(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		id, err := c.generate()
		if err != nil {
			return "", fmt.Errorf("failed to generate session id: %w", err)
		}

		exists, err := c.backend.Exists(ctx, id)
		if err != nil {
			c.metrics.BackendError(observability.OpExists)
			return "", fmt.Errorf("failed to check session id: %w", err)
		}
		if !exists {
			return id, nil
		}

		c.metrics.IDCollision()
		c.logger.Debug("Session id collision, drawing again")
	}
}
