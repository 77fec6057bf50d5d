package app

import "github.com/google/uuid"

// generateID produces a time-ordered UUIDv7 identifier.
// Isolated here so the ID strategy can evolve independently.
func generateID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
