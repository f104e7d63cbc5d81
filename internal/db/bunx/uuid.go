package bunx

import "github.com/google/uuid"

// NewUUIDv7 generates a time-ordered UUIDv7 string for primary keys. IDs are
// generated in Go so the same models work on SQLite, which has no
// gen_random_uuid().
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}
