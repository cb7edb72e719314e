package ports

import "context"

// TableSource provides a read-only structured snapshot consumed by the Parser.
// A nil snapshot with a nil error means no data is available.
type TableSource interface {
	Snapshot(ctx context.Context) (any, error)
}
