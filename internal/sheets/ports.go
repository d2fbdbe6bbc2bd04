// Package sheets defines the outbound port for mirroring committed
// closings to an external spreadsheet.
package sheets

import (
	"context"

	"upkeep/internal/core"
)

// ClosingMirror appends one closing record to the mirror destination
// and returns a reference to the written row.
type ClosingMirror interface {
	AppendClosing(ctx context.Context, rec core.ClosingRecord) (rowRef string, err error)
}
