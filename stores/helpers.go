package stores

import (
	"time"

	"github.com/oarkflow/date"
)

// parseFlexibleTime handles the timestamp formats the different SQL drivers
// hand back for TEXT columns.
func parseFlexibleTime(s string) (time.Time, error) {
	return date.Parse(s)
}
