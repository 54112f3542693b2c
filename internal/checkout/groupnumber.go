package checkout

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// NewGroupNumber returns a human-readable group reference of the form
// FD20260830123456: prefix, order date, six random digits. Collisions are
// possible and handled by the unique index plus a retry at create time.
func NewGroupNumber(now time.Time) string {
	return fmt.Sprintf("FD%s%06d", now.Format("20060102"), rand.IntN(1_000_000))
}
