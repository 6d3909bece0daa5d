package core

import (
	"fmt"
	"math/rand"
	"time"
)

// ReceiptNumber builds a PREFIX-YYYYMMDD-NNNN receipt identifier with a
// random 4-digit suffix. Suffixes are not deduplicated; the collision odds
// within a single day are accepted.
func ReceiptNumber(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, now.Format("20060102"), rand.Intn(10000))
}
