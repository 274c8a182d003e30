package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns a prefixed, time-ordered, collision-resistant id such as
// "sale-1700000000000000000-8f1c2a...". The timestamp component keeps ids
// roughly sortable by creation time, which the FIFO allocator relies on
// only as a tiebreaker (ordering is by sale_time, never by id).
func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}
