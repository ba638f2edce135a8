package pharmacy

import (
	"fmt"
	"time"
)

// idClock issues URL-safe timestamp tokens (YYYYMMDDThhmmssSSSZ) that are
// strictly increasing. When the wall clock has not moved past the last
// issued millisecond the token is bumped one millisecond forward, so two
// orders for the same store and SKU never share an id.
//
// idClock is not safe for concurrent use; Engine serializes access.
type idClock struct {
	last time.Time
}

func (c *idClock) token(now time.Time) string {
	t := now.UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return formatIDToken(t)
}

func formatIDToken(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s%03dZ", t.Format("20060102T150405"), t.Nanosecond()/int(time.Millisecond))
}

func orderID(storeID, sku, token string) string {
	return fmt.Sprintf("ORD-%s-%s-%s", storeID, sku, token)
}

func shipmentID(orderID, token string) string {
	return fmt.Sprintf("SHP-%s-%s", orderID, token)
}
