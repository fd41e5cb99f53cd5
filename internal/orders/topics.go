package orders

import "strconv"

const (
	TopicOrderCreated = "voucher.order.created"
)

// Partition key = order_id so downstream sees one order's events in sequence.
func PartitionKey(orderID int64) []byte {
	return []byte(strconv.FormatInt(orderID, 10))
}
