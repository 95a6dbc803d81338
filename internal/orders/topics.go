package orders

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
	TopicOrderDeleted       = "order.deleted"
	TopicStockChanged       = "inventory.stock_changed"
)

// Partition key = order_id so every event of one order keeps its order.
// Stock events are keyed by product_id instead.
func PartitionKey(id string) []byte { return []byte(id) }
