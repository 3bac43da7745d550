package cart

import "time"

const (
	componentName = "cart"

	operationGetOrCreate = "get_or_create"
	operationMerge       = "merge_guest_cart"
	operationAddItem     = "add_item"
	operationUpdateItem  = "update_item"
	operationRemoveItem  = "remove_item"
	operationClear       = "clear"

	// DefaultTTL is how long a cart stays usable after creation.
	DefaultTTL = 14 * 24 * time.Hour

	scheduledDateLayout = "2006-01-02"
	scheduledTimeLayout = "15:04"
)
