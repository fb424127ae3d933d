package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderItemStatusPending   = "PENDING"
	OrderItemStatusPreparing = "PREPARING"
	OrderItemStatusFinished  = "FINISHED"
	OrderItemStatusCanceled  = "CANCELED"
)

const (
	BillStatusOpen = "OPEN"
	BillStatusPaid = "PAID"
)

const (
	TableStatusFree     = "FREE"
	TableStatusOccupied = "OCCUPIED"
)

// ── Roles (CHECK constrained in DB) ──

const (
	UserRoleManager = "MANAGER"
	UserRoleWaiter  = "WAITER"
	UserRoleKitchen = "KITCHEN"
)

// ── Discounts ──

const (
	DiscountTypeNone       = ""
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED_AMOUNT"
)
