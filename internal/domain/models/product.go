package models

// Product is the catalog view the fulfillment core needs: live price,
// stock and availability. Catalog CRUD is owned elsewhere.
type Product struct {
	ID     int64
	Title  string
	Format string // e.g., "hardcover", "large print", "medium paperback"
	Price  int64  // cents
	Stock  int
	Active bool
}

// CartItem is one product+quantity entry in a user's cart.
type CartItem struct {
	ProductID int64
	Quantity  int
}

// Cart holds the items a checkout converts into an order.
type Cart struct {
	UserID int64
	Items  []CartItem
}
