package domain

// LineItem is one entry of a wishlist or cart as returned by the storefront API.
type LineItem struct {
	ID         string            `json:"id"`
	ProductID  string            `json:"product_id"`
	SkuID      string            `json:"sku_id,omitempty"`
	Name       string            `json:"name,omitempty"`
	Quantity   int               `json:"quantity"`
	Price      int64             `json:"price,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Wishlist is the remote wishlist resource.
type Wishlist struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Items []LineItem `json:"items"`
}

// Cart is the remote cart resource.
type Cart struct {
	ID          string     `json:"id"`
	Items       []LineItem `json:"items"`
	Currency    string     `json:"currency,omitempty"`
	TotalAmount int64      `json:"total_amount"`
}

// ItemCount returns the total quantity across items.
func ItemCount(items []LineItem) int {
	var n int
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// CloneItems returns a deep copy of items.
func CloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	for i, it := range items {
		out[i] = it
		if it.Attributes != nil {
			attrs := make(map[string]string, len(it.Attributes))
			for k, v := range it.Attributes {
				attrs[k] = v
			}
			out[i].Attributes = attrs
		}
	}
	return out
}

// LineItemIntent describes a requested wishlist addition. ItemID is empty
// for a pure add and set when an existing line is being reconfigured.
type LineItemIntent struct {
	ItemID     string            `json:"item_id,omitempty"`
	ProductID  string            `json:"product_id" validate:"required_without=SkuID"`
	SkuID      string            `json:"sku_id,omitempty"`
	Quantity   int               `json:"quantity" validate:"gte=0,lte=9999"`
	Attributes map[string]string `json:"attributes,omitempty"`
}
