package dto

type UserList struct {
	Items []UserProfile `json:"items"`
	Total int64         `json:"total"`
}

// AdminConversation is the back-office view of a thread: raw participant ids,
// no display-name resolution.
type AdminConversation struct {
	ID        string `json:"id"`
	BuyerID   string `json:"buyer_id"`
	SellerID  string `json:"seller_id"`
	ListingID string `json:"listing_id"`
	CreatedAt string `json:"created_at"`
}

type AdminConversationList struct {
	Items []AdminConversation `json:"items"`
}
