package dto

// CreateOrderRequest is the checkout request body.
type CreateOrderRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
}

// OrderStatusResponse is the read-only order status view.
type OrderStatusResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// OrderPaidResponse gates the download link.
type OrderPaidResponse struct {
	OrderID string `json:"order_id"`
	Paid    bool   `json:"paid"`
}

// CreateWithdrawalRequest is the request body for a seller cash-out.
type CreateWithdrawalRequest struct {
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	BankAccountID string `json:"bank_account_id" binding:"required,uuid"`
}

// RejectWithdrawalRequest carries the admin's rejection reason.
type RejectWithdrawalRequest struct {
	Reason string `json:"reason" binding:"required,max=255,safe_text"`
}

// OpenDisputeRequest is the buyer's dispute claim.
type OpenDisputeRequest struct {
	Reason string `json:"reason" binding:"required,min=3,max=1000,safe_text"`
}

// RejectDisputeRequest carries the admin's note.
type RejectDisputeRequest struct {
	Note string `json:"note" binding:"required,max=1000,safe_text"`
}

// RegisterBankAccountRequest is the request body for a new payout destination.
type RegisterBankAccountRequest struct {
	HolderName    string `json:"holder_name" binding:"required,min=2,max=100,safe_text"`
	AccountNumber string `json:"account_number" binding:"required,account_number"`
	IFSC          string `json:"ifsc" binding:"required,ifsc"`
}

// BalanceResponse is the seller balance view. HeldBalance is negative while
// the seller carries dispute debt.
type BalanceResponse struct {
	SellerID         string `json:"seller_id"`
	AvailableBalance int64  `json:"available_balance"`
	HeldBalance      int64  `json:"held_balance"`
}

// WebhookAckResponse acknowledges a durably recorded gateway event.
type WebhookAckResponse struct {
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
	Status    string `json:"status"`
}

// PageQuery is the offset pagination window for listings.
type PageQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}
