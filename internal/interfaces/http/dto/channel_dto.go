package dto

// ConnectChannelRequest links the caller's supplier account to a channel
type ConnectChannelRequest struct {
	ChannelType string            `json:"channel_type" binding:"required,channel_type"`
	Credentials map[string]string `json:"credentials" binding:"required,min=1"`
	AutoPublish bool              `json:"auto_publish"`
}

// UpdateCredentialsRequest replaces the stored credentials of a connection
type UpdateCredentialsRequest struct {
	Credentials map[string]string `json:"credentials" binding:"required,min=1"`
}

// CreateMappingRequest links an active product to a connection
type CreateMappingRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
}

// OrderListQuery filters pulled remote orders
type OrderListQuery struct {
	State string `form:"state" binding:"omitempty,oneof=resolved applied error"`
}

// LimitQuery bounds history listings
type LimitQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}
