package dto

// AddItemForm is the multipart form accompanying an item upload.
type AddItemForm struct {
	Slot    string   `form:"slot" validate:"required,oneof=shirt pants shoes"`
	Styles  []string `form:"styles" validate:"required,min=1,dive,required,max=50"`
	Genders []string `form:"genders" validate:"required,min=1,dive,oneof=male female unisex"`
	Sizes   []string `form:"sizes" validate:"required,min=1,dive,oneof=S M L XL"`
	URL     *string  `form:"url" validate:"omitempty,url,max=255"`
	Price   *float64 `form:"price" validate:"omitempty,gte=0,lt=100000000"`
}

// EditItemRequest replaces the editable core attributes of an item.
type EditItemRequest struct {
	Colour  string   `json:"colour" validate:"required"`
	Styles  []string `json:"styles" validate:"required,min=1,dive,required,max=50"`
	Genders []string `json:"genders" validate:"required,min=1,dive,oneof=male female unisex"`
	Sizes   []string `json:"sizes" validate:"required,min=1,dive,oneof=S M L XL"`
	URL     *string  `json:"url" validate:"omitempty,url,max=255"`
	Price   *float64 `json:"price" validate:"omitempty,gte=0,lt=100000000"`
}

// DetailsRequest patches tags, season and notes of an item or outfit.
type DetailsRequest struct {
	Tags   *[]string `json:"tags" validate:"omitempty,max=30,dive,max=50"`
	Season *string   `json:"season" validate:"omitempty,oneof=Spring Summer Fall Winter"`
	Notes  *string   `json:"notes" validate:"omitempty,max=2000"`
}

// BulkDeleteRequest lists item ids to delete.
type BulkDeleteRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,max=1000,dive,gt=0"`
}

// ShareOutfitRequest names the recipient of a share.
type ShareOutfitRequest struct {
	ToUserID int64  `json:"to_user_id" validate:"required_without=ToEmail,omitempty,gt=0"`
	ToEmail  string `json:"to_email" validate:"required_without=ToUserID,omitempty,email"`
}
