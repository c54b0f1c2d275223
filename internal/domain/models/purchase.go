package models

// Purchase records fertilizer or pesticide bought by a farmer. RemainingAmount
// is expected to equal TotalAmount - AmountPaid; nothing enforces it.
type Purchase struct {
	ID              string   `bson:"id,omitempty" json:"id"`
	FarmerID        string   `bson:"farmerId" json:"farmerId"`
	Crop            CropRef  `bson:"crop" json:"crop"`
	Date            string   `bson:"date" json:"date"`
	Items           []string `bson:"items,omitempty" json:"items"`
	Quantity        float64  `bson:"quantity,omitempty" json:"quantity,omitempty"`
	TotalAmount     float64  `bson:"totalAmount" json:"totalAmount"`
	AmountPaid      float64  `bson:"amountPaid" json:"amountPaid"`
	RemainingAmount float64  `bson:"remainingAmount" json:"remainingAmount"`
	WorkingCombo    *bool    `bson:"workingCombo,omitempty" json:"workingCombo,omitempty"`
	Images          []string `bson:"images,omitempty" json:"images,omitempty"`
	CreatedBy       string   `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt       string   `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt       string   `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}
