package models

// Crop is an entry of the global crop catalog.
type Crop struct {
	ID        string `bson:"id,omitempty" json:"id"`
	Name      string `bson:"name" json:"name"`
	CreatedBy string `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt string `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
}

// Ref returns the embedded reference form of the crop.
func (c Crop) Ref() CropRef {
	return CropRef{ID: c.ID, Name: c.Name}
}
