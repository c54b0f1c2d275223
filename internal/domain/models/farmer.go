package models

// CropRef is the embedded reference to a catalog crop.
type CropRef struct {
	ID   string `bson:"id" json:"id"`
	Name string `bson:"name" json:"name"`
}

// Farmer is the aggregate root for visits and purchases. TotalDue and
// TotalPaid only change as a side effect of purchase writes and
// LastVisitDate only as a side effect of visit creation.
type Farmer struct {
	ID            string    `bson:"id,omitempty" json:"id"`
	Name          string    `bson:"name" json:"name"`
	Phone         string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Village       string    `bson:"village,omitempty" json:"village,omitempty"`
	District      string    `bson:"district,omitempty" json:"district,omitempty"`
	State         string    `bson:"state,omitempty" json:"state,omitempty"`
	LandAcres     float64   `bson:"landAcres,omitempty" json:"landAcres,omitempty"`
	ProfileImage  string    `bson:"profileImage,omitempty" json:"profileImage,omitempty"`
	Crops         []CropRef `bson:"crops,omitempty" json:"crops"`
	TotalDue      float64   `bson:"totalDue" json:"totalDue"`
	TotalPaid     float64   `bson:"totalPaid" json:"totalPaid"`
	LastVisitDate string    `bson:"lastVisitDate,omitempty" json:"lastVisitDate,omitempty"`
	CreatedBy     string    `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt     string    `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt     string    `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}
