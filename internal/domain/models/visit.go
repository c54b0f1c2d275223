package models

// CropHealth grades the crop condition observed during a visit.
type CropHealth string

const (
	CropHealthGood    CropHealth = "good"
	CropHealthAverage CropHealth = "average"
	CropHealthPoor    CropHealth = "poor"
)

// CropHealthLevels lists every valid grade.
var CropHealthLevels = []CropHealth{CropHealthGood, CropHealthAverage, CropHealthPoor}

// Valid reports whether h is a known grade.
func (h CropHealth) Valid() bool {
	switch h {
	case CropHealthGood, CropHealthAverage, CropHealthPoor:
		return true
	}
	return false
}

// MaxVisitImages caps the embedded images of a visit.
const MaxVisitImages = 5

// Visit records one field visit to a farmer for one crop.
type Visit struct {
	ID              string     `bson:"id,omitempty" json:"id"`
	FarmerID        string     `bson:"farmerId" json:"farmerId"`
	Crop            CropRef    `bson:"crop" json:"crop"`
	Date            string     `bson:"date" json:"date"`
	NextVisitDate   string     `bson:"nextVisitDate,omitempty" json:"nextVisitDate,omitempty"`
	CropHealth      CropHealth `bson:"cropHealth" json:"cropHealth"`
	Notes           string     `bson:"notes,omitempty" json:"notes,omitempty"`
	Recommendations string     `bson:"recommendations,omitempty" json:"recommendations,omitempty"`
	Images          []string   `bson:"images,omitempty" json:"images,omitempty"`
	CreatedBy       string     `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt       string     `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt       string     `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}
