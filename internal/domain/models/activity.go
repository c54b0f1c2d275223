package models

// ActivityKind tells which record a CropActivity wraps.
type ActivityKind string

const (
	ActivityVisit    ActivityKind = "visit"
	ActivityPurchase ActivityKind = "purchase"
)

// CropActivity is a read-only entry of a farmer's timeline for one crop.
type CropActivity struct {
	Kind     ActivityKind `json:"kind"`
	Date     string       `json:"date"`
	Visit    *Visit       `json:"visit,omitempty"`
	Purchase *Purchase    `json:"purchase,omitempty"`
}
