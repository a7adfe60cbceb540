package domain

// ItemCategory is the coarse kind of an e-waste item.
type ItemCategory string

const (
	CategoryPhone     ItemCategory = "phone"
	CategoryLaptop    ItemCategory = "laptop"
	CategoryBattery   ItemCategory = "battery"
	CategoryAppliance ItemCategory = "appliance"
	CategoryOther     ItemCategory = "other"
)

// ValueRange is an estimated recycling value in Malaysian ringgit.
type ValueRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ItemImage is a photo handed to an item classifier. Name is the client's
// file name, which some classifiers use as a hint.
type ItemImage struct {
	ContentType string
	Name        string
	Data        []byte
}

// ItemDescription is what a classifier reports about a photographed item.
// Item is suitable as the item field of a Submission.
type ItemDescription struct {
	Item                string       `json:"item"`
	Category            ItemCategory `json:"category"`
	EstimatedValue      ValueRange   `json:"estimated_value"`
	EnvironmentalImpact string       `json:"environmental_impact"`
	Hazard              bool         `json:"hazard"`
	HazardDetails       string       `json:"hazard_details,omitempty"`
}
