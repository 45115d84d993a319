package entity

// Record is one extracted inspection-request entry, produced once per
// uploaded document and immutable afterwards. Missing fields are empty
// strings, never errors; downstream code must tolerate partial records.
type Record struct {
	RFINumber     string `json:"rfi_number"`
	Description   string `json:"description"`
	Date          string `json:"date"`
	DrawingNumber string `json:"drawing_number"`
	Location      string `json:"location"`
}

// IsEmpty reports whether extraction found nothing usable at all.
func (r Record) IsEmpty() bool {
	return r.RFINumber == "" && r.Description == "" && r.Date == "" &&
		r.DrawingNumber == "" && r.Location == ""
}
