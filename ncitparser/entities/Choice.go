package entities

// Choice is one "code, label" pair of a choices cell
type Choice struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}
