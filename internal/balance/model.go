package balance

import "time"

// Balance represents a user's credit allowance for the current period.
type Balance struct {
	Plan     string    `json:"plan"`
	Limit    int       `json:"limit"`
	Used     int       `json:"used"`
	ResetsAt time.Time `json:"resetsAt"`
}

// Remaining returns the credits still available this period.
func (b Balance) Remaining() int {
	if b.Used >= b.Limit {
		return 0
	}
	return b.Limit - b.Used
}
