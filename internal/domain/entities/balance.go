package entities

// Balance tracks a user's yearly allowance for one leave type, in business days
type Balance struct {
	UserID       string    `json:"user_id" db:"user_id"`
	LeaveType    LeaveType `json:"leave_type" db:"leave_type"`
	Year         int       `json:"year" db:"year"`
	EntitledDays int       `json:"entitled_days" db:"entitled_days"`
	UsedDays     int       `json:"used_days" db:"used_days"`
}

// RemainingDays returns the days still available for this type and year
func (b *Balance) RemainingDays() int {
	return b.EntitledDays - b.UsedDays
}

// CanCover reports whether the balance can absorb the given number of days.
// Unpaid leave is never balance-limited.
func (b *Balance) CanCover(days int) bool {
	if b.LeaveType == LeaveUnpaid {
		return true
	}
	return b.RemainingDays() >= days
}
