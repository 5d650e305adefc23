/*
balance.go - Balance aggregation over the change ledger

PURPOSE:
  Answers "how much leave does this contact have left?" for one absence
  type and absence period. Balances are never stored; they are summed
  from LeaveBalanceChange rows every time.

BALANCE COMPONENTS:
  Entitlement:    sum of entitlement-sourced changes that have not expired
  Approved:       day changes of approved, non public holiday requests
  PublicHolidays: day changes of public holiday requests
  Pending:        day changes of requests awaiting a decision

REMAINDER:
  Current = Entitlement + Approved + PublicHolidays
  Future  = Current + Pending

  Deductions are negative, so a 20 day entitlement with 2 approved days
  and 1 public holiday has a current remainder of 17.

SEE ALSO:
  - report/: builds Balances per absence type for the report view
*/
package leave

import "github.com/shopspring/decimal"

// =============================================================================
// BALANCE - Computed for an absence period
// =============================================================================

// Balance holds the summed components for one contact, type and period.
type Balance struct {
	Entitlement    decimal.Decimal `json:"entitlement"`
	Approved       decimal.Decimal `json:"approved"`
	PublicHolidays decimal.Decimal `json:"public_holidays"`
	Pending        decimal.Decimal `json:"pending"`
}

// Current returns the remainder counting only settled changes.
func (b Balance) Current() decimal.Decimal {
	return b.Entitlement.Add(b.Approved).Add(b.PublicHolidays)
}

// Future returns the remainder if every pending request is approved.
func (b Balance) Future() decimal.Decimal {
	return b.Current().Add(b.Pending)
}

// EntitlementValue sums the active changes sourced from an entitlement,
// skipping those expired on day asOf.
func EntitlementValue(changes []LeaveBalanceChange, asOf Date) decimal.Decimal {
	total := decimal.Zero
	for _, c := range changes {
		if c.SourceType != SourceEntitlement || c.Expired(asOf) {
			continue
		}
		total = total.Add(c.Amount)
	}
	return total
}

// Statuses groups resolved status values for partitioning requests.
type Statuses struct {
	Approved  map[string]bool
	Pending   map[string]bool
	Other     map[string]bool
	Cancelled string
}

// Bucket names where a day change counts.
type Bucket int

const (
	BucketNone Bucket = iota
	BucketApproved
	BucketPending
	BucketPublicHoliday
)

// Classify returns the bucket a request's day changes count towards.
func (s Statuses) Classify(r LeaveRequest) Bucket {
	switch {
	case r.IsPublicHoliday && !s.Other[r.StatusID]:
		return BucketPublicHoliday
	case s.Approved[r.StatusID]:
		return BucketApproved
	case s.Pending[r.StatusID]:
		return BucketPending
	default:
		return BucketNone
	}
}

// Accumulate adds day changes into b according to their request's status.
func (b *Balance) Accumulate(s Statuses, changes []DayBalanceChange) {
	for _, dc := range changes {
		switch s.Classify(dc.Request) {
		case BucketApproved:
			b.Approved = b.Approved.Add(dc.Change.Amount)
		case BucketPending:
			b.Pending = b.Pending.Add(dc.Change.Amount)
		case BucketPublicHoliday:
			b.PublicHolidays = b.PublicHolidays.Add(dc.Change.Amount)
		}
	}
}
