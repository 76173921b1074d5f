package core

// RecordSet is the result of one ledger aggregation query. It is built fresh
// per request and never cached.
type RecordSet struct {
	// Records is the set matching the active filter, newest first.
	Records []Record
	// Total sums every record the owner has, ignoring any filter.
	Total Money
	// FilteredTotal sums the filtered set. Nil means no filter was applied,
	// which is distinct from a filtered total of zero.
	FilteredTotal *Money
	// AverageTotal spreads the relevant total over twelve months: the
	// filtered total when a valid filter is active, the full total otherwise.
	AverageTotal Money
	// MonthTotal sums the owner's records in the current calendar month,
	// regardless of filter.
	MonthTotal Money
}

// Filtered reports whether a category filter was applied.
func (s RecordSet) Filtered() bool {
	return s.FilteredTotal != nil
}

// SumAmounts totals the amounts of a record slice.
func SumAmounts(records []Record) Money {
	var total Money
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total
}
