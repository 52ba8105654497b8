package swaps

// ResultStatus tags a ProviderResult.
type ResultStatus int

const (
	ResultPending ResultStatus = iota
	ResultQuote
	ResultFailure
)

func (s ResultStatus) String() string {
	switch s {
	case ResultQuote:
		return "quote"
	case ResultFailure:
		return "failure"
	}
	return "pending"
}

const (
	RankDangerous = 0
	RankNormal    = 1
)

// ProviderResult is one provider's slot in an aggregate state. Trade is set
// only for quotes and Err only for failures.
type ProviderResult struct {
	Provider ProviderType
	Status   ResultStatus
	Trade    *Trade
	Err      *ProviderError
	Rank     int

	// Order is the registration index, Arrival the 1-based completion
	// sequence (0 while pending).
	Order   int
	Arrival int
}

func (r ProviderResult) IsQuote() bool   { return r.Status == ResultQuote }
func (r ProviderResult) IsFailure() bool { return r.Status == ResultFailure }
func (r ProviderResult) IsPending() bool { return r.Status == ResultPending }
