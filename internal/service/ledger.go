package service

// Fixed ledger amounts.
const (
	RewardRegistration    = 5
	RewardApprovedComment = 1
	RewardApprovedProject = 3
	CostVote              = 1
)

// ApplyDelta returns balance+delta, or InsufficientTokens when the result
// would be negative. The balance is left as it was on failure.
func ApplyDelta(balance, delta int) (int, error) {
	next := balance + delta
	if next < 0 {
		return balance, errf(KindInsufficientTokens, "not enough tokens: have %d, need %d", balance, -delta)
	}
	return next, nil
}
