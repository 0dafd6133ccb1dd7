// Package consensus aggregates stake-weighted verdicts and drives bounty
// resolution.
package consensus

// Verdict is the consensus outcome for a bounty. Values match the
// bounty_verdict enum.
type Verdict string

const (
	VerdictPending   Verdict = "pending"
	VerdictMalicious Verdict = "malicious"
	VerdictBenign    Verdict = "benign"
)

// Ballot is the order-independent content of one submission: what was
// claimed, how confidently, and with how much at stake.
type Ballot struct {
	Malicious  bool
	Confidence int
	Stake      int64
}

// TallyResult carries the per-side weights and the decided verdict.
// Weights are raw stake×confidence sums; any common normalization factor
// cancels out of the percentage comparison, so integer weights keep the
// decision exact.
type TallyResult struct {
	MaliciousWeight int64
	BenignWeight    int64
	TotalWeight     int64
	Verdict         Verdict
}

// Tally computes the weighted vote. A side wins with at least thresholdPct
// of the total weight; anything less, including exact ties and empty
// ballots, is Pending. Summation is commutative, so arrival order cannot
// influence the result.
func Tally(ballots []Ballot, thresholdPct int64) TallyResult {
	var r TallyResult
	r.Verdict = VerdictPending

	for _, b := range ballots {
		w := b.Stake * int64(b.Confidence)
		if b.Malicious {
			r.MaliciousWeight += w
		} else {
			r.BenignWeight += w
		}
	}
	r.TotalWeight = r.MaliciousWeight + r.BenignWeight
	if r.TotalWeight == 0 {
		return r
	}

	// weight*100/total >= threshold, compared without division.
	switch {
	case r.MaliciousWeight*100 >= thresholdPct*r.TotalWeight:
		r.Verdict = VerdictMalicious
	case r.BenignWeight*100 >= thresholdPct*r.TotalWeight:
		r.Verdict = VerdictBenign
	}
	return r
}

// Winning maps the verdict to the winning claim, nil when Pending.
func (r TallyResult) Winning() *bool {
	switch r.Verdict {
	case VerdictMalicious:
		v := true
		return &v
	case VerdictBenign:
		v := false
		return &v
	default:
		return nil
	}
}
