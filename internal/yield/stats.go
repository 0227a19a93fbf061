package yield

import (
	"sort"

	"github.com/tradereach/outreach-cli/internal/emaildisc"
	"github.com/tradereach/outreach-cli/internal/model"
)

// bucketFailures groups the still-emailless leads by why discovery came
// up empty, most frequent first. Ties break alphabetically so the output
// is stable.
func bucketFailures(leads []model.Lead, errCodes map[string]string) []model.FailureReason {
	counts := make(map[string]int)
	for i := range leads {
		if leads[i].Email != "" {
			continue
		}
		code, ok := errCodes[leads[i].ID]
		if !ok || code == "" {
			if leads[i].Website == "" {
				code = emaildisc.ErrCodeNoWebsite
			} else {
				code = emaildisc.ErrCodeNoEmailFound
			}
		}
		counts[code]++
	}

	reasons := make([]model.FailureReason, 0, len(counts))
	for code, n := range counts {
		reasons = append(reasons, model.FailureReason{Code: code, Count: n})
	}
	sort.Slice(reasons, func(i, j int) bool {
		if reasons[i].Count != reasons[j].Count {
			return reasons[i].Count > reasons[j].Count
		}
		return reasons[i].Code < reasons[j].Code
	})
	return reasons
}
