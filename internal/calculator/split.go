// Package calculator holds the pure arithmetic of splitledger: splitting a
// total among participants and turning expense records into balances between
// users. Nothing here does I/O, reads global state or returns errors.
package calculator

import (
	"github.com/mmynk/splitledger/internal/models"
)

// ComputeSplit fills OwesAmount for every participant according to method.
// It returns a new slice; the input is left untouched.
//
// Inactive participants always owe 0. After the method has run, any rounding
// residue between total and the sum of active shares is added in full to the
// first active participant in list order, so the shares add up to total to
// the cent. Degenerate input (non-positive total, nobody active, zero total
// percentage or zero total shares, unknown method) yields all-zero shares.
func ComputeSplit(total float64, participants []models.Participant, method models.SplitMethod) []models.Participant {
	out := make([]models.Participant, len(participants))
	copy(out, participants)
	for i := range out {
		out[i].OwesAmount = 0
	}

	first := -1
	activeCount := 0
	for i, p := range out {
		if p.Active {
			if first < 0 {
				first = i
			}
			activeCount++
		}
	}
	if total <= 0 || activeCount == 0 {
		return out
	}

	switch method {
	case models.SplitEqually:
		share := RoundToCents(total / float64(activeCount))
		for i := range out {
			if out[i].Active {
				out[i].OwesAmount = share
			}
		}

	case models.SplitUnequally:
		for i := range out {
			if out[i].Active {
				out[i].OwesAmount = RoundToCents(parseAmount(out[i].SplitValue))
			}
		}

	case models.SplitPercentages:
		var totalPercent float64
		for _, p := range out {
			if p.Active {
				totalPercent += parseAmount(p.SplitValue)
			}
		}
		if totalPercent == 0 {
			return out
		}
		for i := range out {
			if out[i].Active {
				out[i].OwesAmount = RoundToCents(parseAmount(out[i].SplitValue) / 100 * total)
			}
		}

	case models.SplitShares:
		var totalShares float64
		for _, p := range out {
			if p.Active {
				totalShares += parseAmount(p.SplitValue)
			}
		}
		if totalShares == 0 {
			return out
		}
		costPerShare := total / totalShares
		for i := range out {
			if out[i].Active {
				out[i].OwesAmount = RoundToCents(parseAmount(out[i].SplitValue) * costPerShare)
			}
		}

	default:
		return out
	}

	applyResidue(out, total, first)
	return out
}

// applyResidue moves the rounding difference onto the participant at index first.
func applyResidue(out []models.Participant, total float64, first int) {
	var sum float64
	for _, p := range out {
		if p.Active {
			sum += p.OwesAmount
		}
	}
	if diff := RoundToCents(total - sum); diff != 0 {
		out[first].OwesAmount = RoundToCents(out[first].OwesAmount + diff)
	}
}

// SharesFromSplit converts computed participants into the shares persisted
// on an expense. Inactive participants are dropped.
func SharesFromSplit(participants []models.Participant) []models.Share {
	shares := make([]models.Share, 0, len(participants))
	for _, p := range participants {
		if p.Active {
			shares = append(shares, models.Share{UserID: p.UserID, Amount: p.OwesAmount})
		}
	}
	return shares
}
