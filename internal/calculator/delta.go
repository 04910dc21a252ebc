package calculator

import "github.com/mmynk/splitledger/internal/models"

// ResolveDelta returns how much a single expense moves the balance of userA
// relative to userB. Positive means userB owes userA more; negative means
// userA owes userB more.
//
// An expense that does not involve both users contributes 0.
//
// For a PAYMENT the delta is the money one side handed to the other:
// paidByA - paidByB. For a shared expense it is the difference of the two
// users' net contributions (paid - owed), diluted by the number of
// participants on the expense.
//
// ResolveDelta(e, a, b) == -ResolveDelta(e, b, a) for every expense.
func ResolveDelta(e models.Expense, userA, userB string) float64 {
	if userA == userB {
		return 0
	}
	if !e.Involves(userA) || !e.Involves(userB) {
		return 0
	}

	paidA, paidB := paidBy(e, userA), paidBy(e, userB)

	if e.Type == models.ExpenseTypePayment {
		return paidA - paidB
	}

	netA := paidA - owedBy(e, userA)
	netB := paidB - owedBy(e, userB)
	return (netA - netB) / float64(max(1, len(e.Participants)))
}

func paidBy(e models.Expense, userID string) float64 {
	var sum float64
	for _, p := range e.PaidBy {
		if p.UserID == userID {
			sum += p.Amount
		}
	}
	return sum
}

func owedBy(e models.Expense, userID string) float64 {
	var sum float64
	for _, s := range e.Participants {
		if s.UserID == userID {
			sum += s.Amount
		}
	}
	return sum
}
