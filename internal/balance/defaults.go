package balance

import "time"

const periodLength = 30 * 24 * time.Hour

func defaultBalance() Balance {
	return Balance{
		Plan:     "starter",
		Limit:    50,
		Used:     0,
		ResetsAt: time.Now().UTC().Add(periodLength),
	}
}
