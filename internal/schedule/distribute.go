package schedule

import "fmt"

// Distribute splits total cents over n installments. The first total%n
// installments get one extra cent, so the result always sums to total.
func Distribute(total int64, n int) ([]int64, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidInstallmentCount, n)
	}
	if total < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNegativeAmount, total)
	}

	base := total / int64(n)
	remainder := total % int64(n)

	amounts := make([]int64, n)
	for i := range amounts {
		amounts[i] = base
		if int64(i) < remainder {
			amounts[i]++
		}
	}
	return amounts, nil
}
