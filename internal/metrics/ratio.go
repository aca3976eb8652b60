// Package metrics computes accuracy, auto-classification, distribution,
// classwise and confusion matrix results over annotated records. Every
// function is pure: the same records always give the same result.
package metrics

// Percentage returns 100*num/den, or nil when den is not positive.
func Percentage(num, den int) *float64 {
	if den <= 0 {
		return nil
	}
	v := 100 * float64(num) / float64(den)
	return &v
}
