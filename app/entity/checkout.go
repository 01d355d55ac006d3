package entity

const (
	CheckoutStatusOpen     = "open"
	CheckoutStatusComplete = "complete"
	CheckoutStatusExpired  = "expired"

	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

// CheckoutStatus is the processor-side view of one hosted checkout session.
type CheckoutStatus struct {
	SessionID     string
	Status        string
	PaymentStatus string
	AmountTotal   int64
	Currency      string
}

func (s *CheckoutStatus) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

func (s *CheckoutStatus) Expired() bool {
	return s.Status == CheckoutStatusExpired
}
