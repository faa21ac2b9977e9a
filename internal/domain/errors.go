package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrDonorNotFound        = errors.New("donor not found")
	ErrDonationNotFound     = errors.New("donation not found")
	ErrPayoutNotFound       = errors.New("payout not found")
	ErrBankEntryNotFound    = errors.New("bank account entry not found")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrAmountBelowMinimum   = errors.New("amount below minimum donation")
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
	ErrMessageTooLong       = errors.New("message too long")
	ErrForbidden            = errors.New("not allowed to act on this resource")
	ErrCampaignCompleted    = errors.New("campaign already completed")
	ErrDonationNotPending   = errors.New("donation is no longer pending")
	ErrInsufficientBalance  = errors.New("amount exceeds withdrawable balance")
	ErrPayoutInProgress     = errors.New("another payout request for this campaign is in progress")
	ErrVersionConflict      = errors.New("optimistic lock conflict")
	ErrAlreadyTerminal      = errors.New("record already in terminal state")
	ErrGateway              = errors.New("payment gateway error")
)

// DonationStateError reports the state a donation was in when an operation
// needed it pending. It matches ErrDonationNotPending.
type DonationStateError struct {
	Status DonationStatus
}

func (e *DonationStateError) Error() string {
	return fmt.Sprintf("donation is %s: %s", e.Status, ErrDonationNotPending)
}

func (e *DonationStateError) Unwrap() error {
	return ErrDonationNotPending
}
