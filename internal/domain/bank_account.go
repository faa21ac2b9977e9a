package domain

import "github.com/google/uuid"

type BankEntry struct {
	ID            uuid.UUID
	BankAccountID uuid.UUID
	BankCode      string
	AccountNumber string
	HolderName    string
}
