// Package models defines the shared transaction types used by the
// evaluation pipeline, the history stores, and the audit trail.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies the business purpose of a transaction.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeTransfer   TransactionType = "transfer"
	TransactionTypePayment    TransactionType = "payment"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypeFee        TransactionType = "fee"
	TransactionTypeInterest   TransactionType = "interest"
	TransactionTypeDividend   TransactionType = "dividend"
	TransactionTypeAdjustment TransactionType = "adjustment"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeTransfer,
		TransactionTypePayment, TransactionTypeRefund, TransactionTypeFee,
		TransactionTypeInterest, TransactionTypeDividend, TransactionTypeAdjustment:
		return true
	}
	return false
}

// TransactionStatus tracks the lifecycle of a persisted transaction.
// The evaluation pipeline only recommends an initial status; transitions
// on existing records happen outside this library.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusCompleted  TransactionStatus = "completed"
	StatusFailed     TransactionStatus = "failed"
	StatusCancelled  TransactionStatus = "cancelled"
	StatusReversed   TransactionStatus = "reversed"
)

// Transaction is a persisted transaction record. It doubles as the GORM
// model for the SQL-backed history store.
type Transaction struct {
	ID          uuid.UUID         `json:"id" gorm:"type:uuid;primary_key"`
	UserID      uuid.UUID         `json:"user_id" gorm:"type:uuid;index;not null"`
	Type        TransactionType   `json:"type" gorm:"type:varchar(20);not null"`
	Amount      decimal.Decimal   `json:"amount" gorm:"type:decimal(20,8);not null"`
	Currency    string            `json:"currency" gorm:"type:varchar(10)"`
	Status      TransactionStatus `json:"status" gorm:"type:varchar(20);index;not null"`
	Description string            `json:"description,omitempty" gorm:"type:text"`
	CreatedAt   time.Time         `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// TableName sets the table name for GORM.
func (Transaction) TableName() string {
	return "transactions"
}

// CounterpartyInfo describes the other party of a proposed transaction.
// It is typically produced by sanctions screening before evaluation.
type CounterpartyInfo struct {
	Name         string `json:"name,omitempty"`
	Country      string `json:"country,omitempty"`
	IsNew        bool   `json:"is_new_counterparty"`
	SanctionsHit bool   `json:"sanctions_hit"`
}

// ProposedTransaction is the input to the evaluation pipeline. It is not
// persisted; the caller persists a Transaction after acting on the decision.
type ProposedTransaction struct {
	UserID       uuid.UUID         `json:"user_id" validate:"required"`
	Type         TransactionType   `json:"type" validate:"required"`
	Amount       decimal.Decimal   `json:"amount"`
	Currency     string            `json:"currency,omitempty"`
	Description  string            `json:"description,omitempty"`
	Counterparty *CounterpartyInfo `json:"counterparty,omitempty"`
}
