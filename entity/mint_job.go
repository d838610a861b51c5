package entity

import (
	"time"

	"github.com/google/uuid"
)

type MintJobStatus string

const (
	MintJobStatusPending   MintJobStatus = "pending"
	MintJobStatusCompleted MintJobStatus = "completed"
	MintJobStatusFailed    MintJobStatus = "failed"
)

// MintJob is one persisted request to mint a single card NFT. The payload
// columns (card_type .. rank) are immutable after creation; lifecycle
// columns are written only by the mint processor.
type MintJob struct {
	ID                uint          `json:"id" gorm:"primaryKey"`
	MintID            uuid.UUID     `json:"mint_id" gorm:"type:uuid;uniqueIndex;not null"`
	CardType          string        `json:"card_type" binding:"required" gorm:"not null"`
	Level             int           `json:"level" gorm:"not null"`
	Title             string        `json:"title" gorm:"not null"`
	Recipient         string        `json:"recipient" binding:"required" gorm:"not null;index"`
	Rarity            string        `json:"rarity" gorm:"not null"`
	Rank              int           `json:"rank" gorm:"not null"`
	Status            MintJobStatus `json:"status" gorm:"type:varchar(16);not null;index;default:pending"`
	RetryCount        int           `json:"retry_count" gorm:"not null;default:0"`
	ErrorMessage      *string       `json:"error_message,omitempty" gorm:"type:text"`
	TransactionDigest *string       `json:"transaction_digest,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
}

func (MintJob) TableName() string {
	return "mint_jobs"
}

// Terminal reports whether the job has reached a state the processor will
// never mutate again.
func (j *MintJob) Terminal() bool {
	return j.Status == MintJobStatusCompleted || j.Status == MintJobStatusFailed
}
