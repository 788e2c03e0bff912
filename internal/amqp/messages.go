package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Reasons carried on a recalculation message.
const (
	ReasonRecurringChanged   = "recurring_changed"
	ReasonRecurringProcessed = "recurring_processed"
	ReasonBalanceChanged     = "balance_changed"
	ReasonTransactionAdded   = "transaction_added"
	ReasonScheduled          = "scheduled"
)

// ForecastRecalcMessage asks the worker to recalculate every stored forecast
// of one user. It carries no amounts: the worker reloads current state.
type ForecastRecalcMessage struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewForecastRecalcMessage creates a message with a fresh id.
func NewForecastRecalcMessage(userID int64, reason string) *ForecastRecalcMessage {
	return &ForecastRecalcMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ForecastRecalcMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ForecastRecalcMessageFromJSON decodes a message from JSON bytes
func ForecastRecalcMessageFromJSON(data []byte) (*ForecastRecalcMessage, error) {
	var msg ForecastRecalcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
