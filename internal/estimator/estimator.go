// Package estimator guesses an upper bound of a message's encoded size so senders can reserve a
// buffer without running the size routine.
package estimator

import (
	"github.com/wham/apigen/internal/fieldtype"
	"github.com/wham/apigen/internal/schema"
)

// Max is the largest estimate; generated code stores it in a uint8_t.
const Max = 255

// Sum adds up the field estimates.
func Sum(fields []fieldtype.TypeInfo) int {
	total := 0
	for _, f := range fields {
		if f.Field().Deprecated {
			continue
		}
		total += f.Estimate()
	}
	return total
}

// Check rejects estimates that do not fit ESTIMATED_SIZE.
func Check(message string, estimate int) error {
	if estimate > Max {
		return schema.Errorf(message, "estimated size %d exceeds maximum of %d, shrink the message or split it", estimate, Max)
	}
	return nil
}

// Message returns the checked estimate of m from the field behavior planned for it.
func Message(m *schema.Message, fields []fieldtype.TypeInfo) (int, error) {
	est := Sum(fields)
	return est, Check(m.Name, est)
}
