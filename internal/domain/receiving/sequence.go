package receiving

import "fmt"

// SequenceCounterReception is the counter name for reception numbers
const SequenceCounterReception = "reception"

// FormatSequenceNumber renders a counter value as prefix plus zero-padded number,
// e.g. RCP-000042. Values wider than width are not truncated.
func FormatSequenceNumber(prefix string, value int64, width int) string {
	if width < 1 {
		width = 1
	}
	return fmt.Sprintf("%s%0*d", prefix, width, value)
}
