package receiptformat

import (
	"encoding/json"
	"fmt"
)

// RawBytes holds printer bytes. JSON accepts an array of numbers 0..255 or
// a string whose characters are taken as single bytes. It encodes as an
// array of numbers.
type RawBytes []byte

func (b *RawBytes) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		out := make([]byte, 0, len(s))
		for _, r := range s {
			out = append(out, byte(r))
		}
		*b = out
		return nil
	}

	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return fmt.Errorf("raw data must be a byte array or string: %w", err)
	}

	out := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return fmt.Errorf("raw data[%d]: %d is not a byte", i, n)
		}
		out[i] = byte(n)
	}
	*b = out
	return nil
}

func (b RawBytes) MarshalJSON() ([]byte, error) {
	nums := make([]int, len(b))
	for i, v := range b {
		nums[i] = int(v)
	}
	return json.Marshal(nums)
}
