package mask

import (
	"fmt"
	"strconv"
	"strings"
)

// The canonical encoding records only the lengths of maximal foreground runs
// in the row-major flattening, formatted as the historical consumers expect:
// "[(3, 1), (2, 1)]". Background runs carry no length and no offset, so the
// canonical form cannot be decoded back into pixel positions. EncodeOffsets
// and DecodeOffsets provide the invertible variant for callers that need an
// exact round trip.

// Encode serializes a binary mask as the list of its maximal foreground run
// lengths in scan order. An all-background mask encodes to "[]".
func Encode(bm BinaryMask) string {
	flat := bm.Data
	if len(flat) == 0 {
		return "[]"
	}

	var runs []int
	count := 1
	for i := 1; i < len(flat); i++ {
		if flat[i] == flat[i-1] {
			count++
			continue
		}
		if flat[i-1] == 1 {
			runs = append(runs, count)
		}
		count = 1
	}
	if flat[len(flat)-1] == 1 {
		runs = append(runs, count)
	}

	if len(runs) == 0 {
		return "[]"
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, n := range runs {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "(%d, 1)", n)
	}
	sb.WriteByte(']')
	return sb.String()
}

// ParseRuns parses a canonical encoding back into its run lengths. Positions
// are not recoverable from this form; see DecodeOffsets.
func ParseRuns(encoded string) ([]int, error) {
	s := strings.TrimSpace(encoded)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("malformed run-length encoding %q", encoded)
	}
	s = strings.TrimSpace(s[1 : len(s)-1])
	if s == "" {
		return nil, nil
	}

	var runs []int
	for _, pair := range strings.Split(s, "), (") {
		pair = strings.TrimPrefix(pair, "(")
		pair = strings.TrimSuffix(pair, ")")
		fields := strings.Split(pair, ",")
		if len(fields) != 2 || strings.TrimSpace(fields[1]) != "1" {
			return nil, fmt.Errorf("malformed run pair %q", pair)
		}
		length, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil || length <= 0 {
			return nil, fmt.Errorf("invalid run length %q", fields[0])
		}
		runs = append(runs, length)
	}
	return runs, nil
}

// EncodeOffsets serializes a binary mask as "start:length" pairs over the
// row-major flattening, one per maximal foreground run. Unlike Encode, the
// output determines the mask exactly given its dimensions.
func EncodeOffsets(bm BinaryMask) string {
	var sb strings.Builder
	start := -1
	for i, v := range bm.Data {
		if v == 1 && start < 0 {
			start = i
		}
		if v == 0 && start >= 0 {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%d:%d", start, i-start)
			start = -1
		}
	}
	if start >= 0 {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d:%d", start, len(bm.Data)-start)
	}
	return sb.String()
}

// DecodeOffsets reconstructs an h×w binary mask from its offset encoding.
func DecodeOffsets(encoded string, h, w int) (BinaryMask, error) {
	bm := NewBinary(h, w)
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return bm, nil
	}
	for _, pair := range strings.Fields(encoded) {
		start, length, ok := splitOffsetPair(pair)
		if !ok {
			return BinaryMask{}, fmt.Errorf("malformed offset pair %q", pair)
		}
		if start < 0 || length <= 0 || start+length > len(bm.Data) {
			return BinaryMask{}, fmt.Errorf("offset run %q out of bounds for %dx%d mask", pair, h, w)
		}
		for i := start; i < start+length; i++ {
			bm.Data[i] = 1
		}
	}
	return bm, nil
}

func splitOffsetPair(pair string) (start, length int, ok bool) {
	idx := strings.IndexByte(pair, ':')
	if idx <= 0 || idx == len(pair)-1 {
		return 0, 0, false
	}
	start, err := strconv.Atoi(pair[:idx])
	if err != nil {
		return 0, 0, false
	}
	length, err = strconv.Atoi(pair[idx+1:])
	if err != nil {
		return 0, 0, false
	}
	return start, length, true
}
