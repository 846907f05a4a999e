package orders

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	statusKeySeparator = "#"
	sortableWidth      = 20
	signBit            = uint64(1) << 63
)

// sortableMillis renders epoch ms as a fixed-width decimal string whose lexical
// order equals the numeric order over the whole int64 range.
func sortableMillis(t time.Time) string {
	return fmt.Sprintf("%0*d", sortableWidth, uint64(t.UnixMilli())^signBit)
}

func parseSortableMillis(s string) (time.Time, error) {
	if len(s) != sortableWidth {
		return time.Time{}, fmt.Errorf("sortable timestamp %q: want %d digits", s, sortableWidth)
	}
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("sortable timestamp %q: %w", s, err)
	}
	return time.UnixMilli(int64(u ^ signBit)).UTC(), nil
}

// EncodeStatusSortKey builds the status index sort key "<ordinal>#<sortable ms>".
func EncodeStatusSortKey(status Status, createdAt time.Time) string {
	return StatusSortKeyPrefix(status) + sortableMillis(createdAt)
}

// StatusSortKeyPrefix is the begins_with operand selecting every order in status.
func StatusSortKeyPrefix(status Status) string {
	return strconv.Itoa(int(status)) + statusKeySeparator
}

// DecodeStatusSortKey is the inverse of EncodeStatusSortKey.
func DecodeStatusSortKey(key string) (Status, time.Time, error) {
	ordinal, ts, ok := strings.Cut(key, statusKeySeparator)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("status sort key %q: missing separator", key)
	}
	n, err := strconv.Atoi(ordinal)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("status sort key %q: %w", key, err)
	}
	createdAt, err := parseSortableMillis(ts)
	if err != nil {
		return 0, time.Time{}, err
	}
	return Status(n), createdAt, nil
}
