package collections

import "strconv"

// NextID derives the next record id from a collection's current contents:
// the maximum of all ids that parse as integers, plus one, as a string.
// Non-numeric ids (e.g. seed-created "user_1700000000000") are skipped, so
// ids stay monotonic without ever failing. An empty collection starts at "1".
// Deleted ids are never reused because the maximum only grows.
func NextID(records []Record) string {
	maxID := 0
	for _, r := range records {
		n, err := strconv.Atoi(r.ID())
		if err != nil {
			continue
		}
		if n > maxID {
			maxID = n
		}
	}
	return strconv.Itoa(maxID + 1)
}
