package repositories

// normalizeLimit turns "no limit requested" into gorm's cancel value;
// Limit(0) would otherwise return an empty page.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
