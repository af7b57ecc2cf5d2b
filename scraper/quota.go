package scraper

// Admit decides how many records of an incoming batch fit the quota.
// Overshooting batches are cut to a prefix so the earliest records are kept.
// done reports whether the quota is met after accepting.
func Admit(current, incoming, target int) (accepted int, done bool) {
	if current >= target {
		return 0, true
	}
	if incoming <= 0 {
		return 0, false
	}
	if current+incoming > target {
		return target - current, true
	}
	return incoming, current+incoming == target
}
