package monitoring

import "strconv"

// Outcome label for successful operations
const OutcomeSuccess = "success"

// StatusClass buckets an HTTP status code into "1xx".."5xx"
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}
