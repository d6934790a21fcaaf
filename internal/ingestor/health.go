package ingestor

import "time"

// unhealthyAfter mirrors httpapi.UnhealthyAfter without importing httpapi,
// keeping this package free of an HTTP dependency (§6).
const unhealthyAfter = 60 * time.Second

// CheckHealth implements httpapi.HealthChecker.
func (l *Loop) CheckHealth() (data interface{}, healthy bool, errMsg string) {
	lastAttemptedAt, lastSuccessfulAt, bufferLen, lastErr := l.health.Snapshot()

	payload := map[string]interface{}{
		"last_attempted_at":  lastAttemptedAt,
		"last_successful_at": lastSuccessfulAt,
		"fallback_buffer_len": bufferLen,
	}
	if lastErr != nil {
		payload["last_error"] = lastErr.Error()
	}

	if lastSuccessfulAt.IsZero() || time.Since(lastSuccessfulAt) > unhealthyAfter {
		msg := "no successful fetch within threshold"
		if lastErr != nil {
			msg = lastErr.Error()
		}
		return payload, false, msg
	}

	return payload, true, ""
}
