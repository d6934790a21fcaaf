package projector

import "time"

const unhealthyAfter = 60 * time.Second

// CheckHealth implements httpapi.HealthChecker.
func (l *Loop) CheckHealth() (data interface{}, healthy bool, errMsg string) {
	lastProcessed, lastErr := l.health.snapshot()

	payload := map[string]interface{}{
		"last_processed_updated_at": lastProcessed,
	}
	if lastErr != nil {
		payload["last_error"] = lastErr.Error()
	}

	if lastProcessed.IsZero() || time.Since(lastProcessed) > unhealthyAfter {
		msg := "no snapshot projected within threshold"
		if lastErr != nil {
			msg = lastErr.Error()
		}
		return payload, false, msg
	}

	return payload, true, ""
}
