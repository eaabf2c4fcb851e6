package metrics

import "fmt"

func formatAlert(name string, value, limit float64) string {
	return fmt.Sprintf("%s=%.4f exceeds limit %.4f", name, value, limit)
}

func formatAlertInt(name string, value, limit int) string {
	return fmt.Sprintf("%s=%d exceeds limit %d", name, value, limit)
}
