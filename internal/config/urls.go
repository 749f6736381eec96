package config

import (
	"fmt"
	"net/url"
)

// validateWSURL enforces §4.1's URL shape: scheme ws/wss, hostname required, no
// query string or fragment.
func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("hostname is required")
	}
	if u.RawQuery != "" {
		return fmt.Errorf("query string is not allowed")
	}
	if u.Fragment != "" {
		return fmt.Errorf("fragment is not allowed")
	}
	return nil
}
