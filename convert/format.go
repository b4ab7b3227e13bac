package convert

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatInt renders n with thousands separators, e.g. 1500000 -> "1,500,000".
func FormatInt(n int64) string {
	return printer.Sprintf("%d", n)
}

// HumanizeDuration renders d as "1 day, 2 hours and 5 seconds". Sub-second precision is dropped.
func HumanizeDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0 seconds"
	}

	units := []struct {
		name string
		size time.Duration
	}{
		{"day", 24 * time.Hour},
		{"hour", time.Hour},
		{"minute", time.Minute},
		{"second", time.Second},
	}

	var parts []string
	for _, u := range units {
		n := d / u.size
		if n == 0 {
			continue
		}
		d -= n * u.size

		part := fmt.Sprintf("%d %s", n, u.name)
		if n != 1 {
			part += "s"
		}
		parts = append(parts, part)
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}
