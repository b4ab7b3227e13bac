// Package convert turns raw command arguments into typed values. Every failure is a *Error whose UserMessage is
// safe to show back to the user that typed the argument.
package convert

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xhit/go-str2duration/v2"
)

// MaxAmount is the largest amount ParseAmount accepts.
const MaxAmount int64 = 999_999_999_999_999

// Error describes an argument that could not be converted.
type Error struct {
	Input  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("convert %q: %s", e.Input, e.Reason)
}

func (e *Error) UserMessage() string {
	return e.Reason
}

func fail(input string, format string, a ...any) *Error {
	return &Error{Input: input, Reason: fmt.Sprintf(format, a...)}
}

var amountSuffixes = map[byte]float64{
	'k': 1e3,
	'm': 1e6,
	'b': 1e9,
	't': 1e12,
}

// ParseAmount parses amounts such as "10000", "10,000", "10k", "1.5m", "2.5e6" or "1t".
func ParseAmount(text string) (int64, error) {
	raw := strings.ToLower(strings.TrimSpace(text))
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return 0, fail(text, "You need to provide an amount.")
	}

	multiplier := 1.0
	if m, ok := amountSuffixes[raw[len(raw)-1]]; ok {
		multiplier = m
		raw = raw[:len(raw)-1]
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fail(text, "`%s` is not a valid amount. Try something like `10000`, `10k`, `1.5m` or `2e6`.", text)
	}

	value *= multiplier
	if value < 0 {
		return 0, fail(text, "The amount can not be negative.")
	}
	if value > float64(MaxAmount) {
		return 0, fail(text, "The amount can not be greater than %s.", FormatInt(MaxAmount))
	}

	rounded := math.Round(value)
	if math.Abs(value-rounded) > 1e-6 {
		return 0, fail(text, "The amount must be a whole number.")
	}

	return int64(rounded), nil
}

// ParseDuration parses durations such as "30", "30s", "5m", "2h", "1d" or "1h30m" and rejects values outside
// [min, max]. A bare number is read as seconds.
func ParseDuration(text string, min time.Duration, max time.Duration) (time.Duration, error) {
	raw := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(text), " ", ""))
	if raw == "" {
		return 0, fail(text, "You need to provide a duration.")
	}

	var d time.Duration
	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if seconds > int64(math.MaxInt64/time.Second) {
			return 0, fail(text, "That duration is way too long.")
		}
		d = time.Duration(seconds) * time.Second
	} else {
		d, err = str2duration.ParseDuration(raw)
		if err != nil {
			return 0, fail(text, "`%s` is not a valid duration. Use something like `30s`, `5m`, `2h` or `1d`.", text)
		}
	}

	if d < 0 {
		return 0, fail(text, "The duration can not be negative.")
	}
	if min > 0 && d < min {
		return 0, fail(text, "The duration must be at least %s.", HumanizeDuration(min))
	}
	if max > 0 && d > max {
		return 0, fail(text, "The duration can not be longer than %s.", HumanizeDuration(max))
	}

	return d, nil
}

var (
	snowflakeRegex = regexp.MustCompile(`^[0-9]{15,21}$`)
	userRegex      = regexp.MustCompile(`^<@!?([0-9]{15,21})>$`)
	roleRegex      = regexp.MustCompile(`^<@&([0-9]{15,21})>$`)
	channelRegex   = regexp.MustCompile(`^<#([0-9]{15,21})>$`)
	customEmoji    = regexp.MustCompile(`^<(a?):([a-zA-Z0-9_]{2,32}):([0-9]{15,21})>$`)
)

func snowflake(text string, re *regexp.Regexp) (string, bool) {
	raw := strings.TrimSpace(text)
	if snowflakeRegex.MatchString(raw) {
		return raw, true
	}
	if m := re.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	return "", false
}

// UserID accepts a raw user id or a user mention.
func UserID(text string) (string, error) {
	if id, ok := snowflake(text, userRegex); ok {
		return id, nil
	}
	return "", fail(text, "`%s` is not a valid member. Mention them or use their id.", text)
}

// RoleID accepts a raw role id or a role mention.
func RoleID(text string) (string, error) {
	if id, ok := snowflake(text, roleRegex); ok {
		return id, nil
	}
	return "", fail(text, "`%s` is not a valid role. Mention it or use its id.", text)
}

// ChannelID accepts a raw channel id or a channel mention.
func ChannelID(text string) (string, error) {
	if id, ok := snowflake(text, channelRegex); ok {
		return id, nil
	}
	return "", fail(text, "`%s` is not a valid channel. Mention it or use its id.", text)
}

// Emoji accepts a unicode emoji or a custom emoji in its <:name:id> form and returns it unchanged.
func Emoji(text string) (string, error) {
	raw := strings.TrimSpace(text)
	if customEmoji.MatchString(raw) {
		return raw, nil
	}
	if raw == "" || len([]rune(raw)) > 8 {
		return "", fail(text, "`%s` is not a valid emoji.", text)
	}
	for _, r := range raw {
		if r < 0x80 {
			return "", fail(text, "`%s` is not a valid emoji.", text)
		}
	}
	return raw, nil
}

// Bool accepts the usual yes/no spellings.
func Bool(text string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true", "yes", "y", "on", "enable", "enabled", "1":
		return true, nil
	case "false", "no", "n", "off", "disable", "disabled", "0":
		return false, nil
	}
	return false, fail(text, "`%s` is not a valid true/false value.", text)
}

// Int parses a plain integer within [min, max].
func Int(text string, min int64, max int64) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, fail(text, "`%s` is not a valid number.", text)
	}
	if n < min || n > max {
		return 0, fail(text, "The number must be between %d and %d.", min, max)
	}
	return n, nil
}
