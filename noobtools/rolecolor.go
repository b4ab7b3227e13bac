package noobtools

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/olympus-go/cogs/cog"
)

// Rotation cycles a role through Colors, advancing every Interval seconds.
type Rotation struct {
	Interval int64 `json:"interval"`
	Next     int64 `json:"next"`
	Index    int   `json:"index"`
	Colors   []int `json:"colors"`
}

// advance returns the color to apply now and schedules the following one.
func (r *Rotation) advance(now int64) int {
	if r.Index >= len(r.Colors) {
		r.Index = 0
	}
	color := r.Colors[r.Index]
	r.Index = (r.Index + 1) % len(r.Colors)
	r.Next = now + r.Interval
	return color
}

type guildDoc struct {
	RoleColors map[string]*Rotation `json:"role_colors"`
}

func (d *guildDoc) SetDefaults() {
	d.RoleColors = make(map[string]*Rotation)
}

type roleColor struct {
	RoleID string
	Color  int
}

// due advances every rotation whose next change is not in the future.
func (d *guildDoc) due(now int64) []roleColor {
	var out []roleColor
	for roleID, r := range d.RoleColors {
		if r.Next > now || len(r.Colors) == 0 {
			continue
		}
		out = append(out, roleColor{RoleID: roleID, Color: r.advance(now)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out
}

// parseColor accepts #rrggbb, 0xrrggbb and rrggbb.
func parseColor(text string) (int, error) {
	hex := strings.ToLower(strings.TrimSpace(text))
	hex = strings.TrimPrefix(hex, "#")
	hex = strings.TrimPrefix(hex, "0x")

	if len(hex) != 6 {
		return 0, cog.InputError("`%s` is not a hex color like #ff8800.", text)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, cog.InputError("`%s` is not a hex color like #ff8800.", text)
	}
	return int(n), nil
}

func formatColor(c int) string {
	return fmt.Sprintf("#%06x", c)
}
