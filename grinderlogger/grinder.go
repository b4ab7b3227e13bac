package grinderlogger

import (
	"sort"

	"github.com/olympus-go/cogs/cog"
)

const day = 24 * 60 * 60

// Tier is a grinder level. Amount is owed per day.
type Tier struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

type Grinder struct {
	Tier     int   `json:"tier"`
	Donated  int64 `json:"donated"`
	Due      int64 `json:"due"`
	Reminded bool  `json:"reminded"`
	Times    int   `json:"times"`
	Since    int64 `json:"since"`
}

func (g *Grinder) overdue(now int64) bool {
	return g.Due <= now
}

// pay credits amount at perDay and pushes the due date forward proportionally.
func (g *Grinder) pay(amount int64, perDay int64, maxDays int, now int64) error {
	if perDay <= 0 {
		return cog.InputError("This tier has no daily amount.")
	}

	days := amount / perDay
	if maxDays > 0 && days > int64(maxDays) {
		return cog.InputError("A single payment can cover at most %d days.", maxDays)
	}
	seconds := days*day + int64(float64(amount%perDay)/float64(perDay)*day)

	g.Due += seconds
	g.Donated += amount
	g.Times++
	if !g.overdue(now) {
		g.Reminded = false
	}

	return nil
}

type guildDoc struct {
	Tiers        map[int]Tier        `json:"tiers"`
	Grinders     map[string]*Grinder `json:"grinders"`
	Channel      string              `json:"channel"`
	ManagerRoles []string            `json:"manager_roles"`
}

func (d *guildDoc) SetDefaults() {
	d.Tiers = make(map[int]Tier)
	d.Grinders = make(map[string]*Grinder)
}

func (d *guildDoc) tierLevels() []int {
	levels := make([]int, 0, len(d.Tiers))
	for level := range d.Tiers {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	return levels
}

type dueGrinder struct {
	UserID string
	Due    int64
}

// remindable marks every overdue grinder that was not reminded yet and returns them ordered by due date.
func (d *guildDoc) remindable(now int64) []dueGrinder {
	var due []dueGrinder
	for id, g := range d.Grinders {
		if g.Reminded || !g.overdue(now) {
			continue
		}
		g.Reminded = true
		due = append(due, dueGrinder{UserID: id, Due: g.Due})
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].Due == due[j].Due {
			return due[i].UserID < due[j].UserID
		}
		return due[i].Due < due[j].Due
	})
	return due
}
