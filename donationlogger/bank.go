package donationlogger

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// deletedUserID replaces the id of users who asked for their data to be removed. Their balance stays in the bank
// total.
const deletedUserID = "0"

var bankNameRegex = regexp.MustCompile(`^\S{1,20}$`)

type Bank struct {
	Name     string             `json:"name"`
	Hidden   bool               `json:"hidden"`
	Emoji    string             `json:"emoji"`
	Roles    map[int64][]string `json:"roles"`
	Donators map[string]int64   `json:"donators"`
}

type guildDoc struct {
	Banks        map[string]*Bank `json:"banks"`
	ManagerRoles []string         `json:"manager_roles"`
	LogChannel   string           `json:"log_channel"`
}

func (d *guildDoc) SetDefaults() {
	d.Banks = make(map[string]*Bank)
}

func bankKey(name string) string {
	return strings.ToLower(name)
}

func (d *guildDoc) bank(name string) (*Bank, bool) {
	b, ok := d.Banks[bankKey(name)]
	if ok {
		b.init()
	}
	return b, ok
}

// sortedBanks returns the banks of the guild ordered by name.
func (d *guildDoc) sortedBanks() []*Bank {
	keys := maps.Keys(d.Banks)
	slices.Sort(keys)

	banks := make([]*Bank, 0, len(keys))
	for _, k := range keys {
		banks = append(banks, d.Banks[k])
	}
	return banks
}

func (b *Bank) init() {
	if b.Roles == nil {
		b.Roles = make(map[int64][]string)
	}
	if b.Donators == nil {
		b.Donators = make(map[string]int64)
	}
}

// Add increases the balance of userID by amount and returns the new balance.
func (b *Bank) Add(userID string, amount int64) int64 {
	b.init()
	b.Donators[userID] += amount
	return b.Donators[userID]
}

// Remove decreases the balance of userID by amount, stopping at zero, and returns the new balance.
func (b *Bank) Remove(userID string, amount int64) int64 {
	b.init()
	balance := b.Donators[userID] - amount
	if balance < 0 {
		balance = 0
	}
	b.Donators[userID] = balance
	return balance
}

// Set overwrites the balance of userID.
func (b *Bank) Set(userID string, amount int64) int64 {
	b.init()
	b.Donators[userID] = amount
	return amount
}

func (b *Bank) Balance(userID string) int64 {
	return b.Donators[userID]
}

func (b *Bank) Total() int64 {
	var total int64
	for _, v := range b.Donators {
		total += v
	}
	return total
}

// RoleChanges walks every threshold independently: roles of thresholds at or below balance are granted, roles of
// thresholds above it are taken away. A role granted by any threshold is never also removed.
func (b *Bank) RoleChanges(balance int64) (add []string, remove []string) {
	for threshold, roles := range b.Roles {
		if balance >= threshold {
			add = append(add, roles...)
		}
	}
	for threshold, roles := range b.Roles {
		if balance < threshold {
			for _, r := range roles {
				if !slices.Contains(add, r) {
					remove = append(remove, r)
				}
			}
		}
	}

	return dedupe(add), dedupe(remove)
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

type standing struct {
	UserID string
	Amount int64
}

// Leaderboard returns the top donators with a positive balance, highest first. Ties keep a stable id order.
func (b *Bank) Leaderboard(top int) []standing {
	var out []standing
	for id, amount := range b.Donators {
		if amount > 0 && id != deletedUserID {
			out = append(out, standing{UserID: id, Amount: amount})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].UserID < out[j].UserID
	})

	if top > 0 && len(out) > top {
		out = out[:top]
	}
	return out
}

// thresholds returns the role thresholds in ascending order.
func (b *Bank) thresholds() []int64 {
	keys := maps.Keys(b.Roles)
	slices.Sort(keys)
	return keys
}

// forget folds the balance of userID into the anonymous entry.
func (b *Bank) forget(userID string) bool {
	amount, ok := b.Donators[userID]
	if !ok {
		return false
	}
	delete(b.Donators, userID)
	b.Donators[deletedUserID] += amount
	return true
}
