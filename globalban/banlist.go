package globalban

import (
	"github.com/olympus-go/cogs/cog"
	"golang.org/x/exp/slices"
)

const deletedUserID = "0"

type Action string

const (
	ActionBan   Action = "ban"
	ActionUnban Action = "unban"
)

type BanLog struct {
	Case         int    `json:"case"`
	Type         Action `json:"type"`
	Offender     string `json:"offender"`
	Authorizer   string `json:"authorizer"`
	Reason       string `json:"reason"`
	Timestamp    int64  `json:"timestamp"`
	LastModified *int64 `json:"last_modified"`
	Amender      string `json:"amender"`
}

type globalDoc struct {
	BanList []string `json:"banlist"`
	BanLogs []BanLog `json:"banlogs"`
}

func (d *globalDoc) banned(userID string) bool {
	return slices.Contains(d.BanList, userID)
}

// check reports whether action can be applied to offender.
func (d *globalDoc) check(action Action, offender string) error {
	switch {
	case action == ActionBan && d.banned(offender):
		return cog.InputError("<@%s> is already globally banned.", offender)
	case action == ActionUnban && !d.banned(offender):
		return cog.InputError("<@%s> is not globally banned.", offender)
	}
	return nil
}

// record applies action to the ban list and appends the matching log entry.
func (d *globalDoc) record(action Action, offender, authorizer, reason string, now int64) (BanLog, error) {
	if err := d.check(action, offender); err != nil {
		return BanLog{}, err
	}

	switch action {
	case ActionBan:
		d.BanList = append(d.BanList, offender)
	case ActionUnban:
		idx := slices.Index(d.BanList, offender)
		d.BanList = slices.Delete(d.BanList, idx, idx+1)
	}

	entry := BanLog{
		Case:       d.nextCase(),
		Type:       action,
		Offender:   offender,
		Authorizer: authorizer,
		Reason:     reason,
		Timestamp:  now,
	}
	d.BanLogs = append(d.BanLogs, entry)

	return entry, nil
}

func (d *globalDoc) nextCase() int {
	next := 1
	for _, l := range d.BanLogs {
		if l.Case >= next {
			next = l.Case + 1
		}
	}
	return next
}

func (d *globalDoc) log(caseNumber int) (*BanLog, bool) {
	for i := range d.BanLogs {
		if d.BanLogs[i].Case == caseNumber {
			return &d.BanLogs[i], true
		}
	}
	return nil, false
}

// amend replaces the reason of a case and records who changed it.
func (d *globalDoc) amend(caseNumber int, reason, amender string, now int64) (BanLog, bool) {
	l, ok := d.log(caseNumber)
	if !ok {
		return BanLog{}, false
	}
	l.Reason = reason
	l.Amender = amender
	l.LastModified = &now
	return *l, true
}

func (d *globalDoc) forget(userID string) {
	for i := range d.BanLogs {
		if d.BanLogs[i].Authorizer == userID {
			d.BanLogs[i].Authorizer = deletedUserID
		}
		if d.BanLogs[i].Amender == userID {
			d.BanLogs[i].Amender = deletedUserID
		}
	}
}
