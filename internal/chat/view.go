package chat

import (
	"fmt"
	"time"

	"libchat/internal/model"
)

// Entry is one rendered message.
type Entry struct {
	ID        int64
	UserID    int
	Text      string
	Admin     bool
	CreatedAt time.Time
	Email     string
}

// Viewer identifies who is looking at the log.
type Viewer struct {
	UserID int
	Email  string
	Admin  bool
}

// View merges the REST history snapshot with live events into one ordered
// log. A snapshot replaces everything accumulated so far, including
// optimistic local echoes; live events append in arrival order. The zero
// View is empty and usable.
//
// View does no locking; the owning session serializes access.
type View struct {
	entries    []Entry
	lastUserID int // most recent non-admin sender, 0 when none seen
}

func NewView() *View {
	return &View{}
}

// SetHistory replaces the log with an authoritative snapshot.
func (v *View) SetHistory(msgs []model.ChatMessage) {
	v.entries = v.entries[:0]
	v.lastUserID = 0
	for _, m := range msgs {
		v.Append(Entry{
			ID:        m.ID,
			UserID:    m.UserID,
			Text:      m.Message,
			Admin:     m.IsAdmin != 0,
			CreatedAt: m.CreatedAt,
			Email:     m.Email,
		})
	}
}

// Append adds one entry in arrival order.
func (v *View) Append(e Entry) {
	v.entries = append(v.entries, e)
	if !e.Admin && e.UserID != 0 {
		v.lastUserID = e.UserID
	}
}

// Entries returns a copy of the log.
func (v *View) Entries() []Entry {
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

func (v *View) Len() int { return len(v.entries) }

// LastUserID returns the most recent non-admin sender. This is how an admin's
// single channel picks the counterpart for the next reply.
func (v *View) LastUserID() (int, bool) {
	if v.lastUserID == 0 {
		return 0, false
	}
	return v.lastUserID, true
}

// DisplayName resolves the name shown next to an entry.
func DisplayName(e Entry) string {
	if e.Admin {
		return "Administrator"
	}
	if e.Email != "" {
		return e.Email
	}
	return fmt.Sprintf("User %d", e.UserID)
}

// Mine reports whether the entry was authored by the viewer. Admin viewers
// own every admin entry; user viewers own entries with their id and no admin
// flag. There is no stored from-me bit.
func Mine(viewer Viewer, e Entry) bool {
	if viewer.Admin {
		return e.Admin
	}
	return e.UserID == viewer.UserID && !e.Admin
}

// DateGroup is one calendar day's worth of entries, in arrival order.
type DateGroup struct {
	Label   string
	Entries []Entry
}

// Groups partitions the log by calendar date in the order dates are first
// encountered. Entries are never re-sorted: arrival order is authoritative,
// because optimistic echoes carry approximate timestamps.
func (v *View) Groups() []DateGroup {
	return groupByDate(v.entries, time.Now())
}

func groupByDate(entries []Entry, now time.Time) []DateGroup {
	var groups []DateGroup
	index := make(map[string]int)
	for _, e := range entries {
		key := e.CreatedAt.Format("2006-01-02")
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DateGroup{Label: dateLabel(e.CreatedAt, now)})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	return groups
}

func dateLabel(t, now time.Time) string {
	day := t.Format("2006-01-02")
	switch day {
	case now.Format("2006-01-02"):
		return "Today"
	case now.AddDate(0, 0, -1).Format("2006-01-02"):
		return "Yesterday"
	default:
		return t.Format("2 January 2006")
	}
}
