package conversation

import (
	"sort"
	"strings"
	"time"

	"github.com/goodsign/monday"
)

const (
	// maxOfferedDates keeps the availability message short.
	maxOfferedDates = 3
	// scanDays is how far past tomorrow the selector looks for candidate dates.
	scanDays = 14
	// afternoonHour is the earliest clock hour preferred for tomorrow's slot.
	afternoonHour = 13
)

// Selector turns raw calendar availability into a bounded, user-presentable
// shortlist of slots. Pure and deterministic given its inputs; the reference
// time zone is fixed at construction.
type Selector struct {
	loc *time.Location
}

func NewSelector(loc *time.Location) *Selector {
	return &Selector{loc: loc}
}

// Select picks at most three slots out of rawInstants, one per calendar date,
// scanning dates in ascending order starting from tomorrow. Tomorrow prefers
// the earliest slot at or after 13:00 local; other dates take the earliest
// slot. A clock time already used by a selected slot on any date is skipped
// so the shortlist never repeats the same visual time. Instants that fail to
// parse are dropped. Empty input yields empty output.
func (s *Selector) Select(rawInstants []string, now time.Time, locale string) []Slot {
	byDate := make(map[string][]time.Time)
	for _, raw := range rawInstants {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			continue
		}
		local := t.In(s.loc)
		key := local.Format("2006-01-02")
		byDate[key] = append(byDate[key], local)
	}

	today := now.In(s.loc)
	selected := make([]time.Time, 0, maxOfferedDates)
	usedTimes := make(map[string]bool)

	for offset := 1; offset <= scanDays && len(selected) < maxOfferedDates; offset++ {
		day := today.AddDate(0, 0, offset)
		times := byDate[day.Format("2006-01-02")]
		if len(times) == 0 {
			continue
		}
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

		var pick *time.Time
		if offset == 1 {
			pick = firstUnused(afternoonOf(times), usedTimes)
			if pick == nil {
				pick = firstUnused(times, usedTimes)
			}
		} else {
			pick = firstUnused(times, usedTimes)
		}
		if pick == nil {
			continue
		}

		selected = append(selected, *pick)
		usedTimes[pick.Format("15:04")] = true
	}

	slots := make([]Slot, 0, len(selected))
	for _, t := range selected {
		slots = append(slots, Slot{Display: formatSlot(t, locale), Instant: t})
	}
	return slots
}

func afternoonOf(times []time.Time) []time.Time {
	out := make([]time.Time, 0, len(times))
	for _, t := range times {
		if t.Hour() >= afternoonHour {
			out = append(out, t)
		}
	}
	return out
}

func firstUnused(times []time.Time, used map[string]bool) *time.Time {
	for _, t := range times {
		if !used[t.Format("15:04")] {
			picked := t
			return &picked
		}
	}
	return nil
}

var displayLocales = map[string]monday.Locale{
	"en": monday.LocaleEnGB,
	"fi": monday.LocaleFiFI,
	"sv": monday.LocaleSvSE,
	"de": monday.LocaleDeDE,
	"fr": monday.LocaleFrFR,
	"es": monday.LocaleEsES,
	"it": monday.LocaleItIT,
	"nl": monday.LocaleNlNL,
}

const fallbackSlotLayout = "Monday, 02.01. at 15:04"

// formatSlot renders a slot label with localized weekday names. Unknown
// locales fall back to the default English template.
func formatSlot(t time.Time, locale string) string {
	lang := strings.ToLower(locale)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	loc, ok := displayLocales[lang]
	if !ok {
		return t.Format(fallbackSlotLayout)
	}
	layout := fallbackSlotLayout
	if lang == "fi" {
		layout = "Monday, 02.01. klo 15:04"
	}
	return monday.Format(t, layout, loc)
}
