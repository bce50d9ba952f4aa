package pubfront

import (
	"strconv"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var monthAbbrevPtBR = [12]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

// FormatDate renders t as day, abbreviated pt-BR month and year, upper-cased,
// e.g. "15 MAR 2021". t is converted to loc first; a nil loc keeps t's own
// location. The zero time renders as "".
func FormatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	s := strconv.Itoa(t.Day()) + " " + monthAbbrevPtBR[t.Month()-1] + " " + strconv.Itoa(t.Year())
	return cases.Upper(language.BrazilianPortuguese).String(s)
}

// formatDate formats t in the site's display timezone.
func (a *App) formatDate(t time.Time) string {
	return FormatDate(t, a.loc)
}
