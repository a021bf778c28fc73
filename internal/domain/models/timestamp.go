package models

import "ForecastDesk/pkg/util"

// InvalidDate is rendered in place of an unparsable timestamp.
const InvalidDate = "invalid date"

const displayLayout = "02/01/2006 15:04"

// FormatTimestamp renders s as dd/MM/yyyy HH:mm in the zone it was written in.
func FormatTimestamp(s string) string {
	t, ok := util.ParseTime(s)
	if !ok {
		return InvalidDate
	}
	return t.Format(displayLayout)
}
