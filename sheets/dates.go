package sheets

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const IsoDate = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// accepted text layouts; "01-02-06" is how excelize renders the built-in short date format
var dateLayouts = []string{
	IsoDate,
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"01-02-06",
}

// ParseDate accepts ISO, DD/MM/YYYY, DD-MM-YYYY and Excel serial day numbers.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	// serial numbers between 1954 and 2119
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 20000 && serial < 80000 {
		d, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// NormalizeDate returns the ISO text of a parsed date cell.
func NormalizeDate(raw string) (string, error) {
	d, err := ParseDate(raw)
	if err != nil {
		return "", err
	}
	return d.Format(IsoDate), nil
}
