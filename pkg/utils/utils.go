package utils

import (
	"os"
	"time"
)

const timezone = "America/Bogota"

func FormatDate(t time.Time) string {
	if t.Unix() <= 0 {
		return ""
	}

	return t.In(GetTz()).Format("2006-01-02 15:04:05")
}

func FormatDateShort(t time.Time) string {
	if t.Unix() <= 0 {
		return ""
	}

	return t.In(GetTz()).Format("02/01")
}

func FormatTime(t time.Time) string {
	if t.Unix() <= 0 {
		return ""
	}

	return t.In(GetTz()).Format("15:04")
}

func GetTz() *time.Location {
	tz, err := time.LoadLocation(timezone)
	if err != nil {
		os.Stderr.WriteString("Failed to load timezone: " + err.Error())
		os.Exit(1)
	}
	return tz
}
