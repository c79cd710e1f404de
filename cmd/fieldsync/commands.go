package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// sender is the part of realtime.Channel the command loop drives.
type sender interface {
	SendLocation(lat, lon float64, ts time.Time) error
	SendHealth(status, notes string) error
	RetryConnection() error
}

// runCommand executes one stdin line. It reports true when the client should exit.
func runCommand(s sender, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "loc":
		if len(fields) != 3 {
			return false, fmt.Errorf("usage: loc <lat> <lon>")
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return false, fmt.Errorf("lat: %w", err)
		}
		lon, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return false, fmt.Errorf("lon: %w", err)
		}
		return false, s.SendLocation(lat, lon, time.Now())

	case "health":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: health <status> [notes...]")
		}
		return false, s.SendHealth(fields[1], strings.Join(fields[2:], " "))

	case "retry":
		return false, s.RetryConnection()

	case "quit", "exit":
		return true, nil

	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
}
