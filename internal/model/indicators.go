package model

import "time"

// RSIZone classifies an RSI reading.
type RSIZone string

const (
	ZoneExtremeOversold   RSIZone = "EXTREME_OVERSOLD"
	ZoneOversold          RSIZone = "OVERSOLD"
	ZoneNeutral           RSIZone = "NEUTRAL"
	ZoneOverbought        RSIZone = "OVERBOUGHT"
	ZoneExtremeOverbought RSIZone = "EXTREME_OVERBOUGHT"
)

// RSIReading is the latest indicator value of one series.
type RSIReading struct {
	Ticker      string
	Granularity Granularity
	Time        time.Time // timestamp of the bar the value belongs to
	Close       float64
	RSI         float64
	Period      int
}

// RSIAlert is emitted when a series moves into a new zone.
type RSIAlert struct {
	Reading  RSIReading
	Zone     RSIZone
	Previous RSIZone
	Label    string
}
