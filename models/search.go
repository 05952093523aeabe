// Package models defines data structures shared by the harvester and exporters.
package models

import (
	"fmt"
	"time"
)

// Query is one search query for a single day, layout, install bucket and polarity.
type Query struct {
	Site      string    `json:"site"`
	Date      time.Time `json:"date"`
	Layout    string    `json:"layout"`
	Bucket    string    `json:"bucket"`
	Condition string    `json:"condition"`
}

// FormattedDate renders the query date with the query layout.
func (q Query) FormattedDate() string {
	return q.Date.Format(q.Layout)
}

// Text renders the query string sent to the search API.
func (q Query) Text() string {
	return fmt.Sprintf(`%s "%s" "%s" "%s"`, q.Site, q.FormattedDate(), q.Bucket, q.Condition)
}

// SearchDay is a calendar day paired with the number of results fetched for it.
type SearchDay struct {
	Date  time.Time
	Total int
}

// Previous returns the day before d with a zero total.
func (d SearchDay) Previous() SearchDay {
	return SearchDay{Date: d.Date.AddDate(0, 0, -1)}
}

// SearchItem is a single search result.
type SearchItem struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// SearchPage is one decoded page of search results.
type SearchPage struct {
	Items        []SearchItem
	TotalResults int64
}

// HarvestResult summarises a harvest run.
type HarvestResult struct {
	StartTime      time.Time
	EndTime        time.Time
	Days           []SearchDay
	QueryCount     int
	RequestCount   int
	TotalResults   int
	IDsWritten     int
	KeyRotations   int
	FailedQueries  int
	StopReason     string
	ErrorsByType   map[string]int
	CorruptKeys    int
	LastSearchedOn time.Time
}
