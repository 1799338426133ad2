package domain

import (
	"fmt"
	"path"
	"strings"
	"time"
)

const (
	// DateLayout is the catalog's calendar date format.
	DateLayout = "2006-01-02"
	// TimestampLayout is the local-time format carried in notifications.
	TimestampLayout = "2006-01-02 15:04:05"
)

// ReportDescriptor identifies one downloadable report as enumerated by the
// catalog. A logical report is (ReportType, MailingList, ReportDate); the
// catalog republishes corrected data under the same logical key but a new
// RemoteID, which is treated as a brand new report.
type ReportDescriptor struct {
	ReportType  string // ex: scan_stun
	MailingList string // ex: example_com-asn
	ReportDate  string // YYYY-MM-DD
	RemoteID    string // download handle, versions across re-publications
}

// Key is the composite dedup identity, including RemoteID.
func (d ReportDescriptor) Key() string {
	return d.ReportType + "|" + d.MailingList + "|" + d.ReportDate + "|" + d.RemoteID
}

// Filename derives the on-disk name purely from the descriptor, so the same
// descriptor always lands on the same path no matter when it is synced. The
// remote id is part of the name: a republication of the same logical report
// gets its own file next to the original.
func (d ReportDescriptor) Filename() string {
	return fmt.Sprintf("%s-%s_%s-%s.csv", d.ReportDate, d.ReportType, d.MailingList, d.RemoteID)
}

// TreePath is the report's location below the tree root, partitioned by
// year, month and day: yyyy/mm/dd/<filename>.
func (d ReportDescriptor) TreePath() string {
	date := d.ReportDate
	return path.Join(date[0:4], date[5:7], date[8:10], d.Filename())
}

// Validate rejects descriptors the tree writer could not place.
func (d ReportDescriptor) Validate() error {
	if d.ReportType == "" {
		return fmt.Errorf("descriptor missing report type")
	}
	if d.RemoteID == "" {
		return fmt.Errorf("descriptor missing remote id")
	}
	if strings.ContainsAny(d.RemoteID, `/\`) || strings.HasPrefix(d.RemoteID, ".") {
		return fmt.Errorf("descriptor has unsafe remote id %q", d.RemoteID)
	}
	if _, err := time.Parse(DateLayout, d.ReportDate); err != nil {
		return fmt.Errorf("descriptor has invalid report date %q: %w", d.ReportDate, err)
	}
	return nil
}

// LedgerEntry is the durable fact that a report has been materialized.
// Entries are append-only and outlive the process; they are the only state
// shared between runs.
type LedgerEntry struct {
	ReportType   string    `json:"report_type"`
	MailingList  string    `json:"mailing_list"`
	ReportDate   string    `json:"report_date"`
	RemoteID     string    `json:"remote_id"`
	LocalPath    string    `json:"local_path"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

func (e LedgerEntry) Key() string {
	return e.ReportType + "|" + e.MailingList + "|" + e.ReportDate + "|" + e.RemoteID
}

// NewLedgerEntry records the materialization of a descriptor at localPath.
func NewLedgerEntry(d ReportDescriptor, localPath string, at time.Time) LedgerEntry {
	return LedgerEntry{
		ReportType:   d.ReportType,
		MailingList:  d.MailingList,
		ReportDate:   d.ReportDate,
		RemoteID:     d.RemoteID,
		LocalPath:    localPath,
		DownloadedAt: at,
	}
}

// NotificationMessage is the wire payload published per newly written
// report. Field set and formats are fixed; downstream consumers are
// backend-agnostic.
type NotificationMessage struct {
	Timestamp  string `json:"timestamp"`
	ReportDate string `json:"report_date"`
	ReportType string `json:"report_type"`
	URI        string `json:"uri"`
}

// NewNotificationMessage stamps a notification for a descriptor whose bytes
// now live at uri. The timestamp is local time by contract.
func NewNotificationMessage(d ReportDescriptor, uri string, now time.Time) NotificationMessage {
	return NotificationMessage{
		Timestamp:  now.Format(TimestampLayout),
		ReportDate: d.ReportDate,
		ReportType: d.ReportType,
		URI:        uri,
	}
}

// SyncWindow is the inclusive date range one run processes.
type SyncWindow struct {
	Start time.Time
	End   time.Time
}

// WindowBefore derives the window from "days to look back": the `days`
// calendar days preceding now, today excluded. Days below 1 are clamped.
func WindowBefore(now time.Time, days int) SyncWindow {
	if days < 1 {
		days = 1
	}
	now = now.UTC().Truncate(24 * time.Hour)
	return SyncWindow{
		Start: now.AddDate(0, 0, -days),
		End:   now.AddDate(0, 0, -1),
	}
}

// Dates lists the window's days in chronological order, formatted for the
// catalog.
func (w SyncWindow) Dates() []string {
	var dates []string
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates
}
