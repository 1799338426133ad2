package domain

import (
	"testing"
	"time"
)

func TestWindowBefore(t *testing.T) {
	now := time.Date(2022, 9, 1, 11, 32, 45, 0, time.UTC)

	window := WindowBefore(now, 2)

	dates := window.Dates()
	if len(dates) != 2 {
		t.Fatalf("expected 2 dates, got %d: %v", len(dates), dates)
	}
	if dates[0] != "2022-08-30" || dates[1] != "2022-08-31" {
		t.Errorf("unexpected window dates: %v", dates)
	}
}

func TestWindowBeforeClampsDays(t *testing.T) {
	now := time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC)

	window := WindowBefore(now, 0)

	dates := window.Dates()
	if len(dates) != 1 {
		t.Fatalf("expected 1 date, got %v", dates)
	}
	if dates[0] != "2022-08-31" {
		t.Errorf("expected yesterday, got %s", dates[0])
	}
}

func TestTreePathDeterminism(t *testing.T) {
	descriptor := ReportDescriptor{
		ReportType:  "scan_stun",
		MailingList: "example_com-asn",
		ReportDate:  "2022-08-31",
		RemoteID:    "abc123",
	}

	want := "2022/08/31/2022-08-31-scan_stun_example_com-asn-abc123.csv"
	if got := descriptor.TreePath(); got != want {
		t.Errorf("TreePath() = %q, want %q", got, want)
	}

	// Same descriptor, same path, no matter how often it is derived.
	if descriptor.TreePath() != descriptor.TreePath() {
		t.Error("TreePath is not deterministic")
	}
}

func TestFilenameVersionsPerRemoteID(t *testing.T) {
	base := ReportDescriptor{
		ReportType:  "scan_stun",
		MailingList: "example_com-asn",
		ReportDate:  "2022-08-31",
		RemoteID:    "aaa",
	}
	republished := base
	republished.RemoteID = "bbb"

	if base.Filename() == republished.Filename() {
		t.Error("republished report should land on its own file")
	}
}

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name       string
		descriptor ReportDescriptor
		wantErr    bool
	}{
		{
			name:       "valid",
			descriptor: ReportDescriptor{ReportType: "scan_stun", MailingList: "acme", ReportDate: "2022-08-31", RemoteID: "abc"},
			wantErr:    false,
		},
		{
			name:       "missing type",
			descriptor: ReportDescriptor{ReportDate: "2022-08-31", RemoteID: "abc"},
			wantErr:    true,
		},
		{
			name:       "missing remote id",
			descriptor: ReportDescriptor{ReportType: "scan_stun", ReportDate: "2022-08-31"},
			wantErr:    true,
		},
		{
			name:       "bad date",
			descriptor: ReportDescriptor{ReportType: "scan_stun", ReportDate: "31/08/2022", RemoteID: "abc"},
			wantErr:    true,
		},
		{
			name:       "path traversal in remote id",
			descriptor: ReportDescriptor{ReportType: "scan_stun", ReportDate: "2022-08-31", RemoteID: "../../etc/passwd"},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.descriptor.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewNotificationMessage(t *testing.T) {
	descriptor := ReportDescriptor{
		ReportType:  "scan_stun",
		MailingList: "acme",
		ReportDate:  "2022-08-31",
		RemoteID:    "abc",
	}
	now := time.Date(2022, 9, 1, 11, 32, 45, 0, time.Local)

	msg := NewNotificationMessage(descriptor, "http://myserver/reports/x.csv", now)

	if msg.Timestamp != "2022-09-01 11:32:45" {
		t.Errorf("unexpected timestamp format: %s", msg.Timestamp)
	}
	if msg.ReportDate != "2022-08-31" {
		t.Errorf("unexpected report date: %s", msg.ReportDate)
	}
	if msg.ReportType != "scan_stun" {
		t.Errorf("unexpected report type: %s", msg.ReportType)
	}
	if msg.URI != "http://myserver/reports/x.csv" {
		t.Errorf("unexpected uri: %s", msg.URI)
	}
}
