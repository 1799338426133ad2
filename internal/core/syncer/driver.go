package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hive-corporation/reportsync/internal/core/domain"
	"github.com/hive-corporation/reportsync/internal/core/ports"
)

// opTimeout bounds each catalog fetch and each publish, matching the bound
// the upstream API wrapper applies.
const opTimeout = 45 * time.Second

// Options tune one driver instance. Zero values fall back to sequential
// processing with the wall clock.
type Options struct {
	Types        []string
	MailingLists []string
	Workers      int
	Now          func() time.Time
}

// Driver orchestrates one run: enumerate the window, then per descriptor
// fetch, guard, write, record and notify. Descriptors are independent and
// may complete out of order; write-before-record is sequenced per
// descriptor.
type Driver struct {
	catalog  ports.CatalogClient
	ledger   ports.Ledger
	guard    ports.DiskGuard
	writer   ports.TreeWriter
	notifier ports.Notifier
	opts     Options
}

func New(catalog ports.CatalogClient, ledger ports.Ledger, guard ports.DiskGuard, writer ports.TreeWriter, notifier ports.Notifier, opts Options) *Driver {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Driver{
		catalog:  catalog,
		ledger:   ledger,
		guard:    guard,
		writer:   writer,
		notifier: notifier,
		opts:     opts,
	}
}

// Summary is the outcome of one run. Failure counters are kept distinct so
// the process exit code can tell partial success, fetch failures and
// notify-only warnings apart.
type Summary struct {
	RunID          string
	Window         domain.SyncWindow
	Enumerated     int
	Downloaded     int
	AlreadySynced  int
	SkippedDiskLow int
	FetchFailures  int
	NotifyFailures int
	Duration       time.Duration
}

// ExitCode maps the summary onto the process exit contract: 0 full
// success, 2 fetch/write failures, 3 stopped early on low disk, 4 notify
// failures only.
func (s Summary) ExitCode() int {
	switch {
	case s.FetchFailures > 0:
		return 2
	case s.SkippedDiskLow > 0:
		return 3
	case s.NotifyFailures > 0:
		return 4
	default:
		return 0
	}
}

type runState struct {
	mu      sync.Mutex
	summary Summary
	diskLow bool
	lowOnce sync.Once
}

func (s *runState) isDiskLow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diskLow
}

// Run executes the state machine for a window of `days` calendar days
// preceding today. Enumeration failures are fatal; per-descriptor failures
// are counted and the loop continues.
func (d *Driver) Run(ctx context.Context, days int) (Summary, error) {
	started := d.opts.Now()
	window := domain.WindowBefore(started, days)

	state := &runState{summary: Summary{
		RunID:  uuid.NewString(),
		Window: window,
	}}

	log.Printf("🚀 Sync run %s started: window %s .. %s, %d worker(s)",
		state.summary.RunID, window.Start.Format(domain.DateLayout), window.End.Format(domain.DateLayout), d.opts.Workers)

	descriptors, err := d.catalog.List(ctx, window, d.opts.Types, d.opts.MailingLists)
	if err != nil {
		return state.summary, fmt.Errorf("catalog enumeration failed: %w", err)
	}
	state.summary.Enumerated = len(descriptors)
	log.Printf("📋 Catalog returned %d report(s) for the window", len(descriptors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for _, descriptor := range descriptors {
		descriptor := descriptor
		g.Go(func() error {
			d.processOne(gctx, descriptor, state)
			return nil
		})
	}
	// Workers never return errors, so Wait only reflects pool teardown.
	_ = g.Wait()

	state.mu.Lock()
	summary := state.summary
	state.mu.Unlock()
	summary.Duration = time.Since(started)

	log.Printf("🏁 Completed - %d reports downloaded (%d already synced, %d skipped for disk, %d fetch failures, %d notify failures)",
		summary.Downloaded, summary.AlreadySynced, summary.SkippedDiskLow, summary.FetchFailures, summary.NotifyFailures)

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("sync run interrupted: %w", err)
	}
	return summary, nil
}

// processOne drives a single descriptor through fetch → guard → write →
// record → notify. Errors here never abort the run.
func (d *Driver) processOne(ctx context.Context, descriptor domain.ReportDescriptor, state *runState) {
	if ctx.Err() != nil {
		return
	}
	if state.isDiskLow() {
		state.mu.Lock()
		state.summary.SkippedDiskLow++
		state.mu.Unlock()
		recordSkipped("disk_low")
		return
	}

	exists, err := d.ledger.Has(ctx, descriptor)
	if err != nil {
		log.Printf("❌ Ledger lookup failed for %s: %v", descriptor.Filename(), err)
		state.mu.Lock()
		state.summary.FetchFailures++
		state.mu.Unlock()
		recordFetchError()
		return
	}
	if exists {
		state.mu.Lock()
		state.summary.AlreadySynced++
		state.mu.Unlock()
		recordSkipped("already_synced")
		return
	}

	fetchStarted := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, opTimeout)
	data, err := d.catalog.Fetch(fetchCtx, descriptor)
	cancel()
	if err != nil {
		if errors.Is(err, ports.ErrReportNotFound) {
			log.Printf("❌ Report %s vanished from the catalog: %v", descriptor.Filename(), err)
		} else {
			log.Printf("❌ Unable to download %s: %v", descriptor.Filename(), err)
		}
		state.mu.Lock()
		state.summary.FetchFailures++
		state.mu.Unlock()
		recordFetchError()
		return
	}

	if err := d.guard.Check(); err != nil {
		if errors.Is(err, ports.ErrDiskLow) {
			state.lowOnce.Do(func() {
				log.Printf("🛑 %v - no further writes this run", err)
			})
			state.mu.Lock()
			state.diskLow = true
			state.summary.SkippedDiskLow++
			state.mu.Unlock()
			recordSkipped("disk_low")
			return
		}
		log.Printf("❌ Disk check failed for %s: %v", descriptor.Filename(), err)
		state.mu.Lock()
		state.summary.FetchFailures++
		state.mu.Unlock()
		recordFetchError()
		return
	}

	localPath, err := d.writer.Write(descriptor, data)
	if err != nil {
		log.Printf("❌ Unable to write %s: %v", descriptor.Filename(), err)
		state.mu.Lock()
		state.summary.FetchFailures++
		state.mu.Unlock()
		recordFetchError()
		return
	}

	entry := domain.NewLedgerEntry(descriptor, localPath, d.opts.Now().UTC())
	if err := d.ledger.Record(ctx, entry); err != nil {
		// The file is on disk but unledgered; the next run re-attempts
		// both steps onto the same deterministic path.
		log.Printf("❌ Unable to ledger %s: %v", descriptor.Filename(), err)
		state.mu.Lock()
		state.summary.FetchFailures++
		state.mu.Unlock()
		recordFetchError()
		return
	}

	state.mu.Lock()
	state.summary.Downloaded++
	state.mu.Unlock()
	recordDownloaded(time.Since(fetchStarted))
	log.Printf("✅ Downloaded %s", localPath)

	msg := domain.NewNotificationMessage(descriptor, d.writer.URI(localPath), d.opts.Now())
	pubCtx, cancel := context.WithTimeout(ctx, opTimeout)
	err = d.notifier.Publish(pubCtx, msg)
	cancel()
	if err != nil {
		// The report is safely on disk and ledgered; a failed publish is
		// surfaced in the summary but never undoes the download.
		log.Printf("⚠️  Notification for %s failed: %v", descriptor.Filename(), err)
		state.mu.Lock()
		state.summary.NotifyFailures++
		state.mu.Unlock()
		recordNotifyError()
		return
	}
	recordPublished()
}
