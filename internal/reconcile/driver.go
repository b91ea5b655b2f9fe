// internal/reconcile/driver.go
package reconcile

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"intrawatch/internal/change"
	"intrawatch/internal/diff"
	"intrawatch/internal/errors"
	"intrawatch/internal/logging"
	"intrawatch/internal/notify"
	"intrawatch/internal/snapshot"
	"intrawatch/internal/source"
)

// ContentStore keeps downloaded file versions addressed by ref.
type ContentStore interface {
	Put(name string, r io.Reader) (string, error)
	Get(ref string) ([]byte, error)
}

// Options wires a Driver. Store, Source and Notifier are required.
type Options struct {
	Store    snapshot.Store
	Source   source.Source
	Notifier notify.Notifier
	Content  ContentStore
	Differ   *diff.Differ
	Detector *change.Detector
	Logger   *logging.Logger

	DownloadContent bool
	DiffTextContent bool
	AnnounceSeed    bool
}

// Driver runs reconciliation cycles. It owns the snapshot for the duration
// of a cycle; callers must not run cycles concurrently.
type Driver struct {
	store    snapshot.Store
	source   source.Source
	notifier notify.Notifier
	content  ContentStore
	differ   *diff.Differ
	detector *change.Detector
	logger   *logging.Logger

	downloadContent bool
	diffTextContent bool
	announceSeed    bool

	mu    sync.RWMutex
	state State
	last  *Report
}

func NewDriver(opts Options) (*Driver, error) {
	if opts.Store == nil || opts.Source == nil || opts.Notifier == nil {
		return nil, fmt.Errorf("reconcile: store, source and notifier are required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Detector == nil {
		opts.Detector = change.NewDetector(opts.Logger.Logger)
	}
	if opts.Differ == nil && opts.Content != nil {
		opts.Differ = diff.NewDiffer(opts.Content, 3)
	}
	if opts.DownloadContent && opts.Content == nil {
		return nil, fmt.Errorf("reconcile: content downloads need a content store")
	}

	return &Driver{
		store:           opts.Store,
		source:          opts.Source,
		notifier:        opts.Notifier,
		content:         opts.Content,
		differ:          opts.Differ,
		detector:        opts.Detector,
		logger:          opts.Logger,
		downloadContent: opts.DownloadContent,
		diffTextContent: opts.DiffTextContent,
		announceSeed:    opts.AnnounceSeed,
		state:           Idle,
	}, nil
}

// IsFatal reports whether a cycle error must stop the process: the prior
// state is unknown or the credentials were refused.
func IsFatal(err error) bool {
	return errors.IsCorrupt(err) || errors.IsUnauthorized(err)
}

func (d *Driver) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// LastReport returns a copy of the most recent cycle report, or nil.
func (d *Driver) LastReport() *Report {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.last == nil {
		return nil
	}
	r := *d.last
	r.Skipped = append([]string(nil), d.last.Skipped...)
	return &r
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// cycle carries the per-run state threaded through processing.
type cycle struct {
	log     *zap.Logger
	report  *Report
	working *snapshot.Snapshot
	seed    bool
}

// RunCycle performs one load, fetch, detect, notify and commit pass. The
// returned error is non-nil when the cycle aborted or hit a fatal error;
// per-project and per-event failures are only logged.
func (d *Driver) RunCycle(ctx context.Context) (*Report, error) {
	report := &Report{
		CycleID:   uuid.NewString(),
		StartedAt: time.Now(),
	}
	c := &cycle{log: d.logger.WithCycle(report.CycleID), report: report}

	err := d.run(ctx, c)

	report.Duration = time.Since(report.StartedAt)
	if err != nil {
		report.Err = err.Error()
		if report.State != Aborted {
			report.State = Idle
		}
	} else {
		report.State = Idle
	}
	d.mu.Lock()
	d.state = report.State
	d.last = report
	d.mu.Unlock()

	c.log.Info("cycle finished",
		zap.String("state", report.State.String()),
		zap.Int("events", report.Events),
		zap.Int("notified", report.Notified),
		zap.Int("skipped", len(report.Skipped)),
		zap.Duration("duration", report.Duration),
		zap.Error(err))
	return report, err
}

func (d *Driver) run(ctx context.Context, c *cycle) error {
	d.setState(Fetching)
	prior, err := d.store.Load(ctx)
	if err != nil {
		c.report.State = Aborted
		c.log.Error("loading snapshot", zap.Error(err))
		return fmt.Errorf("loading snapshot: %w", err)
	}
	c.working = prior.Clone()
	c.seed = prior.Empty()
	if c.seed {
		c.log.Info("empty snapshot, seeding")
	}

	refs, err := d.source.ListProjects(ctx)
	if err != nil {
		if !errors.IsSkippable(err) {
			return fmt.Errorf("listing projects: %w", err)
		}
		// Nothing was fetched, so there is nothing to commit.
		c.log.Warn("listing projects failed, skipping cycle", zap.Error(err))
		return nil
	}

	used := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := projectKey(ref, prior, used)
		if err := d.reconcileProject(ctx, c, prior, ref, key); err != nil {
			return err
		}
	}

	d.setState(Committing)
	if err := d.store.Commit(ctx, c.working); err != nil {
		c.report.State = Aborted
		c.log.Error("committing snapshot, notifications already sent stand",
			zap.Int("notified", c.report.Notified),
			zap.Error(err))
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

func (d *Driver) reconcileProject(ctx context.Context, c *cycle, prior *snapshot.Snapshot, ref source.ProjectRef, key string) error {
	log := c.log.With(zap.String("project", key))

	d.setState(Fetching)
	files, err := d.source.ListFiles(ctx, ref)
	if err != nil {
		if !errors.IsSkippable(err) {
			return fmt.Errorf("listing files of %s: %w", ref, err)
		}
		log.Warn("listing files failed, skipping project", zap.Error(err))
		c.report.Skipped = append(c.report.Skipped, key)
		return nil
	}

	d.setState(Detecting)
	p, _ := prior.Project(key)
	events := d.detector.Detect(key, files, p)

	d.setState(Processing)
	proj := notify.Project{Title: ref.Title, Module: ref.Module}
	for _, ev := range events {
		c.report.Events++
		switch ev.Kind {
		case change.NewProject:
			ev.Project.Title = ref.Title
			ev.Project.Module = ref.Module
			d.processNewProject(ctx, c, log, proj, ev)
		case change.NewFile:
			d.processNewFile(ctx, c, log, proj, &ev)
		case change.ModifiedFile:
			d.processModified(ctx, c, log, proj, &ev)
		}
		change.Apply(c.working, ev)
	}
	return nil
}

func (d *Driver) processNewProject(ctx context.Context, c *cycle, log *zap.Logger, proj notify.Project, ev change.Event) {
	for i := range ev.Project.Files {
		ev.Project.Files[i].ContentRef = d.download(ctx, log, ev.Project.Files[i])
	}
	if c.seed && !d.announceSeed {
		log.Debug("new project recorded silently", zap.Int("files", len(ev.Project.Files)))
		return
	}
	d.send(ctx, c, log, notify.MessagePayload(notify.NewProjectMessage(proj, ev.Project.Files)))
}

func (d *Driver) processNewFile(ctx context.Context, c *cycle, log *zap.Logger, proj notify.Project, ev *change.Event) {
	ev.New.ContentRef = d.download(ctx, log, ev.New)
	d.send(ctx, c, log, notify.MessagePayload(notify.NewFileMessage(proj, ev.New)))
}

func (d *Driver) processModified(ctx context.Context, c *cycle, log *zap.Logger, proj notify.Project, ev *change.Event) {
	log = log.With(zap.String("file", ev.New.Title))
	d.send(ctx, c, log, notify.MessagePayload(notify.ModifiedMessage(proj, ev.Old, ev.New)))

	// An empty ref keeps the previous version on Apply.
	ev.New.ContentRef = d.download(ctx, log, ev.New)

	if d.diffTextContent && d.differ != nil && ev.New.ContentRef != "" && ev.Old.ContentRef != "" {
		res := d.differ.Diff(
			diff.Ref{Name: ev.Old.Title, ContentRef: ev.Old.ContentRef},
			diff.Ref{Name: ev.New.Title, ContentRef: ev.New.ContentRef},
		)
		if res.Comparable {
			d.sendDiff(ctx, c, log, proj, ev.New, res)
			return
		}
		log.Debug("content not comparable, falling back", zap.Error(res.Err))
	}

	if d.downloadContent && ev.Old.ContentRef != "" {
		data, err := d.content.Get(ev.Old.ContentRef)
		if err != nil {
			log.Warn("loading previous version", zap.Error(err))
			return
		}
		d.send(ctx, c, log, notify.AttachmentPayload(&notify.Attachment{Name: ev.Old.Title, Data: data}))
	}
}

func (d *Driver) sendDiff(ctx context.Context, c *cycle, log *zap.Logger, proj notify.Project, file snapshot.FileRecord, res diff.Result) {
	if res.Identical {
		log.Info("content identical after normalization")
		return
	}
	log.Debug("content changed",
		zap.Int("additions", res.Stats.Additions),
		zap.Int("deletions", res.Stats.Deletions),
		zap.String("size_class", res.SizeClass.String()))

	if res.SizeClass == diff.Inline {
		d.send(ctx, c, log, notify.MessagePayload(notify.DiffMessage(proj, file, res.Payload)))
		return
	}
	d.send(ctx, c, log, notify.AttachmentPayload(&notify.Attachment{
		Name: snapshot.NormalizeKey(file.Title) + ".diff",
		Data: []byte(res.Payload),
	}))
}

// download stores the current remote version and returns its ref, or ""
// when downloads are off or the fetch failed.
func (d *Driver) download(ctx context.Context, log *zap.Logger, file snapshot.FileRecord) string {
	if !d.downloadContent {
		return ""
	}
	rc, err := d.source.FetchContent(ctx, file)
	if err != nil {
		log.Warn("downloading file", zap.String("file", file.Title), zap.Error(err))
		return ""
	}
	defer rc.Close()

	ref, err := d.content.Put(file.Title, rc)
	if err != nil {
		log.Warn("storing file", zap.String("file", file.Title), zap.Error(err))
		return ""
	}
	return ref
}

func (d *Driver) send(ctx context.Context, c *cycle, log *zap.Logger, p notify.Payload) {
	if err := d.notifier.Notify(ctx, p); err != nil {
		c.report.NotifyFailures++
		log.Warn("notification failed", zap.Error(err))
		return
	}
	c.report.Notified++
}

// projectKey normalizes a project title. Projects sharing a title are told
// apart by module: a project keeps the module-qualified key it was recorded
// under, and takes one when the plain key belongs to another module or was
// already used in this listing. Keys therefore do not depend on listing order.
func projectKey(ref source.ProjectRef, prior *snapshot.Snapshot, used map[string]bool) string {
	base := snapshot.NormalizeKey(ref.Title)
	qualified := snapshot.NormalizeKey(ref.Title + " [" + ref.Module + "]")

	key := base
	if p, ok := prior.Project(base); ok && p.Module != "" && p.Module != ref.Module {
		key = qualified
	}
	if _, ok := prior.Project(qualified); ok && ref.Module != "" {
		key = qualified
	}
	if used[key] {
		key = qualified
	}
	used[key] = true
	return key
}
