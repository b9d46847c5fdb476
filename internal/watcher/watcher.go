// Package watcher turns filesystem changes to markdown documents into
// live-reload events and search index rebuilds.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fruitsalade/docbrowser/internal/catalog"
	"github.com/fruitsalade/docbrowser/internal/events"
	"github.com/fruitsalade/docbrowser/internal/logging"
	"github.com/fruitsalade/docbrowser/internal/pathsafe"
	"github.com/fruitsalade/docbrowser/pkg/models"
)

// Kind classifies a change.
type Kind int

const (
	Created Kind = iota
	Modified
	Removed
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// Change is one typed filesystem change. Path is relative to the projects
// root with forward slashes; it is empty for injected tree changes.
type Change struct {
	Kind Kind
	Path string
}

// State is the notifier lifecycle state.
type State int32

const (
	StateActive State = iota
	StateStopped
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "stopped"
}

// Publisher fans events out to live-reload clients.
type Publisher interface {
	Publish(events.Event)
}

// Rebuilder rebuilds the search index.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// Config configures a Notifier.
type Config struct {
	Root      string
	Scanner   *catalog.Scanner
	Publisher Publisher
	Index     Rebuilder

	// Watch enables the filesystem source. Without it only TreeChanged
	// feeds the pipeline.
	Watch bool
	// Debounce is the window in which changes are coalesced.
	Debounce time.Duration
	// QueueSize bounds the change queue; overflow forces a tree refresh.
	QueueSize int
}

const defaultQueueSize = 1024

// Notifier watches the projects root and dispatches coalesced changes.
type Notifier struct {
	root      string
	scanner   *catalog.Scanner
	publisher Publisher
	index     Rebuilder
	debounce  time.Duration

	fsw     *fsnotify.Watcher
	mu      sync.Mutex
	watched map[string]struct{}

	changes  chan Change
	overflow atomic.Bool
	kick     chan struct{}

	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// Start creates an active notifier.
func Start(ctx context.Context, cfg Config) (*Notifier, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	ctx, cancel := context.WithCancel(ctx)
	n := &Notifier{
		root:      cfg.Root,
		scanner:   cfg.Scanner,
		publisher: cfg.Publisher,
		index:     cfg.Index,
		debounce:  cfg.Debounce,
		watched:   make(map[string]struct{}),
		changes:   make(chan Change, cfg.QueueSize),
		kick:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		stop:      make(chan struct{}),
	}

	if cfg.Watch {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			cancel()
			return nil, err
		}
		n.fsw = fsw
		n.watchRecursive(n.root)
		n.wg.Add(1)
		go n.mainLoop()
	}

	n.wg.Add(1)
	go n.dispatch()

	logging.Info("change notifier started",
		logging.String("root", n.root),
		logging.Int("watched_dirs", n.WatchedDirs()))
	return n, nil
}

// State returns the lifecycle state.
func (n *Notifier) State() State {
	return State(n.state.Load())
}

// TreeChanged reports a tree-changing event from outside the filesystem
// watch, such as a completed upload.
func (n *Notifier) TreeChanged() {
	n.enqueue(Change{Kind: Created})
}

// WatchedDirs returns the number of watched directories.
func (n *Notifier) WatchedDirs() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.watched)
}

// Close stops watching and waits for in-flight dispatches. It is safe to
// call more than once.
func (n *Notifier) Close() error {
	n.once.Do(func() {
		n.state.Store(int32(StateStopped))
		close(n.stop)
		n.cancel()
		if n.fsw != nil {
			n.fsw.Close()
		}
		logging.Info("change notifier stopped")
	})
	n.wg.Wait()
	return nil
}

func (n *Notifier) enqueue(c Change) {
	if n.State() == StateStopped {
		return
	}
	select {
	case n.changes <- c:
	default:
		n.overflow.Store(true)
		select {
		case n.kick <- struct{}{}:
		default:
		}
	}
}

// ─── Filesystem source ─────────────────────────────────────────────────────

func (n *Notifier) mainLoop() {
	defer n.wg.Done()
	for {
		select {
		case <-n.stop:
			return
		case err, ok := <-n.fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				n.overflow.Store(true)
				select {
				case n.kick <- struct{}{}:
				default:
				}
			}
			logging.Warn("watcher: fsnotify error", logging.Err(err))
		case evt, ok := <-n.fsw.Events:
			if !ok {
				return
			}
			n.handleEvent(evt)
		}
	}
}

func (n *Notifier) handleEvent(evt fsnotify.Event) {
	path := filepath.Clean(evt.Name)
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return
	}

	switch {
	case evt.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if n.scanner.Ignored(name) {
				return
			}
			n.watchRecursive(path)
			n.scanNewDir(path)
			return
		}
		n.emit(Created, path)
	case evt.Has(fsnotify.Write):
		n.emit(Modified, path)
	case evt.Has(fsnotify.Remove), evt.Has(fsnotify.Rename):
		if n.unwatch(path) {
			// A project directory has no project-relative path; an empty
			// path still forces a tree refresh.
			rel, _ := n.projectRel(path)
			n.enqueue(Change{Kind: Removed, Path: rel})
			return
		}
		n.emit(Removed, path)
	}
}

// emit enqueues a change for a markdown file inside a project.
func (n *Notifier) emit(kind Kind, path string) {
	if !models.IsMarkdown(path) {
		return
	}
	rel, ok := n.projectRel(path)
	if !ok {
		return
	}
	n.enqueue(Change{Kind: kind, Path: rel})
}

// projectRel returns path relative to root if it lies inside a project.
func (n *Notifier) projectRel(path string) (string, bool) {
	if !pathsafe.Contains(n.root, path) {
		return "", false
	}
	rel := pathsafe.RelSlash(n.root, path)
	if !strings.Contains(rel, "/") {
		return "", false
	}
	return rel, true
}

// scanNewDir reports markdown files that arrived with a new directory,
// since their own create events happened before the watch existed.
func (n *Notifier) scanNewDir(dir string) {
	filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != dir && n.scanner.Ignored(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasPrefix(d.Name(), ".") {
			n.emit(Created, p)
		}
		return nil
	})
}

func (n *Notifier) watchRecursive(root string) {
	filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != root && n.scanner.Ignored(d.Name()) {
			return filepath.SkipDir
		}

		n.mu.Lock()
		defer n.mu.Unlock()
		if _, exists := n.watched[p]; !exists {
			if err := n.fsw.Add(p); err != nil {
				logging.Debug("watcher: cannot watch directory", logging.String("dir", p), logging.Err(err))
				return nil
			}
			n.watched[p] = struct{}{}
		}
		return nil
	})
}

// unwatch forgets a removed directory and everything below it. It reports
// whether path was a watched directory.
func (n *Notifier) unwatch(path string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	found := false
	for p := range n.watched {
		if pathsafe.Contains(path, p) {
			delete(n.watched, p)
			n.fsw.Remove(p)
			found = true
		}
	}
	return found
}

// ─── Dispatcher ────────────────────────────────────────────────────────────

// batch accumulates the changes of one debounce window.
type batch struct {
	reloads []string
	kinds   map[string]Kind
	refresh bool
}

func (b *batch) add(c Change) {
	if b.kinds == nil {
		b.kinds = make(map[string]Kind)
	}
	if c.Kind != Modified {
		b.refresh = true
	}
	if c.Path == "" {
		return
	}
	prev, seen := b.kinds[c.Path]
	if !seen {
		b.kinds[c.Path] = c.Kind
		if c.Kind == Modified {
			b.reloads = append(b.reloads, c.Path)
		}
		return
	}
	if prev == Modified && c.Kind != Modified {
		b.kinds[c.Path] = c.Kind
	}
}

func (b *batch) empty() bool {
	return !b.refresh && len(b.reloads) == 0
}

// dispatch is the single consumer of changes. Each window ends with at most
// one rebuild, so rebuilds never overlap.
func (n *Notifier) dispatch() {
	defer n.wg.Done()

	var pending batch
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	var timerC <-chan time.Time

	arm := func() {
		if timerC == nil {
			timer.Reset(n.debounce)
			timerC = timer.C
		}
	}

	for {
		select {
		case <-n.stop:
			timer.Stop()
			return
		case c := <-n.changes:
			pending.add(c)
			arm()
		case <-n.kick:
			arm()
		case <-timerC:
			timerC = nil
			n.drain(&pending)
			n.flush(pending)
			pending = batch{}
		}
	}
}

// drain pulls whatever is already queued into the current window.
func (n *Notifier) drain(b *batch) {
	for {
		select {
		case c := <-n.changes:
			b.add(c)
		default:
			return
		}
	}
}

func (n *Notifier) flush(b batch) {
	if n.overflow.Swap(false) {
		logging.Warn("watcher: change queue overflowed, refreshing tree")
		b.refresh = true
	}
	if b.empty() {
		return
	}

	for _, p := range b.reloads {
		if b.kinds[p] != Modified {
			continue
		}
		n.publisher.Publish(events.Reload(p))
	}
	if b.refresh {
		n.publisher.Publish(events.RefreshTree())
	}

	if err := n.index.Rebuild(n.ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("watcher: index rebuild failed", logging.Err(err))
	}
}
