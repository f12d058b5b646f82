// Package universe is the registry of every package the store knows about.
//
// It owns one volume per package, validates ingestion batches before handing
// them to the volume, and builds the pinned contexts that queries run against.
package universe

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docverse/internal/atom"
	"docverse/internal/divergence"
	"docverse/internal/errors"
	"docverse/internal/graph"
	"docverse/internal/pinned"
	"docverse/internal/slogutil"
	"docverse/internal/tree"
	"docverse/internal/volume"
)

// StandardLibraryName is the name the standard library is registered under.
const StandardLibraryName = "std"

// Options configures a Universe.
type Options struct {
	// DefaultBranch names branch zero of every package. Defaults to "main".
	DefaultBranch string

	// SkipUnchanged makes UpdatePackage return the current head instead of
	// committing when neither the content nor the pins changed.
	SkipUnchanged bool

	// Clock stamps committed revisions. Defaults to time.Now in UTC.
	Clock func() time.Time

	Logger *slog.Logger
}

type entry struct {
	volume *volume.Volume

	// ingest serializes the validate-then-commit sequence of one package.
	ingest sync.Mutex
}

// Universe is safe for concurrent use. Updates to different packages run in
// parallel; updates to the same package are serialized.
type Universe struct {
	mu       sync.RWMutex
	packages []*entry
	byName   map[string]atom.Package

	// pins is held for reading from pin validation through commit and for
	// writing while a rollback checks that no revision pins what it drops.
	// It is always taken after an entry's ingest lock.
	pins sync.RWMutex

	opts   Options
	logger *slog.Logger
}

// New creates a universe holding only the standard library.
func New(opts Options) *Universe {
	if opts.DefaultBranch == "" {
		opts.DefaultBranch = "main"
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.Logger == nil {
		opts.Logger = slogutil.NewDiscardLogger()
	}
	u := &Universe{
		byName: make(map[string]atom.Package),
		opts:   opts,
		logger: opts.Logger,
	}
	if id := u.Register(StandardLibraryName); id != atom.StandardLibrary {
		panic(fmt.Sprintf("standard library registered as %d", id))
	}
	return u
}

// Register returns the id of the package called name, allocating one if the
// name is new. Package names are case-insensitive.
func (u *Universe) Register(name string) atom.Package {
	key := strings.ToLower(name)
	u.mu.Lock()
	defer u.mu.Unlock()
	if id, ok := u.byName[key]; ok {
		return id
	}
	id := atom.Package(len(u.packages))
	u.packages = append(u.packages, &entry{
		volume: volume.New(id, name, u.opts.DefaultBranch, u.logger),
	})
	u.byName[key] = id
	u.logger.Debug("Registered package", "package", name, "id", int(id))
	return id
}

// Lookup returns the id of a registered package.
func (u *Universe) Lookup(name string) (atom.Package, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	id, ok := u.byName[strings.ToLower(name)]
	return id, ok
}

// Volume returns the store of a registered package.
func (u *Universe) Volume(id atom.Package) (*volume.Volume, bool) {
	e, ok := u.entry(id)
	if !ok {
		return nil, false
	}
	return e.volume, true
}

// Packages returns every registered package id in registration order.
func (u *Universe) Packages() []atom.Package {
	u.mu.RLock()
	defer u.mu.RUnlock()
	ids := make([]atom.Package, len(u.packages))
	for i := range u.packages {
		ids[i] = atom.Package(i)
	}
	return ids
}

func (u *Universe) entry(id atom.Package) (*entry, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if int(id) >= len(u.packages) {
		return nil, false
	}
	return u.packages[id], true
}

func (u *Universe) mustEntry(id atom.Package) (*entry, error) {
	e, ok := u.entry(id)
	if !ok {
		return nil, errors.Errorf(errors.UnknownPackage, "package %d is not registered", id).
			WithHint(errors.GetHint(errors.UnknownPackage))
	}
	return e, nil
}

// branch resolves a branch name; the empty name is the default branch.
func branch(v *volume.Volume, name string) (tree.Branch, error) {
	if name == "" {
		return 0, nil
	}
	b, ok := v.Branch(name)
	if !ok {
		return 0, errors.Errorf(errors.UnknownBranch, "branch %q does not exist in %q", name, v.Name())
	}
	return b, nil
}

// UpdatePackage validates graphs and pins and commits them as the next
// revision of branch. Nothing is written unless validation succeeds, and a
// canceled ctx is honoured up to the commit.
func (u *Universe) UpdatePackage(ctx context.Context, id atom.Package, branchName string, graphs []*graph.Graph, pins map[atom.Package]tree.Version) (tree.Version, error) {
	e, err := u.mustEntry(id)
	if err != nil {
		return tree.Version{}, err
	}
	e.ingest.Lock()
	defer e.ingest.Unlock()
	u.pins.RLock()
	defer u.pins.RUnlock()

	v := e.volume
	b, err := branch(v, branchName)
	if err != nil {
		return tree.Version{}, err
	}
	if err := graph.ValidateBatch(graphs); err != nil {
		return tree.Version{}, err
	}
	if err := u.validatePins(id, pins); err != nil {
		return tree.Version{}, err
	}

	digest, err := graph.Digest(graphs)
	if err != nil {
		return tree.Version{}, fmt.Errorf("failed to digest graphs: %w", err)
	}
	if head, ok := v.Head(b); ok && u.opts.SkipUnchanged {
		prior := v.Info(head)
		if prior.Digest == digest && maps.Equal(prior.Pins, pins) {
			u.logger.Info("Skipped unchanged package", "package", v.Name(), "version", head.String())
			return head, nil
		}
	}

	upstream := make(pinned.Upstream, 0, len(pins))
	info := tree.RevisionInfo{
		Date:      u.opts.Clock(),
		Digest:    digest,
		Ingestion: uuid.New().String(),
		Pins:      maps.Clone(pins),
	}
	for _, dep := range info.PinOrder() {
		depVolume, _ := u.Volume(dep)
		p, ok := pinned.NewPackage(depVolume, pins[dep])
		if !ok {
			return tree.Version{}, errors.Errorf(errors.InvalidPin, "%q has no version %s", depVolume.Name(), pins[dep])
		}
		upstream = append(upstream, p)
	}

	if err := ctx.Err(); err != nil {
		return tree.Version{}, errors.NewStoreError(errors.IngestionCanceled,
			fmt.Sprintf("ingestion of %q canceled", v.Name()), err)
	}

	at, stats := v.Commit(b, graphs, info, upstream)
	u.logger.Info("Ingested package",
		"ingestion", info.Ingestion,
		"package", v.Name(),
		"version", at.String(),
		"modules", stats.Modules,
		"symbols", stats.Symbols,
		"articles", stats.Articles,
		"writes", stats.Writes,
		"removed", stats.Removed,
		"unresolved", stats.Unresolved)
	return at, nil
}

// validatePins checks that every pin names an existing version of another
// registered package and that adopting pins would not close a package
// dependency cycle through the default heads of the pinned packages.
func (u *Universe) validatePins(id atom.Package, pins map[atom.Package]tree.Version) error {
	for _, dep := range slices.Sorted(maps.Keys(pins)) {
		if dep == id {
			return errors.Errorf(errors.DependencyCycle, "package %d pins itself", id)
		}
		v, ok := u.Volume(dep)
		if !ok {
			return errors.Errorf(errors.UnknownPackage, "pinned package %d is not registered", dep).
				WithHint(errors.GetHint(errors.UnknownPackage))
		}
		if !v.Exists(pins[dep]) {
			return errors.Errorf(errors.InvalidPin, "%q has no version %s", v.Name(), pins[dep])
		}
	}
	if cycle := u.findCycle(id, pins); cycle != nil {
		names := make([]string, len(cycle))
		for i, p := range cycle {
			v, _ := u.Volume(p)
			names[i] = v.Name()
		}
		return errors.Errorf(errors.DependencyCycle, "package dependency cycle: %s", strings.Join(names, " -> ")).
			WithDetails(names)
	}
	return nil
}

// findCycle walks the package dependency graph formed by the default heads'
// pins, with the edges of id replaced by pins, and returns a path from id
// back to id if there is one.
func (u *Universe) findCycle(id atom.Package, pins map[atom.Package]tree.Version) []atom.Package {
	edges := func(p atom.Package) []atom.Package {
		if p == id {
			return slices.Sorted(maps.Keys(pins))
		}
		v, ok := u.Volume(p)
		if !ok {
			return nil
		}
		head, ok := v.Default()
		if !ok {
			return nil
		}
		return v.Info(head).PinOrder()
	}

	visited := make(map[atom.Package]bool)
	var path []atom.Package
	var visit func(p atom.Package) bool
	visit = func(p atom.Package) bool {
		path = append(path, p)
		for _, next := range edges(p) {
			if next == id {
				path = append(path, id)
				return true
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			if visit(next) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}
	if visit(id) {
		return path
	}
	return nil
}

// Fork creates branch name in package id, forked from version from.
func (u *Universe) Fork(id atom.Package, name string, from tree.Version) (tree.Branch, error) {
	e, err := u.mustEntry(id)
	if err != nil {
		return 0, err
	}
	e.ingest.Lock()
	defer e.ingest.Unlock()
	if !e.volume.Exists(from) {
		return 0, errors.Errorf(errors.InvalidPin, "%q has no version %s", e.volume.Name(), from)
	}
	return e.volume.Fork(name, from)
}

// Erode rolls branchName of package id back to until. It refuses while any
// revision of another package pins a revision the rollback would drop.
func (u *Universe) Erode(id atom.Package, branchName string, until tree.Revision) (divergence.Report, error) {
	e, err := u.mustEntry(id)
	if err != nil {
		return divergence.Report{}, err
	}
	e.ingest.Lock()
	defer e.ingest.Unlock()
	b, err := branch(e.volume, branchName)
	if err != nil {
		return divergence.Report{}, err
	}

	u.pins.Lock()
	defer u.pins.Unlock()
	for _, other := range u.Packages() {
		if other == id {
			continue
		}
		v, _ := u.Volume(other)
		if at, pin, ok := v.PinsBeyond(id, b, until); ok {
			return divergence.Report{}, errors.Errorf(errors.PinnedBeyondRollback,
				"%q %s pins %q %s", v.Name(), at, e.volume.Name(), pin).
				WithHint(errors.GetHint(errors.PinnedBeyondRollback)).
				WithDetails(map[string]string{"package": v.Name(), "version": at.String()})
		}
	}
	return e.volume.Erode(b, until)
}

// Pin resolves a selector against package id. A selector naming a branch
// the package does not have is an UnknownBranch error.
func (u *Universe) Pin(id atom.Package, sel tree.Selector) (tree.Version, error) {
	e, err := u.mustEntry(id)
	if err != nil {
		return tree.Version{}, err
	}
	if _, err := branch(e.volume, sel.Branch); err != nil {
		return tree.Version{}, err
	}
	at, ok := e.volume.Find(sel)
	if !ok {
		return tree.Version{}, errors.Errorf(errors.InvalidPin, "%q has no version matching %q", e.volume.Name(), sel.String())
	}
	return at, nil
}

// Package pins package id to version at.
func (u *Universe) Package(id atom.Package, at tree.Version) (*pinned.Package, error) {
	e, err := u.mustEntry(id)
	if err != nil {
		return nil, err
	}
	p, ok := pinned.NewPackage(e.volume, at)
	if !ok {
		return nil, errors.Errorf(errors.InvalidPin, "%q has no version %s", e.volume.Name(), at)
	}
	return p, nil
}

// Context builds the context of package id at version at from the pins
// recorded with that revision.
func (u *Universe) Context(id atom.Package, at tree.Version) (*pinned.Context, error) {
	local, upstream, err := u.upstream(id, at)
	if err != nil {
		return nil, err
	}
	return pinned.NewContext(local, upstream...), nil
}

// Bidirectional builds the context of package id at version at that also
// reaches its consumers: every other package whose default head pins id and
// has a live module importing one of id's modules. A non-nil whitelist
// restricts the consumers to the packages it names.
func (u *Universe) Bidirectional(id atom.Package, at tree.Version, whitelist []atom.Package) (*pinned.Context, error) {
	local, upstream, err := u.upstream(id, at)
	if err != nil {
		return nil, err
	}

	modules := atom.Link()
	for m := range local.Modules() {
		modules.Add(m.Atom)
	}

	var downstream []*pinned.Package
	for _, other := range u.Packages() {
		if other == id || (whitelist != nil && !slices.Contains(whitelist, other)) {
			continue
		}
		v, _ := u.Volume(other)
		head, ok := v.Default()
		if !ok {
			continue
		}
		if _, pins := v.Info(head).Pins[id]; !pins {
			continue
		}
		consumer, ok := pinned.NewPackage(v, head)
		if ok && consumer.Imports(modules) {
			downstream = append(downstream, consumer)
		}
	}
	return pinned.NewBidirectional(local, upstream, downstream), nil
}

func (u *Universe) upstream(id atom.Package, at tree.Version) (*pinned.Package, []*pinned.Package, error) {
	local, err := u.Package(id, at)
	if err != nil {
		return nil, nil, err
	}
	info, _ := local.Info()
	upstream := make([]*pinned.Package, 0, len(info.Pins))
	for _, dep := range info.PinOrder() {
		p, err := u.Package(dep, info.Pins[dep])
		if err != nil {
			return nil, nil, fmt.Errorf("failed to pin dependency of %q: %w", local.Name(), err)
		}
		upstream = append(upstream, p)
	}
	return local, upstream, nil
}
