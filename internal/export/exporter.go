// Package export writes the live entities of a pinned package to a SQLite
// file that page generators read without linking against the store.
package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"docverse/internal/atom"
	"docverse/internal/errors"
	"docverse/internal/pinned"
	"docverse/internal/slogutil"
)

// Options configures an export.
type Options struct {
	// Path is the SQLite file to create. An existing file is replaced.
	Path string

	// Disambiguation controls the hash suffix of exported addresses.
	Disambiguation pinned.Disambiguation
}

// Summary counts what an export wrote.
type Summary struct {
	Path      string    `json:"path"`
	Package   string    `json:"package"`
	Version   string    `json:"version"`
	Generated time.Time `json:"generated"`
	Modules   int       `json:"modules"`
	Symbols   int       `json:"symbols"`
	Members   int       `json:"members"`
	Overlays  int       `json:"overlays"`
	Articles  int       `json:"articles"`
}

// Exporter writes the local package of a context, resolving inherited
// documentation, addresses and overlays through the whole context.
type Exporter struct {
	ctx    *pinned.Context
	logger *slog.Logger
}

// NewExporter creates an exporter for c.
func NewExporter(c *pinned.Context, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Exporter{ctx: c, logger: logger}
}

// Export writes the file described by opts.
func (e *Exporter) Export(ctx context.Context, opts Options) (*Summary, error) {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(opts.Path + suffix); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove previous export: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	local := e.ctx.Local()
	summary := &Summary{
		Path:      opts.Path,
		Package:   local.Name(),
		Version:   local.Version().String(),
		Generated: time.Now().UTC(),
	}
	err = withTx(ctx, conn, func(tx *sql.Tx) error {
		if err := createTables(tx); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		w := &writer{e: e, tx: tx, ctx: ctx, level: opts.Disambiguation, summary: summary}
		for _, step := range []func() error{w.metadata, w.modules, w.symbols, w.articles} {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Exported package",
		"package", summary.Package,
		"version", summary.Version,
		"path", summary.Path,
		"symbols", summary.Symbols)
	return summary, nil
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func withTx(ctx context.Context, conn *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type writer struct {
	e       *Exporter
	tx      *sql.Tx
	ctx     context.Context
	level   pinned.Disambiguation
	summary *Summary
}

func (w *writer) metadata() error {
	local := w.e.ctx.Local()
	info, ok := local.Info()
	if !ok {
		return errors.Errorf(errors.InvalidPin, "%q version %s was rolled back", local.Name(), local.Version())
	}
	pins := make(map[string]string, len(info.Pins))
	for _, dep := range info.PinOrder() {
		if p, ok := w.e.ctx.Package(dep); ok {
			pins[p.Name()] = info.Pins[dep].String()
		}
	}
	pinsJSON, err := json.Marshal(pins)
	if err != nil {
		return err
	}
	rows := [][2]string{
		{"schema_version", fmt.Sprint(schemaVersion)},
		{"package", local.Name()},
		{"version", local.Version().String()},
		{"digest", info.Digest},
		{"ingestion", info.Ingestion},
		{"committed", info.Date.Format(time.RFC3339)},
		{"generated", w.summary.Generated.Format(time.RFC3339)},
		{"pins", string(pinsJSON)},
	}
	for _, r := range rows {
		if _, err := w.tx.ExecContext(w.ctx, `INSERT INTO metadata (key, value) VALUES (?, ?)`, r[0], r[1]); err != nil {
			return fmt.Errorf("failed to write metadata: %w", err)
		}
	}
	return nil
}

// moduleName names m, which may belong to any package of the context.
func (w *writer) moduleName(m atom.Module) (string, bool) {
	p, ok := w.e.ctx.Package(m.Nationality())
	if !ok {
		return "", false
	}
	return p.Volume().ModuleID(m), true
}

func (w *writer) symbolID(s atom.Symbol) (string, bool) {
	view, ok := w.e.ctx.Symbol(s)
	if !ok {
		return "", false
	}
	return view.ID, true
}

func (w *writer) modules() error {
	stmt, err := w.tx.PrepareContext(w.ctx, `INSERT INTO modules (name, language, dependencies_json) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for m := range w.e.ctx.Local().Modules() {
		deps := make([]string, 0, len(m.Dependencies))
		for _, d := range m.Dependencies {
			if name, ok := w.moduleName(d); ok {
				deps = append(deps, name)
			}
		}
		depsJSON, err := json.Marshal(deps)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(w.ctx, m.ID, m.Metadata.Language, string(depsJSON)); err != nil {
			return fmt.Errorf("failed to write module %q: %w", m.ID, err)
		}
		w.summary.Modules++
	}
	return nil
}

func (w *writer) symbols() error {
	insert, err := w.tx.PrepareContext(w.ctx, `
		INSERT INTO symbols (stable_id, module, kind, path, name, declaration, doc_card, doc_body,
			doc_inherited, extends_id, address, availability_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insert.Close()

	local := w.e.ctx.Local()
	var members [][2]string
	var hosts []atom.Symbol
	for s := range local.Symbols() {
		module, _ := w.moduleName(s.Atom.Culture)
		doc, _ := w.e.ctx.Documentation(s.Atom)
		inherited := s.Documentation.IsEmpty() && !doc.IsEmpty()

		var extends sql.NullString
		if s.Extends != nil {
			if id, ok := w.symbolID(*s.Extends); ok {
				extends = sql.NullString{String: id, Valid: true}
			}
		}
		var availability sql.NullString
		if len(s.Intrinsic.Availability) > 0 {
			data, err := json.Marshal(s.Intrinsic.Availability)
			if err != nil {
				return err
			}
			availability = sql.NullString{String: string(data), Valid: true}
		}
		addr, _ := w.e.ctx.Address(s.Atom, w.level)

		_, err := insert.ExecContext(w.ctx,
			s.ID, module, string(s.Intrinsic.Kind), strings.Join(s.Intrinsic.Path, "/"), s.Intrinsic.Name(),
			s.Declaration, doc.Card, doc.Body, inherited, extends, addr.String(), availability)
		if err != nil {
			return fmt.Errorf("failed to write symbol %q: %w", s.ID, err)
		}
		w.summary.Symbols++

		for _, m := range s.Members {
			if id, ok := w.symbolID(m); ok {
				members = append(members, [2]string{s.ID, id})
			}
		}
		hosts = append(hosts, s.Atom)
	}

	// Members and overlays reference symbols, so they follow every symbol row.
	for _, m := range members {
		if _, err := w.tx.ExecContext(w.ctx, `INSERT OR IGNORE INTO members (owner_id, member_id) VALUES (?, ?)`, m[0], m[1]); err != nil {
			return fmt.Errorf("failed to write member: %w", err)
		}
		w.summary.Members++
	}
	for _, host := range hosts {
		if err := w.overlays(host); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) overlays(host atom.Symbol) error {
	hostID, _ := w.symbolID(host)
	for _, o := range w.e.ctx.Overlays(host) {
		culture, ok := w.moduleName(o.Diacritic.Culture)
		if !ok {
			continue
		}
		p, _ := w.e.ctx.Package(o.Diacritic.Culture.Nationality())
		constraints, err := json.Marshal(o.Constraints)
		if err != nil {
			return err
		}
		for relation, targets := range map[string][]atom.Symbol{"conformance": o.Conformances, "feature": o.Features} {
			for _, t := range targets {
				targetID, ok := w.symbolID(t)
				if !ok {
					continue
				}
				var address sql.NullString
				if relation == "feature" {
					if c, ok := atom.NewCompound(o.Diacritic, t); ok {
						if addr, ok := w.e.ctx.AddressComposite(c.Composite(), w.level); ok {
							address = sql.NullString{String: addr.String(), Valid: true}
						}
					}
				}
				_, err := w.tx.ExecContext(w.ctx, `
					INSERT INTO overlays (host_id, package, culture, relation, target_id, address, constraints_json)
					VALUES (?, ?, ?, ?, ?, ?, ?)`,
					hostID, p.Name(), culture, relation, targetID, address, string(constraints))
				if err != nil {
					return fmt.Errorf("failed to write overlay of %q: %w", hostID, err)
				}
				w.summary.Overlays++
			}
		}
	}
	return nil
}

func (w *writer) articles() error {
	for a := range w.e.ctx.Local().Articles() {
		module, _ := w.moduleName(a.Atom.Culture)
		body := a.Body.Card
		if a.Body.Body != "" {
			body += "\n\n" + a.Body.Body
		}
		_, err := w.tx.ExecContext(w.ctx,
			`INSERT INTO articles (article_id, module, name, headline, body) VALUES (?, ?, ?, ?, ?)`,
			a.ID, module, a.Metadata.Name, a.Metadata.Headline, body)
		if err != nil {
			return fmt.Errorf("failed to write article %q: %w", a.ID, err)
		}
		w.summary.Articles++
	}
	return nil
}
