// Package store exports analysis results to SQLite, for editors and tools
// that query template variables instead of re-reading the JSON output.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/abiiranathan/gotpl-analyzer/analyzer/ast"
)

// Store is the SQLite export of one analysis result.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS render_calls (
  id              INTEGER PRIMARY KEY,
  file            TEXT NOT NULL,
  line            INTEGER NOT NULL,
  template        TEXT NOT NULL,
  name_start_col  INTEGER,
  name_end_col    INTEGER
);

CREATE TABLE IF NOT EXISTS template_vars (
  id              INTEGER PRIMARY KEY,
  render_call_id  INTEGER NOT NULL REFERENCES render_calls(id) ON DELETE CASCADE,
  parent_id       INTEGER REFERENCES template_vars(id) ON DELETE CASCADE,
  name            TEXT NOT NULL,
  path            TEXT NOT NULL,
  type            TEXT,
  is_slice        BOOLEAN DEFAULT FALSE,
  is_map          BOOLEAN DEFAULT FALSE,
  is_method       BOOLEAN DEFAULT FALSE,
  key_type        TEXT,
  elem_type       TEXT,
  def_file        TEXT,
  def_line        INTEGER,
  def_col         INTEGER,
  doc             TEXT
);

CREATE TABLE IF NOT EXISTS func_maps (
  id              INTEGER PRIMARY KEY,
  name            TEXT NOT NULL UNIQUE,
  params          TEXT NOT NULL,
  returns         TEXT NOT NULL,
  doc             TEXT,
  def_file        TEXT,
  def_line        INTEGER,
  def_col         INTEGER
);

CREATE INDEX IF NOT EXISTS idx_render_calls_template ON render_calls(template);
CREATE INDEX IF NOT EXISTS idx_template_vars_call ON template_vars(render_call_id);
CREATE INDEX IF NOT EXISTS idx_template_vars_path ON template_vars(path);
`

// WriteResult replaces the stored result with result in one transaction.
// Field trees are flattened into template_vars rows linked by parent_id,
// each carrying its dotted path from the top-level var ("user.Profile.Name").
func (s *Store) WriteResult(result ast.AnalysisResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("write result: begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"template_vars", "render_calls", "func_maps"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("write result: clear %s: %w", table, err)
		}
	}

	for _, call := range result.RenderCalls {
		callID, err := insertRenderCallTx(tx, call)
		if err != nil {
			return fmt.Errorf("write result: render call %s:%d: %w", call.File, call.Line, err)
		}
		for _, v := range call.Vars {
			if err := insertVarTx(tx, callID, v); err != nil {
				return fmt.Errorf("write result: var %q of %s: %w", v.Name, call.Template, err)
			}
		}
	}

	for _, fm := range result.FuncMaps {
		if err := insertFuncMapTx(tx, fm); err != nil {
			return fmt.Errorf("write result: func map %q: %w", fm.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write result: commit: %w", err)
	}
	return nil
}

func insertRenderCallTx(tx *sql.Tx, call ast.RenderCall) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO render_calls (file, line, template, name_start_col, name_end_col) VALUES (?, ?, ?, ?, ?)`,
		call.File, call.Line, call.Template, call.TemplateNameStartCol, call.TemplateNameEndCol,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// varRow is the column set shared by top-level vars and nested fields.
type varRow struct {
	name, path, typeStr      string
	isSlice, isMap, isMethod bool
	keyType, elemType, doc   string
	defFile                  string
	defLine, defCol          int
	fields                   []ast.FieldInfo
}

func insertVarTx(tx *sql.Tx, callID int64, v ast.TemplateVar) error {
	return insertRowTx(tx, callID, nil, varRow{
		name: v.Name, path: v.Name, typeStr: v.TypeStr,
		isSlice: v.IsSlice, isMap: v.IsMap,
		keyType: v.KeyType, elemType: v.ElemType, doc: v.Doc,
		defFile: v.DefFile, defLine: v.DefLine, defCol: v.DefCol,
		fields: v.Fields,
	})
}

func insertRowTx(tx *sql.Tx, callID int64, parentID *int64, row varRow) error {
	res, err := tx.Exec(
		`INSERT INTO template_vars (render_call_id, parent_id, name, path, type, is_slice, is_map, is_method,
		  key_type, elem_type, def_file, def_line, def_col, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		callID, parentID, row.name, row.path, row.typeStr, row.isSlice, row.isMap, row.isMethod,
		row.keyType, row.elemType, row.defFile, row.defLine, row.defCol, row.doc,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, f := range row.fields {
		child := varRow{
			name: f.Name, path: row.path + "." + f.Name, typeStr: f.TypeStr,
			isSlice: f.IsSlice, isMap: f.IsMap, isMethod: f.TypeStr == ast.MethodTypeStr,
			keyType: f.KeyType, elemType: f.ElemType, doc: f.Doc,
			defFile: f.DefFile, defLine: f.DefLine, defCol: f.DefCol,
			fields: f.Fields,
		}
		if err := insertRowTx(tx, callID, &id, child); err != nil {
			return err
		}
	}
	return nil
}

func insertFuncMapTx(tx *sql.Tx, fm ast.FuncMapInfo) error {
	_, err := tx.Exec(
		`INSERT INTO func_maps (name, params, returns, doc, def_file, def_line, def_col) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fm.Name, marshalParams(fm.Params), marshalParams(fm.Returns), fm.Doc, fm.DefFile, fm.DefLine, fm.DefCol,
	)
	return err
}

// marshalParams converts a parameter list to JSON text for storage.
func marshalParams(params []ast.ParamInfo) string {
	if len(params) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(params)
	return string(b)
}

// FieldPaths returns the dotted paths of every var and field available to
// template, in insertion order.
func (s *Store) FieldPaths(template string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT v.path FROM template_vars v
		 JOIN render_calls c ON c.id = v.render_call_id
		 WHERE c.template = ?
		 ORDER BY v.id`, template)
	if err != nil {
		return nil, fmt.Errorf("field paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("field paths: scan: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// FuncMap returns the stored func map named name, or nil when there is none.
func (s *Store) FuncMap(name string) (*ast.FuncMapInfo, error) {
	var fm ast.FuncMapInfo
	var params, returns string
	var doc, defFile sql.NullString
	var defLine, defCol sql.NullInt64

	err := s.db.QueryRow(
		`SELECT name, params, returns, doc, def_file, def_line, def_col FROM func_maps WHERE name = ?`, name,
	).Scan(&fm.Name, &params, &returns, &doc, &defFile, &defLine, &defCol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("func map %q: %w", name, err)
	}

	if err := json.Unmarshal([]byte(params), &fm.Params); err != nil {
		return nil, fmt.Errorf("func map %q: params: %w", name, err)
	}
	if err := json.Unmarshal([]byte(returns), &fm.Returns); err != nil {
		return nil, fmt.Errorf("func map %q: returns: %w", name, err)
	}
	fm.Doc = doc.String
	fm.DefFile = defFile.String
	fm.DefLine = int(defLine.Int64)
	fm.DefCol = int(defCol.Int64)
	return &fm, nil
}
