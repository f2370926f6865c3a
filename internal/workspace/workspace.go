package workspace

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/run-llama/semtools/internal/store"
	"github.com/run-llama/semtools/pkg/types"
)

const (
	// EnvWorkspace selects the active workspace by name.
	EnvWorkspace = "SEMTOOLS_WORKSPACE"

	// HeaderSchemaVersion is the workspace layout version.
	HeaderSchemaVersion = 1

	headerFile  = "header.json"
	catalogFile = "catalog.db"
	entriesDir  = "entries"
)

// Header is the workspace metadata record at <root>/header.json.
type Header struct {
	SchemaVersion int       `json:"schema_version"`
	ModelID       string    `json:"model_id"`
	ModelDim      int       `json:"model_dim"`
	CreatedAt     time.Time `json:"created_at"`
}

// Workspace is an opened workspace: its entry store plus the catalog.
type Workspace struct {
	Name    string
	Root    string
	Header  Header
	Store   *store.Store
	catalog *Catalog
}

// Active returns the active workspace name from the environment, or
// ErrNoWorkspace when none is set.
func Active() (string, error) {
	name := os.Getenv(EnvWorkspace)
	if name == "" {
		return "", types.ErrNoWorkspace
	}
	return name, nil
}

// RootFor returns the on-disk root for a workspace name.
func RootFor(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".semtools", "workspaces", name), nil
}

// Open opens the named workspace, creating its directory structure and
// header on first use. modelID and modelDim describe the embedding model
// in use; they are recorded in the header when it is first written.
func Open(name, modelID string, modelDim int) (*Workspace, error) {
	root, err := RootFor(name)
	if err != nil {
		return nil, err
	}

	st, err := store.New(filepath.Join(root, entriesDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace %q: %w", name, err)
	}

	header, err := loadOrCreateHeader(filepath.Join(root, headerFile), modelID, modelDim)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{
		Name:   name,
		Root:   root,
		Header: header,
		Store:  st,
	}

	// The catalog is derived state: losing it only costs a rebuild, so
	// a broken catalog degrades to a warning instead of failing search.
	cat, err := OpenCatalog(filepath.Join(root, catalogFile))
	if err != nil {
		log.Printf("warning: workspace catalog unavailable: %v", err)
	} else {
		ws.catalog = cat
	}

	return ws, nil
}

// OpenActive opens the workspace named by the environment. Returns
// ErrNoWorkspace when no workspace is active.
func OpenActive(modelID string, modelDim int) (*Workspace, error) {
	name, err := Active()
	if err != nil {
		return nil, err
	}
	return Open(name, modelID, modelDim)
}

func loadOrCreateHeader(path, modelID string, modelDim int) (Header, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		var h Header
		if jsonErr := json.Unmarshal(data, &h); jsonErr == nil {
			if h.ModelID == "" || h.ModelDim == 0 {
				// Header written before the model was known (workspace
				// use without a model present); fill it in now.
				h.ModelID = modelID
				h.ModelDim = modelDim
				if writeErr := writeHeader(path, h); writeErr != nil {
					return Header{}, writeErr
				}
			}
			return h, nil
		}
		// An unreadable header is rewritten; entries stay valid because
		// they carry their own fingerprints.
		log.Printf("warning: rewriting unreadable workspace header %s", path)
	} else if !os.IsNotExist(err) {
		return Header{}, fmt.Errorf("failed to read workspace header: %w", err)
	}

	h := Header{
		SchemaVersion: HeaderSchemaVersion,
		ModelID:       modelID,
		ModelDim:      modelDim,
		CreatedAt:     time.Now().UTC(),
	}
	if err := writeHeader(path, h); err != nil {
		return Header{}, err
	}
	return h, nil
}

func writeHeader(path string, h Header) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode workspace header: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write workspace header: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit workspace header: %w", err)
	}
	return nil
}

// Close releases the catalog handle.
func (ws *Workspace) Close() error {
	if ws.catalog == nil {
		return nil
	}
	return ws.catalog.Close()
}

// HasCatalog reports whether the catalog opened successfully.
func (ws *Workspace) HasCatalog() bool { return ws.catalog != nil }

// RecordPut persists fe to the entry store and keeps the catalog in
// sync. Catalog failures are logged, not returned: the artifact is the
// source of truth.
func (ws *Workspace) RecordPut(fe *types.FileEmbedding) error {
	if err := ws.Store.Put(fe); err != nil {
		return err
	}
	if ws.catalog == nil {
		return nil
	}

	info, err := os.Stat(ws.Store.EntryFile(fe.Path))
	var size int64
	if err == nil {
		size = info.Size()
	}
	row := CatalogRow{
		Path:        fe.Path,
		Fingerprint: fe.Fingerprint,
		Options:     fe.Options,
		Windows:     len(fe.Windows),
		Dim:         fe.Dim,
		SizeBytes:   size,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := ws.catalog.Upsert(row); err != nil {
		log.Printf("warning: failed to update workspace catalog: %v", err)
	}
	return nil
}

// RecordRemove deletes the entry and its catalog row.
func (ws *Workspace) RecordRemove(path string) error {
	if err := ws.Store.Remove(path); err != nil {
		return err
	}
	if ws.catalog != nil {
		if err := ws.catalog.Delete(path); err != nil {
			log.Printf("warning: failed to update workspace catalog: %v", err)
		}
	}
	return nil
}

// Entries lists the workspace's entries, preferring the catalog and
// falling back to (and repairing the catalog from) a directory scan.
func (ws *Workspace) Entries() ([]CatalogRow, error) {
	scan, err := ws.Store.List()
	if err != nil {
		return nil, err
	}

	if ws.catalog != nil {
		rows, catErr := ws.catalog.Rows()
		if catErr == nil && len(rows) == len(scan) {
			return rows, nil
		}
		// Catalog missing rows (or holding ghosts): rebuild from the scan.
		if rebuildErr := ws.catalog.Rebuild(scan); rebuildErr != nil {
			log.Printf("warning: failed to rebuild workspace catalog: %v", rebuildErr)
		}
	}

	rows := make([]CatalogRow, 0, len(scan))
	for _, e := range scan {
		rows = append(rows, CatalogRow{
			Path:        e.Meta.Path,
			Fingerprint: e.Meta.Fingerprint,
			Options:     e.Meta.Options,
			Windows:     e.Meta.Windows,
			Dim:         e.Meta.Dim,
			SizeBytes:   e.SizeBytes,
		})
	}
	return rows, nil
}

// Status summarizes the workspace for display.
func (ws *Workspace) Status() (types.WorkspaceOutput, error) {
	count, size, err := ws.Store.Stat()
	if err != nil {
		return types.WorkspaceOutput{}, err
	}
	return types.WorkspaceOutput{
		Name:       ws.Name,
		Root:       ws.Root,
		Entries:    count,
		SizeBytes:  size,
		HasCatalog: ws.catalog != nil,
	}, nil
}

// Prune removes entries whose source file is missing or whose content
// fingerprint no longer matches. Running it twice in a row removes
// nothing on the second pass.
func (ws *Workspace) Prune() (types.PruneOutput, error) {
	rows, err := ws.Entries()
	if err != nil {
		return types.PruneOutput{}, err
	}

	var removed []string
	for _, row := range rows {
		if store.IsCurrent(row.Path, row.Fingerprint) {
			continue
		}
		if err := ws.RecordRemove(row.Path); err != nil {
			log.Printf("warning: failed to prune %s: %v", row.Path, err)
			continue
		}
		removed = append(removed, row.Path)
	}

	return types.PruneOutput{
		Removed:   len(removed),
		Remaining: len(rows) - len(removed),
		Paths:     removed,
	}, nil
}

// Use ensures the named workspace exists on disk and returns the
// activation instruction for the user's shell. modelID may be empty when
// the model is not yet installed; the header is completed on first
// search.
func Use(name, modelID string, modelDim int) (*Workspace, string, error) {
	ws, err := Open(name, modelID, modelDim)
	if err != nil {
		return nil, "", err
	}
	instruction := fmt.Sprintf("export %s=%s", EnvWorkspace, name)
	return ws, instruction, nil
}
