package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/modrt/modrt/internal/module"
)

// ModuleRow is the persisted metadata of one module.
type ModuleRow struct {
	GUID         uuid.UUID
	Name         string
	Version      string
	Entry        string
	ManifestHash []byte
	Loaded       bool
	UpdatedAt    time.Time
}

type ModuleRepo struct {
	db *DB
}

func NewModuleRepo(db *DB) *ModuleRepo {
	return &ModuleRepo{db: db}
}

// ManifestHash fingerprints the identity and dependency fields of a
// manifest. Directory and description changes do not alter it.
func ManifestHash(info module.Info) []byte {
	h, _ := blake2b.New256(nil)
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00", info.GUID, info.Name, info.Version, info.Entry)
	for _, d := range info.Dependencies {
		fmt.Fprintf(h, "%s\x00%s\x00", d.Name, d.MinVersion)
	}
	return h.Sum(nil)
}

// SyncCatalog makes the modules table mirror the discovered set: unknown
// modules are removed and new or changed manifests are upserted along with
// their dependencies. It returns the number of rows written.
func (r *ModuleRepo) SyncCatalog(ctx context.Context, infos []module.Info) (int, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("catalog begin: %w", err)
	}
	defer tx.Rollback(ctx)

	keep := make([]string, len(infos))
	for i, info := range infos {
		keep[i] = info.GUID.String()
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM modules WHERE NOT (guid::text = ANY($1::text[]))`, keep,
	); err != nil {
		return 0, fmt.Errorf("catalog prune: %w", err)
	}

	written := 0
	for _, info := range infos {
		tag, err := tx.Exec(ctx,
			`INSERT INTO modules (guid, name, description, authors, version, entry, manifest_hash)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (guid) DO UPDATE SET
			     name = EXCLUDED.name,
			     description = EXCLUDED.description,
			     authors = EXCLUDED.authors,
			     version = EXCLUDED.version,
			     entry = EXCLUDED.entry,
			     manifest_hash = EXCLUDED.manifest_hash,
			     updated_at = NOW()
			 WHERE modules.manifest_hash <> EXCLUDED.manifest_hash`,
			info.GUID, info.Name, info.Description, info.Authors, info.Version.String(), info.Entry, ManifestHash(info),
		)
		if err != nil {
			return 0, fmt.Errorf("catalog upsert %s: %w", info.Name, err)
		}
		if tag.RowsAffected() == 0 {
			continue
		}
		written++
		if _, err := tx.Exec(ctx, `DELETE FROM module_dependencies WHERE module_guid = $1`, info.GUID); err != nil {
			return 0, fmt.Errorf("catalog deps %s: %w", info.Name, err)
		}
		for pos, d := range info.Dependencies {
			if _, err := tx.Exec(ctx,
				`INSERT INTO module_dependencies (module_guid, position, name, min_version)
				 VALUES ($1, $2, $3, $4)`,
				info.GUID, pos, d.Name, d.MinVersion.String(),
			); err != nil {
				return 0, fmt.Errorf("catalog deps %s: %w", info.Name, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("catalog commit: %w", err)
	}
	return written, nil
}

// SetLoaded records a load or unload of the given modules.
func (r *ModuleRepo) SetLoaded(ctx context.Context, ms []module.Module, loaded bool) error {
	if len(ms) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("set loaded begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, m := range ms {
		if _, err := tx.Exec(ctx,
			`UPDATE modules SET loaded = $2, updated_at = NOW() WHERE guid = $1`,
			m.GUID, loaded,
		); err != nil {
			return fmt.Errorf("set loaded %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO module_loads (module_guid, loaded) VALUES ($1, $2)`,
			m.GUID, loaded,
		); err != nil {
			return fmt.Errorf("log load %s: %w", m.Name, err)
		}
	}
	return tx.Commit(ctx)
}

// LoadedModules returns the modules marked loaded, oldest update first.
func (r *ModuleRepo) LoadedModules(ctx context.Context) ([]ModuleRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT guid, name, version, entry, manifest_hash, loaded, updated_at
		 FROM modules WHERE loaded ORDER BY updated_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ModuleRow
	for rows.Next() {
		var row ModuleRow
		if err := rows.Scan(&row.GUID, &row.Name, &row.Version, &row.Entry,
			&row.ManifestHash, &row.Loaded, &row.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ResetLoaded clears every loaded flag, used when a previous run did not
// shut down cleanly.
func (r *ModuleRepo) ResetLoaded(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE modules SET loaded = FALSE WHERE loaded`)
	return err
}
