package dolt

import (
	"context"
	"database/sql"
	"time"

	lstore "github.com/opencausal/latticegraphd/internal/store"
	"github.com/opencausal/latticegraphd/internal/types"
)

// CreateIncident registers an incident's universe anchor. It is
// idempotent: creating the same incident id twice returns the
// originally recorded row (spec §4.5).
func (s *Store) CreateIncident(ctx context.Context, incidentID string) (types.Incident, error) {
	var inc types.Incident
	err := s.withTx(ctx, "store.create_incident", func(tx *sql.Tx) error {
		var createdAt time.Time
		err := tx.QueryRowContext(ctx, `SELECT created_at FROM incidents WHERE incident_id = ?`, incidentID).Scan(&createdAt)
		switch {
		case err == sql.ErrNoRows:
			now := nowUTC()
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO incidents (incident_id, created_at) VALUES (?, ?)`, incidentID, now); err != nil {
				return lstore.WrapDBError("insert incident", err)
			}
			inc = types.Incident{IncidentID: incidentID, CreatedAt: now}
			return nil
		case err != nil:
			return lstore.WrapDBError("select incident", err)
		default:
			inc = types.Incident{IncidentID: incidentID, CreatedAt: createdAt}
			return nil
		}
	})
	return inc, err
}

// GetIncidentContext returns the universe anchor for incidentID.
func (s *Store) GetIncidentContext(ctx context.Context, incidentID string) (lstore.IncidentContext, error) {
	var ictx lstore.IncidentContext
	err := s.withTx(ctx, "store.get_incident_context", func(tx *sql.Tx) error {
		var createdAt time.Time
		err := tx.QueryRowContext(ctx, `SELECT created_at FROM incidents WHERE incident_id = ?`, incidentID).Scan(&createdAt)
		if err != nil {
			return lstore.WrapDBError("select incident", err)
		}
		ictx = lstore.IncidentContext{
			IncidentID:       incidentID,
			UniverseAnchor:   types.Incident{IncidentID: incidentID, CreatedAt: createdAt},
			EliminationSetID: incidentID,
		}
		return nil
	})
	return ictx, err
}

// MergeNodeTombstones eliminates nodeIDs from incidentID's live view.
// A node tombstoned before the node itself exists is recorded as
// unmatched (spec §4.5); that flag is frozen at creation and is never
// revisited by a later MergeHypothesis.
func (s *Store) MergeNodeTombstones(ctx context.Context, incidentID string, nodeIDs []string, prov types.Provenance) (lstore.TombstoneResult, error) {
	var res lstore.TombstoneResult
	err := s.withTx(ctx, "store.merge_node_tombstones", func(tx *sql.Tx) error {
		for _, id := range nodeIDs {
			var already int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM node_tombstones WHERE incident_id = ? AND node_id = ?`,
				incidentID, id).Scan(&already); err != nil {
				return lstore.WrapDBError("check node tombstone", err)
			}
			if already > 0 {
				res.AlreadyTombstonedIDs = append(res.AlreadyTombstonedIDs, id)
				continue
			}

			var nodeExists int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE id = ?`, id).Scan(&nodeExists); err != nil {
				return lstore.WrapDBError("check node exists", err)
			}
			unmatched := nodeExists == 0

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO node_tombstones (incident_id, node_id, provenance_source, provenance_trigger, provenance_ts, unmatched)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				incidentID, id, prov.Source, prov.Trigger, prov.Timestamp, unmatched); err != nil {
				return lstore.WrapDBError("insert node tombstone", err)
			}
			if unmatched {
				res.UnmatchedIDs = append(res.UnmatchedIDs, id)
			} else {
				res.AppliedIDs = append(res.AppliedIDs, id)
			}
		}
		return nil
	})
	if err != nil {
		return lstore.TombstoneResult{}, err
	}
	return res, nil
}

// MergeEdgeTombstones eliminates keys from incidentID's live view.
// Edge tombstones have no unmatched state: an edge tombstone applies
// unconditionally, since its elimination is also implied whenever
// either endpoint node is tombstoned (spec §3 Live View derivation).
func (s *Store) MergeEdgeTombstones(ctx context.Context, incidentID string, keys []types.EdgeKey, prov types.Provenance) (lstore.TombstoneResult, error) {
	var res lstore.TombstoneResult
	err := s.withTx(ctx, "store.merge_edge_tombstones", func(tx *sql.Tx) error {
		for _, k := range keys {
			id := edgeDescription(k)
			var already int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM edge_tombstones WHERE incident_id = ? AND source = ? AND target = ? AND type = ?`,
				incidentID, k.Source, k.Target, string(k.Type)).Scan(&already); err != nil {
				return lstore.WrapDBError("check edge tombstone", err)
			}
			if already > 0 {
				res.AlreadyTombstonedIDs = append(res.AlreadyTombstonedIDs, id)
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO edge_tombstones (incident_id, source, target, type, provenance_source, provenance_trigger, provenance_ts)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				incidentID, k.Source, k.Target, string(k.Type), prov.Source, prov.Trigger, prov.Timestamp); err != nil {
				return lstore.WrapDBError("insert edge tombstone", err)
			}
			res.AppliedIDs = append(res.AppliedIDs, id)
		}
		return nil
	})
	if err != nil {
		return lstore.TombstoneResult{}, err
	}
	return res, nil
}
