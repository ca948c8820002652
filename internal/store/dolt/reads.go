package dolt

import (
	"context"
	"database/sql"
	"fmt"

	lstore "github.com/opencausal/latticegraphd/internal/store"
	"github.com/opencausal/latticegraphd/internal/types"
)

// requireIncident returns store.ErrNotFound if incidentID was never
// registered via CreateIncident. GetLiveView and GetTombstones are
// incident-scoped projections, not existence checks, so without this a
// typo'd incident id would silently read back an empty-tombstone-set
// projection instead of erroring (spec §7 item 3).
func (s *Store) requireIncident(ctx context.Context, incidentID string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM incidents WHERE incident_id = ?`, incidentID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("incident %q: %w", incidentID, lstore.ErrNotFound)
	}
	if err != nil {
		return lstore.WrapDBError("select incident", err)
	}
	return nil
}

// GetLiveView derives the projection Live = Main − Tombstones for
// incidentID (spec §3). Reads run outside a transaction's write path
// but still go through withRetry for transient-error resilience; a
// snapshot read at READ COMMITTED is sufficient since the derivation
// has no write side effects.
func (s *Store) GetLiveView(ctx context.Context, incidentID string) (lstore.LiveView, error) {
	var out lstore.LiveView
	err := s.withRetry(ctx, func() error {
		out = lstore.LiveView{}

		if err := s.requireIncident(ctx, incidentID); err != nil {
			return err
		}

		nodeRows, err := s.db.QueryContext(ctx, `
			SELECT n.id, n.type, n.label, n.hypothetical, n.provenance_events
			FROM nodes n
			LEFT JOIN node_tombstones t ON t.incident_id = ? AND t.node_id = n.id
			WHERE t.node_id IS NULL
			ORDER BY n.id`, incidentID)
		if err != nil {
			return lstore.WrapDBError("select live nodes", err)
		}
		defer nodeRows.Close()
		for nodeRows.Next() {
			var n types.Node
			var eventsJSON []byte
			if err := nodeRows.Scan(&n.ID, &n.Type, &n.Label, &n.Hypothetical, &eventsJSON); err != nil {
				return lstore.WrapDBError("scan live node", err)
			}
			n.Provenance, err = decodeProvenance(eventsJSON)
			if err != nil {
				return err
			}
			out.Nodes = append(out.Nodes, n)
		}
		if err := nodeRows.Err(); err != nil {
			return lstore.WrapDBError("iterate live nodes", err)
		}

		edgeRows, err := s.db.QueryContext(ctx, `
			SELECT e.source, e.target, e.type, e.provenance_events
			FROM edges e
			LEFT JOIN edge_tombstones et ON et.incident_id = ? AND et.source = e.source AND et.target = e.target AND et.type = e.type
			LEFT JOIN node_tombstones ts ON ts.incident_id = ? AND ts.node_id = e.source
			LEFT JOIN node_tombstones tt ON tt.incident_id = ? AND tt.node_id = e.target
			WHERE et.source IS NULL AND ts.node_id IS NULL AND tt.node_id IS NULL
			ORDER BY e.source, e.target, e.type`, incidentID, incidentID, incidentID)
		if err != nil {
			return lstore.WrapDBError("select live edges", err)
		}
		defer edgeRows.Close()
		for edgeRows.Next() {
			var e types.Edge
			var eventsJSON []byte
			if err := edgeRows.Scan(&e.Source, &e.Target, &e.Type, &eventsJSON); err != nil {
				return lstore.WrapDBError("scan live edge", err)
			}
			e.Provenance, err = decodeProvenance(eventsJSON)
			if err != nil {
				return err
			}
			out.Edges = append(out.Edges, e)
		}
		return edgeRows.Err()
	})
	if err != nil {
		return lstore.LiveView{}, err
	}
	return out, nil
}

// GetTombstones returns every tombstone recorded under incidentID.
func (s *Store) GetTombstones(ctx context.Context, incidentID string) (lstore.Tombstones, error) {
	var out lstore.Tombstones
	err := s.withRetry(ctx, func() error {
		out = lstore.Tombstones{}

		if err := s.requireIncident(ctx, incidentID); err != nil {
			return err
		}

		nodeRows, err := s.db.QueryContext(ctx,
			`SELECT node_id, provenance_source, provenance_trigger, provenance_ts, unmatched
			 FROM node_tombstones WHERE incident_id = ? ORDER BY node_id`, incidentID)
		if err != nil {
			return lstore.WrapDBError("select node tombstones", err)
		}
		defer nodeRows.Close()
		for nodeRows.Next() {
			var ts types.NodeTombstone
			ts.IncidentID = incidentID
			if err := nodeRows.Scan(&ts.NodeID, &ts.Provenance.Source, &ts.Provenance.Trigger, &ts.Provenance.Timestamp, &ts.Unmatched); err != nil {
				return lstore.WrapDBError("scan node tombstone", err)
			}
			out.NodeTombstones = append(out.NodeTombstones, ts)
		}
		if err := nodeRows.Err(); err != nil {
			return lstore.WrapDBError("iterate node tombstones", err)
		}

		edgeRows, err := s.db.QueryContext(ctx,
			`SELECT source, target, type, provenance_source, provenance_trigger, provenance_ts
			 FROM edge_tombstones WHERE incident_id = ? ORDER BY source, target, type`, incidentID)
		if err != nil {
			return lstore.WrapDBError("select edge tombstones", err)
		}
		defer edgeRows.Close()
		for edgeRows.Next() {
			var ts types.EdgeTombstone
			ts.IncidentID = incidentID
			if err := edgeRows.Scan(&ts.EdgeKey.Source, &ts.EdgeKey.Target, &ts.EdgeKey.Type, &ts.Provenance.Source, &ts.Provenance.Trigger, &ts.Provenance.Timestamp); err != nil {
				return lstore.WrapDBError("scan edge tombstone", err)
			}
			out.EdgeTombstones = append(out.EdgeTombstones, ts)
		}
		return edgeRows.Err()
	})
	if err != nil {
		return lstore.Tombstones{}, err
	}
	return out, nil
}

// GetMainGraph returns the full accumulated graph, ignoring every
// incident's tombstones (spec §3 Main Graph).
func (s *Store) GetMainGraph(ctx context.Context) (lstore.MainGraph, error) {
	var out lstore.MainGraph
	err := s.withRetry(ctx, func() error {
		out = lstore.MainGraph{}

		nodeRows, err := s.db.QueryContext(ctx,
			`SELECT id, type, label, hypothetical, provenance_events FROM nodes ORDER BY id`)
		if err != nil {
			return lstore.WrapDBError("select nodes", err)
		}
		defer nodeRows.Close()
		for nodeRows.Next() {
			var n types.Node
			var eventsJSON []byte
			if err := nodeRows.Scan(&n.ID, &n.Type, &n.Label, &n.Hypothetical, &eventsJSON); err != nil {
				return lstore.WrapDBError("scan node", err)
			}
			n.Provenance, err = decodeProvenance(eventsJSON)
			if err != nil {
				return err
			}
			out.Nodes = append(out.Nodes, n)
		}
		if err := nodeRows.Err(); err != nil {
			return lstore.WrapDBError("iterate nodes", err)
		}

		edgeRows, err := s.db.QueryContext(ctx,
			`SELECT source, target, type, provenance_events FROM edges ORDER BY source, target, type`)
		if err != nil {
			return lstore.WrapDBError("select edges", err)
		}
		defer edgeRows.Close()
		for edgeRows.Next() {
			var e types.Edge
			var eventsJSON []byte
			if err := edgeRows.Scan(&e.Source, &e.Target, &e.Type, &eventsJSON); err != nil {
				return lstore.WrapDBError("scan edge", err)
			}
			e.Provenance, err = decodeProvenance(eventsJSON)
			if err != nil {
				return err
			}
			out.Edges = append(out.Edges, e)
		}
		return edgeRows.Err()
	})
	if err != nil {
		return lstore.MainGraph{}, err
	}
	return out, nil
}

// GetNode is a point read, supplementing the spec's batch-oriented
// operations (SPEC_FULL §13).
func (s *Store) GetNode(ctx context.Context, id string) (types.Node, bool, error) {
	var n types.Node
	found := false
	err := s.withRetry(ctx, func() error {
		var eventsJSON []byte
		err := s.db.QueryRowContext(ctx,
			`SELECT id, type, label, hypothetical, provenance_events FROM nodes WHERE id = ?`, id).
			Scan(&n.ID, &n.Type, &n.Label, &n.Hypothetical, &eventsJSON)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return lstore.WrapDBError("select node", err)
		}
		n.Provenance, err = decodeProvenance(eventsJSON)
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return types.Node{}, false, err
	}
	return n, found, nil
}

// GetEdge is a point read, supplementing the spec's batch-oriented
// operations (SPEC_FULL §13).
func (s *Store) GetEdge(ctx context.Context, key types.EdgeKey) (types.Edge, bool, error) {
	var e types.Edge
	e.EdgeKey = key
	found := false
	err := s.withRetry(ctx, func() error {
		var eventsJSON []byte
		err := s.db.QueryRowContext(ctx,
			`SELECT provenance_events FROM edges WHERE source = ? AND target = ? AND type = ?`,
			key.Source, key.Target, string(key.Type)).Scan(&eventsJSON)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return lstore.WrapDBError("select edge", err)
		}
		e.Provenance, err = decodeProvenance(eventsJSON)
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return types.Edge{}, false, err
	}
	return e, found, nil
}
