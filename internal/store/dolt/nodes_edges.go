package dolt

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/opencausal/latticegraphd/internal/lattice"
	lstore "github.com/opencausal/latticegraphd/internal/store"
	"github.com/opencausal/latticegraphd/internal/types"
)

// MergeHypothesis implements spec §4.4's node and edge write paths as a
// single transaction. Each accepted item gets a read-check-write
// sequence; a conflict is recorded and skipped without aborting the
// batch (spec §4.4 Atomicity).
func (s *Store) MergeHypothesis(ctx context.Context, nodes []types.Node, edges []types.Edge) (lstore.MergeHypothesisResult, error) {
	var res lstore.MergeHypothesisResult

	err := s.withTx(ctx, "store.merge_hypothesis", func(tx *sql.Tx) error {
		for _, n := range nodes {
			outcome, conflict, err := writeNode(ctx, tx, n)
			if err != nil {
				return fmt.Errorf("write node %s: %w", n.ID, err)
			}
			switch outcome {
			case lattice.NodeCreated:
				res.CreatedIDs = append(res.CreatedIDs, n.ID)
			case lattice.NodeMerged:
				res.MergedIDs = append(res.MergedIDs, n.ID)
			case lattice.NodeConflict:
				res.Conflicts = append(res.Conflicts, *conflict)
			}
		}
		for _, e := range edges {
			outcome, err := writeEdge(ctx, tx, e)
			if err != nil {
				return fmt.Errorf("write edge %s: %w", edgeDescription(e.EdgeKey), err)
			}
			id := edgeDescription(e.EdgeKey)
			if outcome == lattice.EdgeCreated {
				res.CreatedIDs = append(res.CreatedIDs, id)
			} else {
				res.MergedIDs = append(res.MergedIDs, id)
			}
			if err := reconcileAdjacency(ctx, tx, e.EdgeKey); err != nil {
				return fmt.Errorf("reconcile adjacency for %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return lstore.MergeHypothesisResult{}, err
	}

	recordOutcomes(ctx, len(res.CreatedIDs), len(res.MergedIDs), len(res.Conflicts))
	return res, nil
}

// writeNode performs the read-check-write sequence of spec §4.4 for one
// node.
func writeNode(ctx context.Context, tx *sql.Tx, n types.Node) (lattice.NodeOutcome, *types.Conflict, error) {
	prov := n.Provenance[0]

	var existingType, existingLabel string
	var existingHypothetical bool
	var existingKeysJSON, existingEventsJSON []byte
	err := tx.QueryRowContext(ctx,
		`SELECT type, label, hypothetical, provenance_keys, provenance_events FROM nodes WHERE id = ? FOR UPDATE`,
		n.ID).Scan(&existingType, &existingLabel, &existingHypothetical, &existingKeysJSON, &existingEventsJSON)

	switch {
	case err == sql.ErrNoRows:
		cols, encErr := encodeProvenance([]types.Provenance{prov})
		if encErr != nil {
			return 0, nil, encErr
		}
		if _, insErr := tx.ExecContext(ctx,
			`INSERT INTO nodes (id, type, label, hypothetical, provenance_keys, provenance_events)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			n.ID, string(n.Type), n.Label, n.Hypothetical, cols.keys, cols.events); insErr != nil {
			return 0, nil, lstore.WrapDBError("insert node", insErr)
		}
		return lattice.NodeCreated, nil, nil

	case err != nil:
		return 0, nil, lstore.WrapDBError("select node", err)
	}

	if _, conflict := lattice.MergeIdentityField("type", existingType, true, string(n.Type)); conflict != nil {
		return lattice.NodeConflict, &types.Conflict{ID: n.ID, Field: "type", Existing: existingType, Proposed: string(n.Type)}, nil
	}
	if _, conflict := lattice.MergeIdentityField("label", existingLabel, true, n.Label); conflict != nil {
		return lattice.NodeConflict, &types.Conflict{ID: n.ID, Field: "label", Existing: existingLabel, Proposed: n.Label}, nil
	}

	newHypothetical := lattice.MergeHypothetical(existingHypothetical, n.Hypothetical)

	alreadyPresent, err := containsKey(existingKeysJSON, prov.Key())
	if err != nil {
		return 0, nil, err
	}

	if !alreadyPresent {
		existingSet, err := decodeProvenance(existingEventsJSON)
		if err != nil {
			return 0, nil, err
		}
		mergedSet, _ := lattice.MergeProvenance(existingSet, prov)
		cols, err := encodeProvenance(mergedSet)
		if err != nil {
			return 0, nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE nodes SET hypothetical = ?, provenance_keys = ?, provenance_events = ? WHERE id = ?`,
			newHypothetical, cols.keys, cols.events, n.ID); err != nil {
			return 0, nil, lstore.WrapDBError("update node", err)
		}
	} else if newHypothetical != existingHypothetical {
		if _, err := tx.ExecContext(ctx, `UPDATE nodes SET hypothetical = ? WHERE id = ?`, newHypothetical, n.ID); err != nil {
			return 0, nil, lstore.WrapDBError("update node hypothetical", err)
		}
	}

	return lattice.NodeMerged, nil, nil
}

// writeEdge performs the read-check-write sequence of spec §4.4 for one
// edge. Edges have no type/label conflict possibility: their type is
// part of identity.
func writeEdge(ctx context.Context, tx *sql.Tx, e types.Edge) (lattice.EdgeOutcome, error) {
	prov := e.Provenance[0]

	var existingKeysJSON, existingEventsJSON []byte
	err := tx.QueryRowContext(ctx,
		`SELECT provenance_keys, provenance_events FROM edges WHERE source = ? AND target = ? AND type = ? FOR UPDATE`,
		e.Source, e.Target, string(e.Type)).Scan(&existingKeysJSON, &existingEventsJSON)

	switch {
	case err == sql.ErrNoRows:
		cols, encErr := encodeProvenance([]types.Provenance{prov})
		if encErr != nil {
			return 0, encErr
		}
		if _, insErr := tx.ExecContext(ctx,
			`INSERT INTO edges (source, target, type, provenance_keys, provenance_events) VALUES (?, ?, ?, ?, ?)`,
			e.Source, e.Target, string(e.Type), cols.keys, cols.events); insErr != nil {
			return 0, lstore.WrapDBError("insert edge", insErr)
		}
		return lattice.EdgeCreated, nil

	case err != nil:
		return 0, lstore.WrapDBError("select edge", err)
	}

	alreadyPresent, err := containsKey(existingKeysJSON, prov.Key())
	if err != nil {
		return 0, err
	}
	if !alreadyPresent {
		existingSet, err := decodeProvenance(existingEventsJSON)
		if err != nil {
			return 0, err
		}
		mergedSet, _ := lattice.MergeProvenance(existingSet, prov)
		cols, err := encodeProvenance(mergedSet)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE edges SET provenance_keys = ?, provenance_events = ? WHERE source = ? AND target = ? AND type = ?`,
			cols.keys, cols.events, e.Source, e.Target, string(e.Type)); err != nil {
			return 0, lstore.WrapDBError("update edge", err)
		}
	}
	return lattice.EdgeMerged, nil
}

// reconcileAdjacency adds the traversal relation row for key when both
// endpoint nodes exist at the time the edge is written (spec §9 "Edges
// stored as records, not relations"). If an endpoint is missing, nothing
// is added and the edge record alone stands. Node writes never add
// relation rows, so a skipped row is only added when this same edge is
// written again after both endpoints exist. A query error is returned,
// and MergeHypothesis then rolls back the whole batch.
func reconcileAdjacency(ctx context.Context, tx *sql.Tx, key types.EdgeKey) error {
	var sourceExists, targetExists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM nodes WHERE id = ?)`, key.Source).Scan(&sourceExists); err != nil {
		return lstore.WrapDBError("check source", err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM nodes WHERE id = ?)`, key.Target).Scan(&targetExists); err != nil {
		return lstore.WrapDBError("check target", err)
	}
	if !sourceExists || !targetExists {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO edge_adjacency (source, target, type) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE source = source`,
		key.Source, key.Target, string(key.Type))
	if err != nil {
		return lstore.WrapDBError("insert adjacency", err)
	}
	return nil
}

func edgeDescription(k types.EdgeKey) string {
	return k.Source + "->" + k.Target + ":" + string(k.Type)
}

func recordOutcomes(ctx context.Context, created, merged, conflicts int) {
	storeMetrics.outcomes.Add(ctx, int64(created), outcomeAttr("created"))
	storeMetrics.outcomes.Add(ctx, int64(merged), outcomeAttr("merged"))
	storeMetrics.outcomes.Add(ctx, int64(conflicts), outcomeAttr("conflict"))
}
