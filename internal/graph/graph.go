// Package graph keeps a knowledge graph of business entities in FalkorDB.
// The engine works fine without it; every caller treats a nil *Enricher as
// "no graph available".
package graph

import (
	"context"
	"fmt"
	"math"

	"github.com/FalkorDB/falkordb-go"
	"github.com/rs/zerolog/log"

	"github.com/skinclarityclub/insight-engine/pkg/models"
)

const graphName = "business_entities"

// maxNeighborBoost caps how much graph connectivity can raise an entity's
// relevance.
const maxNeighborBoost = 0.1

// Enricher records entity co-occurrence and answers connectivity questions.
type Enricher struct {
	graph *falkordb.Graph
}

// Connect dials FalkorDB and selects the entity graph. Returns an error
// rather than a degraded enricher; callers decide whether to run without.
func Connect(addr string) (*Enricher, error) {
	db, err := falkordb.FalkorDBNew(&falkordb.ConnectionOption{Addr: addr})
	if err != nil {
		return nil, fmt.Errorf("falkordb connect: %w", err)
	}
	g := db.SelectGraph(graphName)
	return &Enricher{graph: g}, nil
}

// RecordRelationships upserts entity nodes and co-occurrence edges. Write
// failures are logged and swallowed; graph bookkeeping never fails a query.
func (e *Enricher) RecordRelationships(_ context.Context, entities []models.BusinessEntity, rels []models.EntityRelationship) error {
	for _, ent := range entities {
		_, err := e.graph.Query(
			"MERGE (n:Entity {name: $name}) SET n.type = $type",
			map[string]interface{}{"name": ent.Text, "type": string(ent.Type)},
			nil,
		)
		if err != nil {
			log.Debug().Err(err).Str("entity", ent.Text).Msg("graph node upsert failed")
			return nil
		}
	}
	for _, rel := range rels {
		_, err := e.graph.Query(
			"MATCH (a:Entity {name: $src}), (b:Entity {name: $dst}) "+
				"MERGE (a)-[r:RELATES {kind: $kind}]->(b) "+
				"ON CREATE SET r.weight = 1 ON MATCH SET r.weight = r.weight + 1",
			map[string]interface{}{"src": rel.Source, "dst": rel.Target, "kind": rel.Relation},
			nil,
		)
		if err != nil {
			log.Debug().Err(err).Str("source", rel.Source).Msg("graph edge upsert failed")
			return nil
		}
	}
	return nil
}

// NeighborBoost returns a small relevance bonus proportional to how
// connected the entity already is in the graph.
func (e *Enricher) NeighborBoost(_ context.Context, entity models.BusinessEntity) (float64, error) {
	res, err := e.graph.Query(
		"MATCH (n:Entity {name: $name})--(m) RETURN count(m)",
		map[string]interface{}{"name": entity.Text},
		nil,
	)
	if err != nil {
		return 0, fmt.Errorf("neighbor count: %w", err)
	}
	if !res.Next() {
		return 0, nil
	}
	record := res.Record()
	count, ok := record.GetByIndex(0).(int64)
	if !ok {
		return 0, nil
	}
	return math.Min(float64(count), 10) / 10 * maxNeighborBoost, nil
}
