// ABOUTME: Graphviz rendering of synced pipelines and their stages
// ABOUTME: Stage nodes carry opportunity counts and open value
package viz

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"github.com/shopspring/decimal"

	"github.com/harperreed/leadsync/models"
)

type stageTotals struct {
	count int
	value decimal.Decimal
}

// GeneratePipelineGraph renders one cluster of stage nodes per pipeline, in
// stage order, and returns DOT source. Opportunities whose pipeline or stage
// is unknown are counted under an "unstaged" node.
func GeneratePipelineGraph(ctx context.Context, pipelines []models.Pipeline, opps []models.Opportunity) (string, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create graphviz instance: %w", err)
	}
	defer gv.Close()

	graph, err := gv.Graph()
	if err != nil {
		return "", fmt.Errorf("failed to create graph: %w", err)
	}
	defer graph.Close()

	graph.SetLabel("Pipelines")
	graph.SetRankDir(cgraph.LRRank)

	totals := make(map[string]*stageTotals)
	for i := range opps {
		o := &opps[i]
		key := o.PipelineID + "/" + o.StageID
		t, ok := totals[key]
		if !ok {
			t = &stageTotals{value: decimal.Zero}
			totals[key] = t
		}
		t.count++
		t.value = t.value.Add(o.MonetaryValue)
	}

	seen := make(map[string]bool)
	for _, p := range pipelines {
		root, err := graph.CreateNodeByName("pipeline_" + p.ExternalID)
		if err != nil {
			return "", fmt.Errorf("failed to create pipeline node: %w", err)
		}
		root.SetLabel(p.Name)
		root.SetShape("box")
		root.SetStyle("filled")
		root.SetFillColor("lightblue")

		stages := append([]models.Stage(nil), p.Stages...)
		sort.SliceStable(stages, func(i, j int) bool { return stages[i].Position < stages[j].Position })

		prev := root
		for _, s := range stages {
			key := p.ExternalID + "/" + s.ID
			seen[key] = true

			node, err := graph.CreateNodeByName("stage_" + p.ExternalID + "_" + s.ID)
			if err != nil {
				return "", fmt.Errorf("failed to create stage node: %w", err)
			}
			node.SetLabel(stageLabel(s.Name, totals[key]))
			node.SetShape("ellipse")
			node.SetStyle("filled")
			node.SetFillColor("lightyellow")

			if _, err := graph.CreateEdgeByName("next_"+key, prev, node); err != nil {
				return "", fmt.Errorf("failed to create edge: %w", err)
			}
			prev = node
		}
	}

	unstaged := &stageTotals{value: decimal.Zero}
	for key, t := range totals {
		if !seen[key] {
			unstaged.count += t.count
			unstaged.value = unstaged.value.Add(t.value)
		}
	}
	if unstaged.count > 0 {
		node, err := graph.CreateNodeByName("unstaged")
		if err != nil {
			return "", fmt.Errorf("failed to create unstaged node: %w", err)
		}
		node.SetLabel(stageLabel("unstaged", unstaged))
		node.SetShape("diamond")
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.XDOT, &buf); err != nil {
		return "", fmt.Errorf("failed to render graph: %w", err)
	}
	return buf.String(), nil
}

func stageLabel(name string, t *stageTotals) string {
	if t == nil {
		return fmt.Sprintf("%s\n0 opportunities", name)
	}
	return fmt.Sprintf("%s\n%d opportunities\n$%s", name, t.count, t.value.StringFixed(0))
}
