package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/dot"
	e "github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/errors"
	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/ico"
	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/models"
)

// GraphDOT renders every stored company and owner row as one DOT document.
// Companies start on the top rank; owner entities sit one rank below, and a
// company that also appears as an owner sinks to the owner rank.
func (s *OwnershipService) GraphDOT(ctx context.Context, title string) (string, error) {
	companies, err := s.repo.ListCompanies(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list companies: %w", err)
	}
	edges, err := s.repo.AllEdges(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list edges: %w", err)
	}

	g := dot.NewGraph(title)
	for i := range companies {
		g.AddCompany(companies[i].Ico, companies[i].Name, 0)
	}
	for i := range edges {
		addOwnerEdge(g, &edges[i])
	}
	return g.String(), nil
}

// CompanyGraphDOT renders one company and its direct owner rows.
func (s *OwnershipService) CompanyGraphDOT(ctx context.Context, companyIco, title string) (string, error) {
	companyIco = ico.Normalize(companyIco)
	company, err := s.repo.GetCompany(ctx, companyIco)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("failed to get company: %w", err)
	}
	edges, err := s.repo.EdgesForCompany(ctx, companyIco)
	if err != nil {
		return "", fmt.Errorf("failed to list owners: %w", err)
	}

	g := dot.NewGraph(title)
	g.AddCompany(company.Ico, company.Name, 0)
	for i := range edges {
		addOwnerEdge(g, &edges[i])
	}
	return g.String(), nil
}

// RenderOwners renders a company together with an owner list that has not
// been persisted. Foreign subjects never reach storage, so this is the only
// way they appear in a drawing.
func RenderOwners(company *models.Company, owners []models.Owner, title string) string {
	g := dot.NewGraph(title)
	root := g.AddCompany(company.Ico, company.Name, 0)
	for i := range owners {
		owner := owners[i]
		var ownerID string
		switch owner.Kind {
		case models.OwnerCompany:
			ownerID = g.AddCompany(owner.Ico, owner.Name, 1)
		case models.OwnerForeign:
			ownerID = g.AddForeign(owner.Ico, owner.Name, 1)
		default:
			key := fmt.Sprintf("%s:%d:%s", company.Ico, i, owner.Name)
			ownerID = g.AddPerson(owner.Name, key, 1)
		}
		g.AddEdge(root, ownerID, shareLabel(owner.ShareNum, owner.ShareDen, owner.SharePct, owner.ShareRaw))
	}
	return g.String()
}

func addOwnerEdge(g *dot.Graph, oe *models.OwnerEdge) {
	var ownerID string
	if oe.Owner.Type == models.CompanyEntity && oe.Owner.Ico != "" {
		ownerID = g.AddCompany(oe.Owner.Ico, oe.Owner.Name, 1)
	} else {
		key := fmt.Sprintf("E%d:%s", oe.Owner.ID, oe.Owner.Name)
		ownerID = g.AddPerson(oe.Owner.Name, key, 1)
	}
	edge := oe.Edge
	g.AddEdge(dot.CompanyNodeID(edge.TargetIco), ownerID, shareLabel(edge.ShareNum, edge.ShareDen, edge.SharePct, edge.ShareRaw))
}

// shareLabel picks the edge caption: the raw register text when present,
// otherwise a derived percentage or fraction, otherwise nothing.
func shareLabel(num, den *int64, pct *float64, raw string) string {
	switch {
	case raw != "":
		return raw
	case pct != nil:
		return fmt.Sprintf("%.2f %%", *pct)
	case num != nil && den != nil:
		return fmt.Sprintf("%d/%d", *num, *den)
	}
	return ""
}
