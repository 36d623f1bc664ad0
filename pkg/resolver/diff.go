package resolver

import (
	"slices"
	"strings"

	"github.com/lib/pq"

	"github.com/Ramsey-B/clover/pkg/models"
)

// ProductAttrs are the attributes a product view reports.
// Empty Name and RouteURL, and a price with HasPrice false, are treated as not reported.
type ProductAttrs struct {
	EnterpriseID string
	ID           string
	Name         string
	Price        models.Price
	HasPrice     bool
	RouteURL     string
	CategoryIDs  []string
	TagIDs       []string
}

// PageAttrs are the attributes a page view reports
type PageAttrs struct {
	EnterpriseID string
	RouteURL     string
	CategoryIDs  []string
	TagIDs       []string
}

// IDSet sorts and dedupes ids so that stored sets compare by value.
func IDSet(ids []string) pq.StringArray {
	out := make(pq.StringArray, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// DiffProduct returns the columns of stored that differ from want.
// Prices compare in cents, the precision they are stored at.
func DiffProduct(stored models.Product, want ProductAttrs) models.Changes {
	var changes models.Changes
	if want.Name != "" && want.Name != stored.Name {
		changes = append(changes, models.FieldChange{Column: "name", Value: want.Name})
	}
	if want.HasPrice && want.Price.Cents() != stored.Price.Cents() {
		changes = append(changes, models.FieldChange{Column: "price", Value: want.Price})
	}
	if want.RouteURL != "" && want.RouteURL != stored.RouteURL {
		changes = append(changes, models.FieldChange{Column: "route_url", Value: want.RouteURL})
	}
	if ids := IDSet(want.CategoryIDs); !slices.Equal(ids, IDSet(stored.CategoryIDs)) {
		changes = append(changes, models.FieldChange{Column: "category_ids", Value: ids})
	}
	if ids := IDSet(want.TagIDs); !slices.Equal(ids, IDSet(stored.TagIDs)) {
		changes = append(changes, models.FieldChange{Column: "tag_ids", Value: ids})
	}
	return changes
}

// DiffPage returns the columns of stored that differ from want
func DiffPage(stored models.Page, want PageAttrs) models.Changes {
	var changes models.Changes
	if ids := IDSet(want.CategoryIDs); !slices.Equal(ids, IDSet(stored.CategoryIDs)) {
		changes = append(changes, models.FieldChange{Column: "category_ids", Value: ids})
	}
	if ids := IDSet(want.TagIDs); !slices.Equal(ids, IDSet(stored.TagIDs)) {
		changes = append(changes, models.FieldChange{Column: "tag_ids", Value: ids})
	}
	return changes
}

func applyProduct(p *models.Product, changes models.Changes) {
	for _, c := range changes {
		switch c.Column {
		case "name":
			p.Name = c.Value.(string)
		case "price":
			p.Price = c.Value.(models.Price)
		case "route_url":
			p.RouteURL = c.Value.(string)
		case "category_ids":
			p.CategoryIDs = c.Value.(pq.StringArray)
		case "tag_ids":
			p.TagIDs = c.Value.(pq.StringArray)
		}
	}
}

func applyPage(p *models.Page, changes models.Changes) {
	for _, c := range changes {
		switch c.Column {
		case "category_ids":
			p.CategoryIDs = c.Value.(pq.StringArray)
		case "tag_ids":
			p.TagIDs = c.Value.(pq.StringArray)
		}
	}
}
