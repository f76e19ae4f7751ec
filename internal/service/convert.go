package service

import (
	"github.com/mmynk/grouporder/internal/calculator"
	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/pkg/api"
)

func toRefs(refs []models.ProductRef) []*api.ProductRef {
	out := make([]*api.ProductRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, &api.ProductRef{Id: r.ID, Name: r.Name, Category: string(r.Category)})
	}
	return out
}

func toOrder(o *models.Order) *api.Order {
	if o == nil {
		return nil
	}
	out := &api.Order{
		Id:           o.ID,
		Name:         o.Name,
		CreatedBy:    o.CreatedBy,
		Participants: make([]*api.Participant, 0, len(o.Participants)),
	}
	if !o.CreatedAt.IsZero() {
		out.CreatedAt = o.CreatedAt.Unix()
	}
	for _, p := range o.Participants {
		out.Participants = append(out.Participants, &api.Participant{
			Identity:    p.Identity,
			DisplayName: p.DisplayName,
			Products:    toRefs(p.Products),
			Version:     p.Version,
		})
	}
	return out
}

func toSummary(s calculator.Summary) *api.Summary {
	out := &api.Summary{
		Lines:        make([]*api.SummaryLine, 0, len(s.Lines)),
		Categories:   make([]*api.CategoryTotal, 0, len(s.Categories)),
		Participants: make([]*api.ParticipantTotal, 0, len(s.Participants)),
		Total:        int32(s.Total),
	}
	for _, l := range s.Lines {
		out.Lines = append(out.Lines, &api.SummaryLine{
			Category:     string(l.Category),
			ProductId:    l.ProductID,
			Name:         l.Name,
			Count:        int32(l.Count),
			Contributors: l.Contributors,
		})
	}
	for _, c := range s.Categories {
		out.Categories = append(out.Categories, &api.CategoryTotal{
			Category: string(c.Category),
			Count:    int32(c.Count),
			Products: int32(c.Products),
		})
	}
	for _, p := range s.Participants {
		out.Participants = append(out.Participants, &api.ParticipantTotal{
			Identity:    p.Identity,
			DisplayName: p.DisplayName,
			Count:       int32(p.Count),
		})
	}
	return out
}

func toProduct(p models.Product) *api.Product {
	return &api.Product{
		Id:       p.ID,
		Name:     p.Name,
		Category: string(p.Category),
		Favorite: p.Favorite,
	}
}
