package presentation

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"

	"github.com/zjrosen/keystone/internal/catalog"
)

// ItemDTO represents a catalog item for presentation
type ItemDTO struct {
	Key         string            `json:"key"`
	Namespace   string            `json:"namespace"`
	Path        string            `json:"path"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Labels      []string          `json:"labels"`
	Properties  map[string]string `json:"properties,omitempty"`
	Relations   []RelationDTO     `json:"relations"`
	Source      string            `json:"source"`
}

// RelationDTO is one named relation and the key it points at
type RelationDTO struct {
	Name   string `json:"name"`
	Target string `json:"target"`
	Bound  bool   `json:"bound"`
}

// FromItem converts a catalog item to a DTO. Relations are sorted by name.
func FromItem(it *catalog.Item) ItemDTO {
	labels := it.Labels
	if labels == nil {
		labels = []string{}
	}
	relations := make([]RelationDTO, 0, len(it.Relations))
	for _, name := range it.RelationNames() {
		h := it.Relations[name]
		relations = append(relations, RelationDTO{
			Name:   name,
			Target: h.Key().String(),
			Bound:  h.IsBound(),
		})
	}
	return ItemDTO{
		Key:         it.Key.String(),
		Namespace:   it.Key.Namespace(),
		Path:        it.Key.Path(),
		Name:        it.Name,
		Description: it.Description,
		Labels:      labels,
		Properties:  it.Properties,
		Relations:   relations,
		Source:      it.Source,
	}
}

// FromItems converts a slice of items to DTOs
func FromItems(items []*catalog.Item) []ItemDTO {
	dtos := make([]ItemDTO, len(items))
	for i, it := range items {
		dtos[i] = FromItem(it)
	}
	return dtos
}

// LabelDTO is a label and how many items carry it
type LabelDTO struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// FromLabels lists every label of cat with its item count.
func FromLabels(cat *catalog.Catalog) []LabelDTO {
	labels := cat.Labels()
	dtos := make([]LabelDTO, len(labels))
	for i, l := range labels {
		dtos[i] = LabelDTO{Name: l, Count: cat.LabelCount(l)}
	}
	return dtos
}

// NamespaceDTO is a namespace and its item count
type NamespaceDTO struct {
	Name  string `json:"name"`
	Items int    `json:"items"`
}

// CatalogDTO summarizes one loaded generation
type CatalogDTO struct {
	Generation string         `json:"generation"`
	LoadedAt   time.Time      `json:"loaded_at"`
	Items      int            `json:"items"`
	Namespaces []NamespaceDTO `json:"namespaces"`
	Labels     []LabelDTO     `json:"labels"`
}

// FromCatalog summarizes cat.
func FromCatalog(cat *catalog.Catalog) CatalogDTO {
	namespaces := make([]NamespaceDTO, 0)
	for _, ns := range cat.Namespaces() {
		namespaces = append(namespaces, NamespaceDTO{Name: ns, Items: len(cat.ByNamespace(ns))})
	}
	return CatalogDTO{
		Generation: cat.Generation().String(),
		LoadedAt:   cat.LoadedAt(),
		Items:      cat.Size(),
		Namespaces: namespaces,
		Labels:     FromLabels(cat),
	}
}

// ProblemDTO is one load failure
type ProblemDTO struct {
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// CheckDTO is the result of validating a catalog
type CheckDTO struct {
	OK       bool         `json:"ok"`
	Catalog  *CatalogDTO  `json:"catalog,omitempty"`
	Problems []ProblemDTO `json:"problems"`
}

// FromCheck converts the outcome of a load. A *multierror.Error is expanded
// into one problem per error.
func FromCheck(cat *catalog.Catalog, err error) CheckDTO {
	result := CheckDTO{OK: err == nil, Problems: []ProblemDTO{}}
	if cat != nil {
		summary := FromCatalog(cat)
		result.Catalog = &summary
	}
	if err == nil {
		return result
	}

	errs := []error{err}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		errs = merr.Errors
	}
	for _, e := range errs {
		result.Problems = append(result.Problems, ProblemDTO{
			Message: e.Error(),
			Hint:    errors.FlattenHints(e),
		})
	}
	return result
}

// ReloadDTO reports one reload attempt
type ReloadDTO struct {
	Generation string `json:"generation"`
	Previous   string `json:"previous"`
	Items      int    `json:"items"`
	Error      string `json:"error,omitempty"`
}

// FromReload converts a reload outcome to a DTO.
func FromReload(r catalog.Reload) ReloadDTO {
	dto := ReloadDTO{
		Generation: r.Generation.String(),
		Previous:   r.Previous.String(),
		Items:      r.Size,
	}
	if r.Err != nil {
		dto.Error = r.Err.Error()
	}
	return dto
}
