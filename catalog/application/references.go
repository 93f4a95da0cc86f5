package application

import (
	"path"
	"slices"
	"strings"

	"github.com/dfryer1193/storefront/catalog/domain"
)

// RequiredSet is the set of asset URL paths current documents depend on.
type RequiredSet map[string]struct{}

func (s RequiredSet) Has(ref string) bool {
	_, ok := s[ref]
	return ok
}

// Sorted returns the members in lexical order.
func (s RequiredSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for ref := range s {
		out = append(out, ref)
	}
	slices.Sort(out)
	return out
}

// ResolveReferences collects every asset reference held by docs. References
// outside prefix are ignored and any rendition pulls in its whole variant
// group.
func ResolveReferences(prefix string, docs ...[]domain.Document) RequiredSet {
	required := RequiredSet{}
	add := func(raw any) {
		ref, ok := NormalizeReference(prefix, raw)
		if !ok {
			return
		}
		required[ref] = struct{}{}
		for _, sibling := range domain.VariantGroup(ref) {
			required[sibling] = struct{}{}
		}
	}

	for _, set := range docs {
		for _, doc := range set {
			collectReferences(doc, add)
		}
	}
	return required
}

// collectReferences visits image, images[], colorImages{} and
// variants[].image. Fields of the wrong shape are skipped.
func collectReferences(doc domain.Document, visit func(any)) {
	visit(doc["image"])

	if images, ok := doc["images"].([]any); ok {
		for _, img := range images {
			visit(img)
		}
	}

	if colors, ok := doc["colorImages"].(map[string]any); ok {
		for _, img := range colors {
			visit(img)
		}
	}

	if variants, ok := doc["variants"].([]any); ok {
		for _, v := range variants {
			if variant, ok := v.(map[string]any); ok {
				visit(variant["image"])
			}
		}
	}
}

// NormalizeReference cleans a raw field value into a URL path under prefix.
func NormalizeReference(prefix string, raw any) (string, bool) {
	ref, ok := raw.(string)
	if !ok {
		return "", false
	}

	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}

	ref = path.Clean(ref)
	if !strings.HasPrefix(ref, prefix) || len(ref) == len(prefix) {
		return "", false
	}
	return ref, true
}
