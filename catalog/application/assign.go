package application

import "github.com/dfryer1193/storefront/catalog/domain"

// AssetFields are the document fields filled from one upload request.
type AssetFields struct {
	Image       string            `json:"image,omitempty"`
	Images      []string          `json:"images,omitempty"`
	ColorImages map[string]string `json:"colorImages,omitempty"`
}

// Assign maps outcomes onto document fields in upload order. The first
// primary (or category) upload becomes Image, later primaries join Images
// with the additional uploads, and per-color uploads are keyed by label.
func Assign(outcomes []domain.Outcome) AssetFields {
	var fields AssetFields
	for _, o := range outcomes {
		if o.Reference == "" {
			continue
		}

		switch o.Upload.Role.Kind {
		case domain.RolePrimary, domain.RoleCategory:
			if fields.Image == "" {
				fields.Image = o.Reference
			} else {
				fields.Images = append(fields.Images, o.Reference)
			}
		case domain.RoleAdditional:
			fields.Images = append(fields.Images, o.Reference)
		case domain.RolePerColor:
			if fields.ColorImages == nil {
				fields.ColorImages = make(map[string]string)
			}
			fields.ColorImages[o.Upload.Role.Label] = o.Reference
		}
	}
	return fields
}
