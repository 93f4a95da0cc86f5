package domain

import "strings"

// Size classifies a rendition by its filename suffix.
type Size string

const (
	SizeThumb  Size = "thumb"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// Sizes lists every rendition size, smallest first.
var Sizes = []Size{SizeThumb, SizeMedium, SizeLarge}

const renditionExt = ".webp"

// RoleKind identifies which document field an upload feeds.
type RoleKind int

const (
	RolePrimary RoleKind = iota
	RoleAdditional
	RolePerColor
	RoleCategory
)

func (k RoleKind) String() string {
	switch k {
	case RolePrimary:
		return "primary"
	case RoleAdditional:
		return "additional"
	case RolePerColor:
		return "perColor"
	case RoleCategory:
		return "category"
	default:
		return "unknown"
	}
}

// Role is the logical role of an upload. Label is only set for RolePerColor.
type Role struct {
	Kind  RoleKind
	Label string
}

func Primary() Role { return Role{Kind: RolePrimary} }
func Additional() Role { return Role{Kind: RoleAdditional} }
func Category() Role { return Role{Kind: RoleCategory} }
func PerColor(label string) Role { return Role{Kind: RolePerColor, Label: label} }

func (r Role) String() string {
	if r.Kind == RolePerColor {
		return r.Kind.String() + "(" + r.Label + ")"
	}
	return r.Kind.String()
}

// Upload is one raw image already written under the asset directory.
type Upload struct {
	Role         Role
	StoredPath   string
	OriginalName string
}

// Rendition is one resized derivative of an upload.
type Rendition struct {
	Size   Size   `json:"size"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Path   string `json:"-"`
}

// Outcome is the per-upload result of rendition generation. When Err is set
// the renditions are absent and Reference points at the original upload.
type Outcome struct {
	Upload     Upload
	Reference  string
	Renditions []Rendition
	Err        error
}

// Converted reports whether all renditions were produced.
func (o Outcome) Converted() bool {
	return o.Err == nil
}

// VariantName returns the rendition filename for base at size.
func VariantName(base string, size Size) string {
	return base + "-" + string(size) + renditionExt
}

// ParseVariant splits a "<base>-<size>.webp" reference into base and size.
// ok is false when ref carries no size suffix.
func ParseVariant(ref string) (base string, size Size, ok bool) {
	if !strings.HasSuffix(ref, renditionExt) {
		return "", "", false
	}
	stem := strings.TrimSuffix(ref, renditionExt)
	for _, s := range Sizes {
		suffix := "-" + string(s)
		if strings.HasSuffix(stem, suffix) && len(stem) > len(suffix) {
			return strings.TrimSuffix(stem, suffix), s, true
		}
	}
	return "", "", false
}

// SiblingPath swaps the size suffix of ref. References without a size
// suffix are returned unchanged.
func SiblingPath(ref string, size Size) string {
	base, _, ok := ParseVariant(ref)
	if !ok {
		return ref
	}
	return VariantName(base, size)
}

// VariantGroup returns all three sibling references of ref, or nil when ref
// is not a rendition.
func VariantGroup(ref string) []string {
	base, _, ok := ParseVariant(ref)
	if !ok {
		return nil
	}
	group := make([]string, 0, len(Sizes))
	for _, s := range Sizes {
		group = append(group, VariantName(base, s))
	}
	return group
}
