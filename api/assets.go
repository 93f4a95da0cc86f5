package api

// RenditionFile is one derivative in an upload response.
type RenditionFile struct {
	Size   string `json:"size"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// UploadedFile reports what happened to one uploaded image.
type UploadedFile struct {
	Field        string          `json:"field"`
	Role         string          `json:"role"`
	OriginalName string          `json:"originalName"`
	Reference    string          `json:"reference"`
	Converted    bool            `json:"converted"`
	Error        string          `json:"error,omitempty"`
	Renditions   []RenditionFile `json:"renditions,omitempty"`
}

type AssetFields struct {
	Image       string            `json:"image,omitempty"`
	Images      []string          `json:"images,omitempty"`
	ColorImages map[string]string `json:"colorImages,omitempty"`
}

type UploadResponse struct {
	Fields AssetFields    `json:"fields"`
	Files  []UploadedFile `json:"files"`
}
