package materials

import "time"

// MaterialView renders a material. The owning patient comes from the URL
// and is not rendered.
type MaterialView struct {
	ID      int64     `json:"id"`
	File    string    `json:"file"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// NewMaterialView renders m with fileURL as its absolute file location.
func NewMaterialView(m *Material, fileURL string) MaterialView {
	return MaterialView{ID: m.ID, File: fileURL, Created: m.Created, Updated: m.Updated}
}
