package session

import (
	"time"

	"github.com/refl-model/backend/internal/models"
)

// ParameterView is a parameter as exposed to clients. Label is the value
// accepted by BulkUpdate.
type ParameterView struct {
	Label string  `json:"label"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Fixed bool    `json:"fixed"`
	Unit  string  `json:"unit,omitempty"`
}

type MaterialView struct {
	ID   string        `json:"id"`
	Name string        `json:"name"`
	SLD  ParameterView `json:"sld"`
	ISLD ParameterView `json:"isld"`
}

type LayerView struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Material  MaterialView  `json:"material"`
	Thickness ParameterView `json:"thickness"`
	Roughness ParameterView `json:"roughness"`
}

type ItemView struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Repetitions ParameterView `json:"repetitions"`
	Layers      []LayerView   `json:"layers"`
}

// ModelView is a read-only snapshot of a model.
type ModelView struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Calculator   string        `json:"calculator"`
	Scale        ParameterView `json:"scale"`
	Background   ParameterView `json:"background"`
	Resolution   ParameterView `json:"resolution"`
	Items        []ItemView    `json:"items"`
	CreatedAt    time.Time     `json:"createdAt"`
	LastAccessed time.Time     `json:"lastAccessed"`
}

// ModelSummary is the list entry of a model.
type ModelSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Items     int       `json:"items"`
	CreatedAt time.Time `json:"createdAt"`
}

func paramView(ownerID, field string, p *models.Parameter) ParameterView {
	return ParameterView{
		Label: models.Label(ownerID, field),
		Name:  field,
		Value: p.Value(),
		Min:   p.Min(),
		Max:   p.Max(),
		Fixed: p.Fixed(),
		Unit:  p.Unit(),
	}
}

func viewModel(m *models.Model) ModelView {
	v := ModelView{
		ID:         m.ID(),
		Name:       m.Name(),
		Scale:      paramView(m.ID(), models.FieldScale, m.Scale()),
		Background: paramView(m.ID(), models.FieldBackground, m.Background()),
		Resolution: paramView(m.ID(), models.FieldResolution, m.Resolution()),
		Items:      []ItemView{},
	}
	for _, it := range m.Structure().All() {
		iv := ItemView{
			ID:          it.ID(),
			Name:        it.Name(),
			Repetitions: paramView(it.ID(), models.FieldRepetitions, it.Repetitions()),
			Layers:      []LayerView{},
		}
		for _, l := range it.Layers().All() {
			mat := l.Material()
			iv.Layers = append(iv.Layers, LayerView{
				ID:   l.ID(),
				Name: l.Name(),
				Material: MaterialView{
					ID:   mat.ID(),
					Name: mat.Name(),
					SLD:  paramView(mat.ID(), models.FieldSLD, mat.SLD()),
					ISLD: paramView(mat.ID(), models.FieldISLD, mat.ISLD()),
				},
				Thickness: paramView(l.ID(), models.FieldThickness, l.Thickness()),
				Roughness: paramView(l.ID(), models.FieldRoughness, l.Roughness()),
			})
		}
		v.Items = append(v.Items, iv)
	}
	return v
}

// parameters indexes every parameter of m by label.
func parameters(m *models.Model) map[string]*models.Parameter {
	out := map[string]*models.Parameter{
		models.Label(m.ID(), models.FieldScale):      m.Scale(),
		models.Label(m.ID(), models.FieldBackground): m.Background(),
		models.Label(m.ID(), models.FieldResolution): m.Resolution(),
	}
	for _, it := range m.Structure().All() {
		out[models.Label(it.ID(), models.FieldRepetitions)] = it.Repetitions()
		for _, l := range it.Layers().All() {
			out[models.Label(l.ID(), models.FieldThickness)] = l.Thickness()
			out[models.Label(l.ID(), models.FieldRoughness)] = l.Roughness()
			mat := l.Material()
			out[models.Label(mat.ID(), models.FieldSLD)] = mat.SLD()
			out[models.Label(mat.ID(), models.FieldISLD)] = mat.ISLD()
		}
	}
	return out
}

// layerByID finds a layer anywhere in m's structure.
func layerByID(m *models.Model, id string) *models.Layer {
	for _, it := range m.Structure().All() {
		for _, l := range it.Layers().All() {
			if l.ID() == id {
				return l
			}
		}
	}
	return nil
}
