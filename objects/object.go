package objects

import (
	"errors"

	"go-skywatch/types"
)

var (
	// ErrInvalidKind is returned for an unrecognized object type.
	ErrInvalidKind = errors.New("invalid object type")
	// ErrInvalidObjectData is returned when a constructed object fails validation.
	ErrInvalidObjectData = errors.New("invalid object data")
	// ErrMissingID is returned for a delete request without an object ID.
	ErrMissingID = errors.New("object ID is required for delete operation")
	// ErrNotFound is returned when an object ID is unknown to the store.
	ErrNotFound = errors.New("object not found")
)

const (
	defaultSize  = 30.0
	defaultColor = "#d92727" // dark red, also the null-classification alert color
)

// rotationOffsets maps each kinematic kind to the fixed rendering offset
// applied to the caller-supplied heading. Star is absent: it carries no
// heading at all.
var rotationOffsets = map[string]float64{
	"arrow": 0,
	"jet":   0,
	"drone": 0,
	"bird":  -90,
	"plane": 90,
}

// MapObject is a single tracked aerial object. The kind tag plus the shared
// attribute set replaces the class-per-kind hierarchy; once constructed the
// identity (ID+Type) does not change.
type MapObject struct {
	ID              string
	Name            string
	Type            string
	Position        []float64
	Size            float64
	Speed           float64
	Rotation        *float64
	Plots           []types.Plot
	Classification  *types.Classification
	Description     *types.Description
	Details         map[string]interface{}
	RadarDetections []string
	Qna             []types.QnaStep
}

// New constructs a MapObject of the requested kind, applying defaults and
// the per-kind rotation offset, and validates it. Radar detections are
// computed by the caller so temporary and persisted paths share one factory.
func New(req types.CreateObjectRequest, radarDetections []string) (*MapObject, error) {
	obj := &MapObject{
		ID:              req.ID,
		Name:            req.Name,
		Type:            req.Type,
		Position:        req.Position,
		Size:            req.Size,
		Speed:           req.Speed,
		Plots:           req.Plots,
		Classification:  req.Classification,
		Description:     req.Description,
		Details:         req.Details,
		RadarDetections: radarDetections,
	}
	if obj.Size == 0 {
		obj.Size = defaultSize
	}
	if obj.Plots == nil {
		obj.Plots = []types.Plot{}
	}
	if obj.RadarDetections == nil {
		obj.RadarDetections = []string{}
	}

	offset, kinematic := rotationOffsets[req.Type]
	switch {
	case kinematic:
		rotation := offset
		if req.Rotation != nil {
			rotation = *req.Rotation + offset
		}
		obj.Rotation = &rotation
	case req.Type == "star":
		// no heading
	default:
		return nil, ErrInvalidKind
	}

	if !obj.Validate() {
		return nil, ErrInvalidObjectData
	}
	return obj, nil
}

// Validate checks the invariants shared by every kind: a 3-element numeric
// position and, for kinematic kinds, a heading.
func (o *MapObject) Validate() bool {
	if len(o.Position) != 3 {
		return false
	}
	if _, kinematic := rotationOffsets[o.Type]; kinematic && o.Rotation == nil {
		return false
	}
	return true
}

// Color derives the rendering color from the current identification. It is
// computed server-side so every client renders the same palette.
func Color(c *types.Classification) string {
	if c == nil || c.CurrentIdentification == nil {
		return defaultColor
	}
	switch *c.CurrentIdentification {
	case types.ClassBird:
		return "#FFA500" // orange
	case types.ClassHelicopter:
		return "#0000FF" // blue
	case types.ClassPlane:
		return "#FFC0CB" // pink
	case types.ClassJet:
		return "#FFFF00" // yellow
	case types.ClassDrone:
		return "#FF0000" // red
	case types.ClassRocket:
		return "#800080" // purple
	case types.ClassUnknownFast:
		return "#d92727"
	case types.ClassUnknown:
		return "#40E0D0" // turquoise
	case types.ClassRadarPoint:
		return "#40E0D0" // turquoise
	default:
		return defaultColor
	}
}

// Data returns the wire representation used by both the broadcast hub and
// the document store, including the derived color.
func (o *MapObject) Data() types.ObjectData {
	return types.ObjectData{
		ID:              o.ID,
		Name:            o.Name,
		Type:            o.Type,
		Position:        o.Position,
		Color:           Color(o.Classification),
		Size:            o.Size,
		Speed:           o.Speed,
		Rotation:        o.Rotation,
		Plots:           o.Plots,
		Classification:  o.Classification,
		Description:     o.Description,
		Details:         o.Details,
		RadarDetections: o.RadarDetections,
		Qna:             o.Qna,
	}
}
