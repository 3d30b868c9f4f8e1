package types

// ClassificationOption is the closed set of identifications the
// classification workflow can assign or suggest.
type ClassificationOption string

const (
	ClassDrone       ClassificationOption = "drone"
	ClassPlane       ClassificationOption = "plane"
	ClassBird        ClassificationOption = "bird"
	ClassRocket      ClassificationOption = "rocket"
	ClassHelicopter  ClassificationOption = "helicopter"
	ClassJet         ClassificationOption = "jet"
	ClassUnknownFast ClassificationOption = "unknownFast"
	ClassUnknown     ClassificationOption = "unknown"
	ClassRadarPoint  ClassificationOption = "radarPoint"
)

// Classification holds the approve/suggest state of a tracked object.
type Classification struct {
	CurrentIdentification   *ClassificationOption `json:"current_identification"`
	SuggestedIdentification *ClassificationOption `json:"suggested_identification"`
	SuggestionReason        *string               `json:"suggestion_reason"`
	CertaintyPercentage     *float64              `json:"certainty_percentage"`
}

// Plot is a single historical position sample. Plots are supplied by the
// caller; the server never synthesizes them.
type Plot struct {
	Position []float64 `json:"position"`
	Speed    float64   `json:"speed"`
	Time     string    `json:"time"`
	Color    string    `json:"color"`
	Rotation float64   `json:"rotation"`
}

// Description is the kinematic summary attached to a classified track.
type Description struct {
	CreatedAt             string    `json:"created_at"`
	AvgSpeed              float64   `json:"avg_speed"`
	Altitude              float64   `json:"altitude"`
	StartingPoint         []float64 `json:"starting_point"`
	EndingPoint           []float64 `json:"ending_point"`
	TotalDistance         float64   `json:"total_distance"`
	TotalDirectionChanges int       `json:"total_direction_changes"`
	TotalSpeedChanges     int       `json:"total_speed_changes"`
	TotalAltitudeChanges  int       `json:"total_altitude_changes"`
	CurrentSpeed          float64   `json:"current_speed"`
	ComingFrom            string    `json:"coming_from"`
	MovingTo              string    `json:"moving_to"`
	DistanceFromOrigin    float64   `json:"distance_from_origin"`
	OriginCountry         string    `json:"origin_country"`
}

// QnaStep is one question with its known answers, attached at
// classification time for the stepper interaction and chat grounding.
type QnaStep struct {
	Question string   `json:"question"`
	Answers  []string `json:"answers"`
}

// ObjectData is the wire representation of a tracked object. It is what the
// broadcast hub emits and what the document store persists.
type ObjectData struct {
	ID              string                 `json:"id,omitempty"`
	Name            string                 `json:"name,omitempty"`
	Type            string                 `json:"type"`
	Position        []float64              `json:"position"`
	Color           string                 `json:"color"`
	Size            float64                `json:"size"`
	Speed           float64                `json:"speed"`
	Rotation        *float64               `json:"rotation,omitempty"`
	Plots           []Plot                 `json:"plots"`
	Classification  *Classification        `json:"classification"`
	Description     *Description           `json:"description"`
	Details         map[string]interface{} `json:"details"`
	RadarDetections []string               `json:"radar_detections"`
	Qna             []QnaStep              `json:"qna,omitempty"`
	AutoOpenPopup   bool                   `json:"autoOpenPopup,omitempty"`
}

// CreateObjectRequest is the inbound payload for create, temporary and
// delete operations.
type CreateObjectRequest struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	Type            string                 `json:"type" binding:"required"`
	Position        []float64              `json:"position" binding:"required"`
	Size            float64                `json:"size"`
	Speed           float64                `json:"speed"`
	Rotation        *float64               `json:"rotation"`
	Plots           []Plot                 `json:"plots"`
	Classification  *Classification        `json:"classification"`
	Description     *Description           `json:"description"`
	Details         map[string]interface{} `json:"details"`
	RadarDetections []string               `json:"radar_detections"`
	Delete          bool                   `json:"delete"`
}

// ClassifyObjectRequest is the inbound payload for the suggest transition.
type ClassifyObjectRequest struct {
	ID              string                 `json:"id" binding:"required"`
	Name            string                 `json:"name"`
	Type            string                 `json:"type" binding:"required"`
	Position        []float64              `json:"position" binding:"required"`
	Size            float64                `json:"size"`
	Speed           float64                `json:"speed"`
	Rotation        float64                `json:"rotation"`
	Plots           []Plot                 `json:"plots"`
	Classification  Classification         `json:"classification"`
	Description     *Description           `json:"description"`
	Details         map[string]interface{} `json:"details"`
	Steps           []QnaStep              `json:"steps"`
	DetailedMessage *string                `json:"detailedMessage"`
}

// CreateRadarPointRequest creates a manual radar detection point.
type CreateRadarPointRequest struct {
	Lng          float64 `json:"lng"`
	Lat          float64 `json:"lat"`
	Alt          float64 `json:"alt"`
	RadarSource  string  `json:"radarSource"`
	ParentObject string  `json:"parentObject"`
}
