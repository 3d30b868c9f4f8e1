package objects

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"go-skywatch/radar"
	"go-skywatch/types"
)

const objectsCollection = "objects"

// classificationToken marks the hidden metadata blob appended to
// notification bodies so clients can render a structured stats badge.
const classificationToken = "__CLASSIFICATION_DATA__"

// Store is the document adapter the service persists through.
type Store interface {
	GetDocument(ctx context.Context, collection, documentID string) (map[string]interface{}, error)
	CreateDocument(ctx context.Context, collection string, data map[string]interface{}) (map[string]interface{}, error)
	SetDocument(ctx context.Context, collection, documentID string, data map[string]interface{}) (map[string]interface{}, error)
}

// Emitter fans object events out to all subscribers.
type Emitter interface {
	EmitObjectChange(object types.ObjectData)
	EmitObjectDelete(objectID string)
}

// Notifier bridges classification events into operator chat notifications.
type Notifier interface {
	SendSystemMessage(msg types.SystemMessage)
	SendSystemMessageAfter(delay time.Duration, msg types.SystemMessage)
}

// Geocoder resolves a country name for a coordinate pair.
type Geocoder func(ctx context.Context, lat, lng float64) (string, error)

// suggestLabels maps a suggested identification to its operator-facing
// Hebrew label on the suggestion path.
var suggestLabels = map[types.ClassificationOption]string{
	types.ClassDrone:       "כטב\"ם",
	types.ClassPlane:       "מטוס אזרחי",
	types.ClassJet:         "מטוס קרב",
	types.ClassBird:        "עוף",
	types.ClassRocket:      "טיל",
	types.ClassHelicopter:  "מסוק",
	types.ClassUnknownFast: "לא ידוע מהיר",
	types.ClassUnknown:     "לא ידוע",
}

// approveLabels is the confirmation-path label table; drone reads as a
// confirmed hostile there.
var approveLabels = map[types.ClassificationOption]string{
	types.ClassDrone:       "כטב\"ם אויב",
	types.ClassPlane:       "מטוס אזרחי",
	types.ClassJet:         "מטוס קרב",
	types.ClassBird:        "עוף",
	types.ClassRocket:      "טיל",
	types.ClassHelicopter:  "מסוק",
	types.ClassUnknownFast: "לא ידוע מהיר",
	types.ClassUnknown:     "לא ידוע",
}

// drawableTypes maps an approved identification to the kind clients draw.
var drawableTypes = map[types.ClassificationOption]string{
	types.ClassDrone:       "drone",
	types.ClassPlane:       "plane",
	types.ClassJet:         "jet",
	types.ClassBird:        "bird",
	types.ClassHelicopter:  "plane",  // helicopter classification -> plane drawable
	types.ClassRocket:      "missile", // rocket classification -> missile drawable
	types.ClassUnknownFast: "arrow",
}

// Service is the tracked-object workflow: construction, radar coverage,
// classification suggest/approve, and the bridging of those events into
// broadcasts and notifications.
type Service struct {
	store    Store
	emitter  Emitter
	notifier Notifier
	geocoder Geocoder
}

// NewService wires the workflow to its collaborators.
func NewService(store Store, emitter Emitter, notifier Notifier, geocoder Geocoder) *Service {
	return &Service{
		store:    store,
		emitter:  emitter,
		notifier: notifier,
		geocoder: geocoder,
	}
}

// detectingRadarsFor guards against malformed positions before coverage
// lookup; anything short of a lng/lat pair is covered by nothing.
func detectingRadarsFor(position []float64) []string {
	if len(position) < 2 {
		return []string{}
	}
	return radar.DetectingRadars(position[0], position[1])
}

// objectDataToMap converts the wire form into the adapter's document shape.
func objectDataToMap(data types.ObjectData) map[string]interface{} {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("Failed to marshal object %s: %v", data.ID, err)
		return map[string]interface{}{}
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Printf("Failed to convert object %s to document: %v", data.ID, err)
	}
	return out
}

// objectDataFromMap converts a stored document back to the wire form.
func objectDataFromMap(doc map[string]interface{}) (types.ObjectData, error) {
	var data types.ObjectData
	raw, err := json.Marshal(doc)
	if err != nil {
		return data, fmt.Errorf("failed to marshal document: %w", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("failed to decode document: %w", err)
	}
	return data, nil
}

// createRadarDetectionPoints emits one zero-speed radar return per covering
// station at the exact detected position. The points build a visual
// detection trail without touching the primary object's plots.
func (s *Service) createRadarDetectionPoints(objectID string, position []float64, radarDetections []string) {
	timestamp := time.Now().UnixMilli()
	radarPoint := types.ClassRadarPoint

	for _, radarName := range radarDetections {
		detection, err := New(types.CreateObjectRequest{
			// Timestamp keeps the ID unique across repeated detections.
			ID:       fmt.Sprintf("%s-radar-%s-%d", objectID, radarName, timestamp),
			Type:     "star",
			Position: position,
			Size:     10,
			Speed:    0,
			Classification: &types.Classification{
				CurrentIdentification: &radarPoint,
			},
			Details: map[string]interface{}{
				"radar_source":   radarName,
				"parent_object":  objectID,
				"detection_type": "radar_return",
				"timestamp":      timestamp,
			},
		}, []string{radarName})
		if err != nil {
			log.Printf("Failed to build radar detection point for %s/%s: %v", objectID, radarName, err)
			continue
		}
		s.emitter.EmitObjectChange(detection.Data())
	}
}

// GetAndEmit fetches a stored object and rebroadcasts it.
func (s *Service) GetAndEmit(ctx context.Context, objectID string) (types.ObjectData, error) {
	doc, err := s.store.GetDocument(ctx, objectsCollection, objectID)
	if err != nil {
		return types.ObjectData{}, err
	}
	if doc == nil {
		return types.ObjectData{}, ErrNotFound
	}

	data, err := objectDataFromMap(doc)
	if err != nil {
		return types.ObjectData{}, err
	}
	s.emitter.EmitObjectChange(data)
	return data, nil
}

// CreateAndEmit validates and persists an object, broadcasts it, and emits
// a radar detection point per covering station. A delete-flagged request
// short-circuits into a delete broadcast.
func (s *Service) CreateAndEmit(ctx context.Context, req types.CreateObjectRequest) (types.ObjectData, error) {
	if req.Delete {
		if req.ID == "" {
			return types.ObjectData{}, ErrMissingID
		}
		s.emitter.EmitObjectDelete(req.ID)
		return types.ObjectData{ID: req.ID}, nil
	}

	obj, err := New(req, detectingRadarsFor(req.Position))
	if err != nil {
		return types.ObjectData{}, err
	}
	jsonData := obj.Data()

	var doc map[string]interface{}
	if req.ID != "" {
		doc, err = s.store.SetDocument(ctx, objectsCollection, req.ID, objectDataToMap(jsonData))
	} else {
		doc, err = s.store.CreateDocument(ctx, objectsCollection, objectDataToMap(jsonData))
	}
	if err != nil {
		return types.ObjectData{}, err
	}

	data, err := objectDataFromMap(doc)
	if err != nil {
		return types.ObjectData{}, err
	}
	s.emitter.EmitObjectChange(data)

	if data.ID != "" && len(data.RadarDetections) > 0 {
		s.createRadarDetectionPoints(data.ID, data.Position, data.RadarDetections)
	}
	return data, nil
}

// SetTemporaryAndEmit broadcasts an object without persisting it.
func (s *Service) SetTemporaryAndEmit(req types.CreateObjectRequest) error {
	obj, err := New(req, detectingRadarsFor(req.Position))
	if err != nil {
		return err
	}
	jsonData := obj.Data()
	s.emitter.EmitObjectChange(jsonData)

	if req.ID != "" && len(jsonData.RadarDetections) > 0 {
		s.createRadarDetectionPoints(req.ID, jsonData.Position, jsonData.RadarDetections)
	}
	return nil
}

// CreateRadarPoint creates a manual radar detection point and broadcasts
// it, returning the generated point ID.
func (s *Service) CreateRadarPoint(req types.CreateRadarPointRequest) string {
	timestamp := time.Now().UnixMilli()

	radarPointID := fmt.Sprintf("radar-point-%d", timestamp)
	if req.RadarSource != "" && req.ParentObject != "" {
		radarPointID = fmt.Sprintf("%s-radar-%s-%d", req.ParentObject, req.RadarSource, timestamp)
	}

	detectingRadars := radar.DetectingRadars(req.Lng, req.Lat)
	if req.RadarSource != "" {
		detectingRadars = []string{req.RadarSource}
	}

	radarSource := req.RadarSource
	if radarSource == "" {
		radarSource = "unknown"
		if len(detectingRadars) > 0 {
			radarSource = detectingRadars[0]
		}
	}

	radarPoint := types.ClassRadarPoint
	var parentObject interface{}
	if req.ParentObject != "" {
		parentObject = req.ParentObject
	}

	point, err := New(types.CreateObjectRequest{
		ID:       radarPointID,
		Type:     "star",
		Position: []float64{req.Lng, req.Lat, req.Alt},
		Size:     10,
		Speed:    0,
		Classification: &types.Classification{
			CurrentIdentification: &radarPoint,
		},
		Details: map[string]interface{}{
			"radar_source":   radarSource,
			"parent_object":  parentObject,
			"detection_type": "manual_radar_point",
			"timestamp":      timestamp,
		},
	}, detectingRadars)
	if err != nil {
		log.Printf("Failed to build manual radar point: %v", err)
		return radarPointID
	}

	s.emitter.EmitObjectChange(point.Data())
	return radarPointID
}

// enrichDescription fills in the origin country via reverse geocoding and
// the distance from origin via haversine. Lookup failure degrades to
// "Unknown"; it never blocks the object emission.
func (s *Service) enrichDescription(ctx context.Context, description types.Description) types.Description {
	distanceFromOrigin := description.DistanceFromOrigin
	if distanceFromOrigin == 0 && len(description.StartingPoint) >= 2 && len(description.EndingPoint) >= 2 {
		distanceFromOrigin = radar.Distance(
			description.StartingPoint[1], description.StartingPoint[0],
			description.EndingPoint[1], description.EndingPoint[0],
		) / 1000 // km for this field, unlike radar coverage
	}
	description.DistanceFromOrigin = distanceFromOrigin

	country, err := s.geocoder(ctx, description.StartingPoint[1], description.StartingPoint[0])
	if err != nil {
		log.Printf("Error fetching origin country: %v", err)
		description.OriginCountry = "Unknown"
		return description
	}
	description.OriginCountry = country
	return description
}

func detailString(details map[string]interface{}, key string) string {
	if v, ok := details[key].(string); ok {
		return v
	}
	return ""
}

// altitudeBucket renders altitude (in thousands) into the fixed-width
// zero-padded field operators read.
func altitudeBucket(altitude float64) string {
	bucket := int(math.Round(altitude / 1000))
	if bucket < 100 {
		return fmt.Sprintf("%03d", bucket)
	}
	return fmt.Sprintf("%d", bucket)
}

// ClassifyAndNotify runs the suggest transition: coverage, enrichment,
// broadcast, radar trail, and the operator notification flow.
func (s *Service) ClassifyAndNotify(ctx context.Context, req types.ClassifyObjectRequest) error {
	if len(req.Position) != 3 {
		return ErrInvalidObjectData
	}

	radarDetections := detectingRadarsFor(req.Position)

	var enrichedDescription *types.Description
	if req.Description != nil {
		enriched := *req.Description
		if len(enriched.StartingPoint) >= 2 && enriched.OriginCountry == "" {
			enriched = s.enrichDescription(ctx, enriched)
		}
		enrichedDescription = &enriched
	}

	classification := req.Classification
	objectData := types.ObjectData{
		ID:              req.ID,
		Name:            req.Name,
		Type:            req.Type,
		Position:        req.Position,
		Size:            req.Size,
		Speed:           req.Speed,
		Plots:           req.Plots,
		Classification:  &classification,
		Description:     enrichedDescription,
		Details:         req.Details,
		RadarDetections: radarDetections,
		Color:           "#FF0000",
		Qna:             req.Steps,
	}
	if objectData.Plots == nil {
		objectData.Plots = []types.Plot{}
	}
	if req.Type == "arrow" {
		rotation := req.Rotation
		objectData.Rotation = &rotation
	}

	// The object update goes out regardless of notification outcome.
	s.emitter.EmitObjectChange(objectData)

	if len(radarDetections) > 0 {
		s.createRadarDetectionPoints(req.ID, req.Position, radarDetections)
	}

	if classification.SuggestedIdentification != nil && enrichedDescription != nil {
		s.sendClassificationNotification(req, objectData, *enrichedDescription, radarDetections)
	}
	return nil
}

// sendClassificationNotification builds the operator-facing suggestion
// message and runs the per-target script: two named targets get scripted
// flows, everything else gets the default suggestion plus an optional Q&A
// follow-up.
func (s *Service) sendClassificationNotification(req types.ClassifyObjectRequest, objectData types.ObjectData, description types.Description, radarDetections []string) {
	const sender = "Classification System"

	// Relative event ages shown to the operator; real per-track timing is
	// not available on this path.
	const detectionTimeAgo = 10
	const firstDetectionTimeAgo = 30

	originCountry := "Unknown"
	if v, ok := req.Details["origin_country"].(string); ok && v != "" {
		originCountry = v
	}
	certainty := 85.0
	if req.Classification.CertaintyPercentage != nil {
		certainty = *req.Classification.CertaintyPercentage
	}
	altitudeText := altitudeBucket(req.Position[2])

	suggested := *req.Classification.SuggestedIdentification
	suggestedLabel, ok := suggestLabels[suggested]
	if !ok {
		suggestedLabel = string(suggested)
	}

	direction := detailString(req.Details, "direction")
	movingTo := detailString(req.Details, "moving_to")

	targetDisplayName := req.Name
	if targetDisplayName == "" {
		targetDisplayName = req.ID
	}

	detailedMessage := fmt.Sprintf(`מטרה %s
התגלתה ב%s לפני %d שניות
גילוי ראשוני לפני %d שניות
ע"י  %d מכמי גילוי בצורה רציפה
כיוון טיסה %s (%s to %s)

פרופיל טיסה תואם <span class="suggested-type">%s</span> - %g%%
המלצה – יש לפתוח אירוע במיידי !

`,
		targetDisplayName, originCountry, detectionTimeAgo, firstDetectionTimeAgo,
		len(radarDetections), direction, originCountry, movingTo,
		suggestedLabel, certainty)
	if req.DetailedMessage != nil {
		detailedMessage = *req.DetailedMessage
	}

	// The stats badge token must appear exactly once; a pre-formatted
	// client message may already carry it.
	tokenPayload, _ := json.Marshal(map[string]interface{}{
		"speed":    math.Round(req.Speed),
		"altitude": altitudeText,
		"rotation": math.Round(req.Rotation),
	})
	classMetaToken := fmt.Sprintf("%s%s__", classificationToken, tokenPayload)
	if !strings.Contains(detailedMessage, classificationToken) {
		detailedMessage = fmt.Sprintf("%s\n%s\n", detailedMessage, classMetaToken)
	}

	switch targetDisplayName {
	case "ב149":
		customMessage := strings.Join([]string{
			"בוצע שיערוך:",
			strings.TrimSpace(detailedMessage),
			"המלצת מערכת סיווג - <span style=\"color: #ff4444; font-weight: bold;\">כטב\"ם אויב</span>",
		}, "\n")

		s.notifier.SendSystemMessage(types.SystemMessage{
			Message: customMessage,
			Sender:  sender,
			Buttons: []types.Button{
				{
					Label:  "הרחבה",
					Action: "add_expansion",
					Data: map[string]interface{}{
						"message": strings.Join([]string{
							"מטרה ב149 התגלתה במיקום שממנו בתגלו וסווגו כטבמים ",
							"",
							"בשבועיים האחרונים התגלו וסווגו באזור זה 5 כטב\"מים, אחד מהם יורט ע'י כיפת ברזל",
							"",
							"פרופיל טיסה תואם לקטב\\\"ם 5 אלף רגל ו80 קשר, כיוון הטיסה מאיים, בנתיב התכנסות למדינה",
						}, "\n"),
					},
				},
				{
					Label:  "פתח חלון ממוקד",
					Action: "open_popup_chat",
					Data:   map[string]interface{}{},
				},
			},
			ObjectData: &objectData,
		})

		// Follow-up approval question
		approvalMessage := fmt.Sprintf("האם אתה רוצה שאסווג את המטרה ככטב\"ם אויב?\n\n%s", classMetaToken)
		s.notifier.SendSystemMessageAfter(400*time.Millisecond, types.SystemMessage{
			Message: approvalMessage,
			Sender:  sender,
			Buttons: []types.Button{
				{Label: "כן", Action: "approve_suggested"},
			},
			ObjectData: &objectData,
		})

	case "טיל שיוט":
		popupInitialMessage := strings.Join([]string{
			"<span style=\"color: #ff4444; font-weight: bold;\">Pop Up</span>",
			"",
			strings.TrimSpace(detailedMessage),
			"",
			"התגלתה מטרה מהירה 20 מייל מגבול מזרח",
			"סבירות 95 %",
			"נדרש לפעול על המטרה מיידית :",
		}, "\n")

		popupObject := objectData
		popupObject.AutoOpenPopup = true
		s.notifier.SendSystemMessage(types.SystemMessage{
			Message: popupInitialMessage,
			Sender:  sender,
			Buttons: []types.Button{
				{
					Label:  "סווג ופעל",
					Action: "cruise_missile_approve_and_continue",
					Data:   map[string]interface{}{},
				},
			},
			ObjectData: &popupObject,
		})

	default:
		s.notifier.SendSystemMessage(types.SystemMessage{
			Message:    detailedMessage,
			Sender:     sender,
			ObjectData: &objectData,
		})

		// First Q&A step opens the stepper in a popup.
		if len(req.Steps) > 0 {
			s.notifier.SendSystemMessageAfter(500*time.Millisecond, types.SystemMessage{
				Message: req.Steps[0].Question,
				Sender:  sender,
				Buttons: []types.Button{
					{
						Label:  "כן",
						Action: "open_popup_with_steps",
						Data: map[string]interface{}{
							"steps":            req.Steps,
							"currentStepIndex": 0,
						},
					},
				},
				ObjectData: &objectData,
			})
		}
	}
}

// ApproveClassification promotes a suggested identification to the current
// one, remaps the drawable kind, snaps to the last plot, persists and
// broadcasts. Every failure is absorbed: the object stays in its
// pre-approval state and nothing is broadcast.
func (s *Service) ApproveClassification(ctx context.Context, objectData types.ObjectData) {
	if objectData.ID == "" {
		log.Printf("Invalid object data for classification approval")
		return
	}
	if objectData.Classification == nil || objectData.Classification.SuggestedIdentification == nil {
		log.Printf("Object %s has no suggested classification", objectData.ID)
		return
	}

	suggested := *objectData.Classification.SuggestedIdentification
	certainty := 100.0 // now confirmed
	updatedClassification := &types.Classification{
		CurrentIdentification: &suggested,
		CertaintyPercentage:   &certainty,
	}

	updatedType := objectData.Type
	if suggested != types.ClassRadarPoint {
		if drawable, ok := drawableTypes[suggested]; ok {
			updatedType = drawable
		}
	}

	updated := objectData
	updated.Type = updatedType
	updated.Classification = updatedClassification

	// The freshest observed state supersedes the creation-time state.
	if len(objectData.Plots) > 0 {
		lastPlot := objectData.Plots[len(objectData.Plots)-1]
		updated.Position = lastPlot.Position
		rotation := lastPlot.Rotation
		updated.Rotation = &rotation
	}

	if _, err := s.store.SetDocument(ctx, objectsCollection, objectData.ID, objectDataToMap(updated)); err != nil {
		log.Printf("Error approving classification for %s: %v", objectData.ID, err)
		return
	}

	s.emitter.EmitObjectChange(updated)

	label, ok := approveLabels[suggested]
	if !ok {
		label = string(suggested)
	}
	approvalMessage := strings.Join([]string{
		"זיהוי אושר",
		fmt.Sprintf(" מטרה: <span style=\"color: #4a9eff; font-weight: 500;\">%s</span>", objectData.Name),
		"",
		fmt.Sprintf(" סווגה כ: <span style=\"color:rgb(192, 34, 34); font-weight: 500;\">%s</span>", label),
	}, "")

	s.notifier.SendSystemMessage(types.SystemMessage{
		Message: approvalMessage,
		Sender:  "Classification System",
	})

	log.Printf("Classification approved for %s: %s", objectData.ID, suggested)
}
