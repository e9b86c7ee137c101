// Package model defines the domain types shared across the complaint AI
// pipeline: the complaint document itself, its priority/AI metadata, and
// the read-only sensitive-location reference data.
package model

import (
	"strings"
	"time"
)

// ProcessingStatus mirrors priority.aiProcessingStatus on the stored document.
type ProcessingStatus string

const (
	StatusPending        ProcessingStatus = "pending"
	StatusProcessing     ProcessingStatus = "processing"
	StatusDone           ProcessingStatus = "done"
	StatusFailed         ProcessingStatus = "failed"
	StatusReviewRequired ProcessingStatus = "review_required"
)

// Level is the coarse priority bucket assigned by the priority engine.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Category is one of the six recognized complaint categories, matched
// case-insensitively via NormalizeCategory.
type Category string

const (
	CategoryPothole     Category = "pothole"
	CategoryGarbage     Category = "garbage"
	CategoryDrainage    Category = "drainage"
	CategoryStreetlight Category = "streetlight"
	CategoryWaterLeak   Category = "water_leak"
	CategoryRoadDamage  Category = "road_damage"
)

// NormalizeCategory lowercases and trims a raw category string for comparison.
func NormalizeCategory(raw string) Category {
	return Category(strings.ToLower(strings.TrimSpace(raw)))
}

// Point is a GeoJSON-like {type: "Point", coordinates: [lng, lat]}.
type Point struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

// Valid reports whether the point carries usable lng/lat coordinates.
func (p *Point) Valid() bool {
	return p != nil && len(p.Coordinates) == 2
}

// Lng returns the longitude component; callers must check Valid() first.
func (p *Point) Lng() float64 { return p.Coordinates[0] }

// Lat returns the latitude component; callers must check Valid() first.
func (p *Point) Lat() float64 { return p.Coordinates[1] }

// Image is one entry in a complaint's ordered image list.
type Image struct {
	URL string `bson:"url" json:"url"`
}

// Priority holds the fields the priority engine and processor write back.
type Priority struct {
	Score              float64          `bson:"score" json:"score"`
	Level              Level            `bson:"level" json:"level"`
	Reason             string           `bson:"reason" json:"reason"`
	ReasonSentence     string           `bson:"reasonSentence" json:"reasonSentence"`
	AIProcessed        bool             `bson:"aiProcessed" json:"aiProcessed"`
	AIProcessingStatus ProcessingStatus `bson:"aiProcessingStatus" json:"aiProcessingStatus"`
}

// TopDetection is one entry of aiMeta.yoloTopDetections.
type TopDetection struct {
	Label       string  `bson:"label" json:"label"`
	Confidence  float64 `bson:"confidence" json:"confidence"`
	AreaPercent float64 `bson:"areaPercent" json:"areaPercent"`
}

// AIMeta captures everything the processor writes back beyond the priority
// fields: duplicate/semantic validation results and inference byproducts.
type AIMeta struct {
	ProcessedAt             time.Time      `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
	ModelVersion            string         `bson:"modelVersion,omitempty" json:"modelVersion,omitempty"`
	Error                   string         `bson:"error,omitempty" json:"error,omitempty"`
	IsAIDuplicate           bool           `bson:"isAIDuplicate" json:"isAIDuplicate"`
	DuplicateSimilarity     float64        `bson:"duplicateSimilarity,omitempty" json:"duplicateSimilarity,omitempty"`
	DuplicateComplaintID    string         `bson:"duplicateComplaintId,omitempty" json:"duplicateComplaintId,omitempty"`
	DuplicateDistanceMeters float64        `bson:"duplicateDistanceMeters,omitempty" json:"duplicateDistanceMeters,omitempty"`
	DuplicateCategoryMatch  bool           `bson:"duplicateCategoryMatch" json:"duplicateCategoryMatch"`
	DuplicateMethod         string         `bson:"duplicateMethod,omitempty" json:"duplicateMethod,omitempty"`
	ImageFingerprint        uint64         `bson:"imageFingerprint,omitempty" json:"imageFingerprint,omitempty"`
	Embedding               []float32      `bson:"embedding,omitempty" json:"-"`
	YOLOTopDetections       []TopDetection `bson:"yoloTopDetections,omitempty" json:"yoloTopDetections,omitempty"`
	MobilenetTopLabel       string         `bson:"mobilenetTopLabel,omitempty" json:"mobilenetTopLabel,omitempty"`
	MobilenetConfidence     float64        `bson:"mobilenetConfidence,omitempty" json:"mobilenetConfidence,omitempty"`
	MobilenetTopLabels      []string       `bson:"mobilenetTopLabels,omitempty" json:"mobilenetTopLabels,omitempty"`
	SemanticCategoryMatch   *bool          `bson:"semanticCategoryMatch" json:"semanticCategoryMatch"`
	SemanticFallbackUsed    bool           `bson:"semanticFallbackUsed" json:"semanticFallbackUsed"`
	SemanticNote            string         `bson:"semanticNote,omitempty" json:"semanticNote,omitempty"`
}

// Complaint is the unit of work consumed and rewritten by the AI core.
type Complaint struct {
	CID         string    `bson:"_id" json:"cid"`
	Category    string    `bson:"category" json:"category"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description" json:"description"`
	Location    *Point    `bson:"location,omitempty" json:"location,omitempty"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	Images      []Image   `bson:"images,omitempty" json:"images,omitempty"`
	ReportedBy  string    `bson:"reportedBy,omitempty" json:"reportedBy,omitempty"`
	Department  string    `bson:"department,omitempty" json:"department,omitempty"`

	SeverityScore float64  `bson:"severityScore" json:"severityScore"`
	Priority      Priority `bson:"priority" json:"priority"`
	AIMeta        AIMeta   `bson:"aiMeta" json:"aiMeta"`
}

// FirstImageURL returns the first non-empty image URL, if any.
func (c *Complaint) FirstImageURL() string {
	for _, img := range c.Images {
		if img.URL != "" {
			return img.URL
		}
	}
	return ""
}

// CandidateProjection is the narrow projection used by the duplicate
// validator when scanning recent complaints: only what's needed to compute
// similarity, distance, and category equality.
type CandidateProjection struct {
	CID            string    `bson:"_id"`
	Category       string    `bson:"category"`
	Location       *Point    `bson:"location,omitempty"`
	CreatedAt      time.Time `bson:"createdAt"`
	Embedding      []float32 `bson:"embedding,omitempty"`
	Fingerprint    uint64    `bson:"fingerprint,omitempty"`
	HasFingerprint bool      `bson:"hasFingerprint"`
}

// SensitiveLocation is read-only reference data consulted by the geo
// multiplier (school/hospital/metro proximity boosts).
type SensitiveLocation struct {
	Name     string `bson:"name" json:"name"`
	Type     string `bson:"type" json:"type"`
	Category string `bson:"category" json:"category"`
	Location Point  `bson:"location" json:"location"`
}
