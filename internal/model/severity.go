package model

// Severity represents how much a metadata finding reveals about the
// people behind a localized asset. Higher values are more severe.
type Severity int

const (
	// SeverityInfo indicates informational findings.
	SeverityInfo Severity = iota

	// SeverityLow indicates minor disclosures such as software names or timestamps.
	SeverityLow

	// SeverityMedium indicates device or host identification.
	SeverityMedium

	// SeverityHigh indicates identity disclosure (author, serial numbers).
	SeverityHigh

	// SeverityCritical indicates location disclosure (GPS coordinates).
	SeverityCritical
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Finding is one piece of embedded metadata found in a localized asset.
type Finding struct {
	// Type is the finding type identifier (see findingInfoMapping).
	Type string `json:"type"`

	// Severity is the risk level.
	Severity Severity `json:"severity"`

	// SeverityText is the human-readable severity.
	SeverityText string `json:"severity_text"`

	// Title is a short description of the finding.
	Title string `json:"title"`

	// Value is the metadata tag and its value.
	Value string `json:"value,omitempty"`

	// Location is the localized file and the URL it came from.
	Location string `json:"location,omitempty"`

	// Recommendation tells the user what to do about it.
	Recommendation string `json:"recommendation,omitempty"`
}

// FindingInfo contains metadata about a finding type.
type FindingInfo struct {
	Severity       Severity
	Title          string
	Recommendation string
}

// findingInfoMapping maps finding types to their metadata.
// This centralized mapping keeps the audit and the report writers consistent.
var findingInfoMapping = map[string]FindingInfo{
	"exif_gps": {
		Severity:       SeverityCritical,
		Title:          "GPS coordinates in image EXIF",
		Recommendation: "Strip EXIF metadata from the image before publishing the mirror.",
	},
	"exif_serial": {
		Severity:       SeverityHigh,
		Title:          "Device serial number in image EXIF",
		Recommendation: "Strip EXIF metadata; serial numbers track a device across photos.",
	},
	"exif_author": {
		Severity:       SeverityHigh,
		Title:          "Author or copyright in image EXIF",
		Recommendation: "Confirm the author information is meant to be public.",
	},
	"exif_camera": {
		Severity:       SeverityMedium,
		Title:          "Camera make or model in image EXIF",
		Recommendation: "Strip EXIF metadata if the device should not be identifiable.",
	},
	"exif_computer": {
		Severity:       SeverityMedium,
		Title:          "Host computer in image EXIF",
		Recommendation: "Strip EXIF metadata before publishing.",
	},
	"exif_software": {
		Severity:       SeverityLow,
		Title:          "Software information in image EXIF",
		Recommendation: "Usually harmless; strip metadata for a clean mirror.",
	},
	"exif_datetime": {
		Severity:       SeverityLow,
		Title:          "Timestamp in image EXIF",
		Recommendation: "Usually harmless; timestamps can hint at a timezone.",
	},
}

// GetFindingInfo returns metadata for a finding type.
// Unknown types are informational.
func GetFindingInfo(findingType string) FindingInfo {
	if info, ok := findingInfoMapping[findingType]; ok {
		return info
	}
	return FindingInfo{Severity: SeverityInfo, Title: findingType}
}

// NewFinding builds a finding of the given type with its mapped severity.
func NewFinding(findingType, value, location string) Finding {
	info := GetFindingInfo(findingType)
	return Finding{
		Type:           findingType,
		Severity:       info.Severity,
		SeverityText:   info.Severity.String(),
		Title:          info.Title,
		Value:          value,
		Location:       location,
		Recommendation: info.Recommendation,
	}
}
