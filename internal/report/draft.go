package report

import (
	"time"

	"github.com/shopspring/decimal"
)

// JourneyType distinguishes a shift-start report from a shift-end report.
type JourneyType string

const (
	JourneyStart JourneyType = "Inicio de Jornada"
	JourneyEnd   JourneyType = "Fin de Jornada"
)

// PhotoKind identifies which of the three required photos a PhotoRef holds.
type PhotoKind string

const (
	PhotoPlate     PhotoKind = "placa"
	PhotoOdometer  PhotoKind = "km"
	PhotoCondition PhotoKind = "estado"
)

// photoKinds maps photo steps to the photo they collect.
var photoKinds = map[Step]PhotoKind{
	StepPhotoPlate:     PhotoPlate,
	StepPhotoOdometer:  PhotoOdometer,
	StepPhotoCondition: PhotoCondition,
}

// PhotoRef is an uploaded (or failed) photo. LocalPath is empty when the
// file could not be fetched from the transport; Link holds the shareable URL
// or UploadFailedMarker.
type PhotoRef struct {
	Kind      PhotoKind
	LocalPath string
	Link      string
}

// Draft is the in-progress record of one conversation. Pointer fields are
// nil until their step has accepted input.
type Draft struct {
	ID              string
	JourneyType     JourneyType
	DriverName      *string
	Plate           *string
	OdometerInitial *decimal.Decimal
	OdometerFinal   *decimal.Decimal
	Distance        *decimal.Decimal
	Photos          []PhotoRef
	Comments        *string
	Timestamp       time.Time
}

// Photo returns the stored reference for kind, if any.
func (d *Draft) Photo(kind PhotoKind) (PhotoRef, bool) {
	for _, p := range d.Photos {
		if p.Kind == kind {
			return p, true
		}
	}
	return PhotoRef{}, false
}

// localFiles lists the cached photo paths that need cleanup.
func (d *Draft) localFiles() []string {
	var paths []string
	for _, p := range d.Photos {
		if p.LocalPath != "" {
			paths = append(paths, p.LocalPath)
		}
	}
	return paths
}

// Owner identifies the chat user a conversation belongs to.
type Owner struct {
	Platform  string
	ChannelID string
	UserID    string
	UserName  string
}

// Conversation is the per-user state the session store keeps between
// events: the current step and the draft being filled. A Conversation is
// only ever touched by its owner's event stream.
type Conversation struct {
	Owner Owner
	Step  Step
	Draft *Draft
}

// Active reports whether the conversation is waiting for input.
func (c *Conversation) Active() bool {
	return c.Draft != nil && !c.Step.Terminal()
}

// Reply is one outbound message produced by the controller.
type Reply struct {
	Text           string
	Keyboard       []string // one-shot reply keyboard options
	RemoveKeyboard bool
}
