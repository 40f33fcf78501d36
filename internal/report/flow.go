// Package report implements the driver shift-report conversation: a strictly
// ordered chain of steps that collects a typed Draft, validates odometer
// readings, and hands the finished record to a Persister exactly once.
package report

// Step is one point in the conversation chain awaiting a specific input.
type Step int

// Conversation steps, in chain order. StepNone is the zero value for a user
// who has never started a report.
const (
	StepNone Step = iota
	StepEntry
	StepJourneyType
	StepDriverName
	StepPlate
	StepOdometerInitial
	StepOdometerFinal
	StepPhotoPlate
	StepPhotoOdometer
	StepPhotoCondition
	StepComments
	StepComplete
	StepCancelled
)

var stepNames = map[Step]string{
	StepNone:            "none",
	StepEntry:           "entry",
	StepJourneyType:     "journey_type",
	StepDriverName:      "driver_name",
	StepPlate:           "plate",
	StepOdometerInitial: "odometer_initial",
	StepOdometerFinal:   "odometer_final",
	StepPhotoPlate:      "photo_plate",
	StepPhotoOdometer:   "photo_odometer",
	StepPhotoCondition:  "photo_condition",
	StepComments:        "comments",
	StepComplete:        "complete",
	StepCancelled:       "cancelled",
}

// String returns the snake_case step name used in logs and metric labels.
func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsPhoto reports whether the step expects a photo attachment.
func (s Step) IsPhoto() bool {
	return s == StepPhotoPlate || s == StepPhotoOdometer || s == StepPhotoCondition
}

// Terminal reports whether no further input is accepted in this step.
func (s Step) Terminal() bool {
	return s == StepNone || s == StepComplete || s == StepCancelled
}

// Flow selects which optional steps are part of the chain. The zero value is
// the plainest variant: name, plate, one odometer reading, comments.
type Flow struct {
	JourneyType     bool // ask for shift start/end first
	ComputeDistance bool // collect initial and final odometer, derive distance
	RequirePhotos   bool // plate, odometer and condition photos
}

// Steps returns the input steps of the chain, Entry and Complete excluded.
func (f Flow) Steps() []Step {
	var steps []Step
	if f.JourneyType {
		steps = append(steps, StepJourneyType)
	}
	steps = append(steps, StepDriverName, StepPlate, StepOdometerInitial)
	if f.ComputeDistance {
		steps = append(steps, StepOdometerFinal)
	}
	if f.RequirePhotos {
		steps = append(steps, StepPhotoPlate, StepPhotoOdometer, StepPhotoCondition)
	}
	return append(steps, StepComments)
}

// Next returns the step that follows s. Entry leads to the first input step;
// the last input step leads to Complete.
func (f Flow) Next(s Step) Step {
	steps := f.Steps()
	if s == StepEntry {
		return steps[0]
	}
	for i, st := range steps {
		if st == s && i+1 < len(steps) {
			return steps[i+1]
		}
	}
	return StepComplete
}

// Includes reports whether s is one of the flow's input steps.
func (f Flow) Includes(s Step) bool {
	for _, st := range f.Steps() {
		if st == s {
			return true
		}
	}
	return false
}
