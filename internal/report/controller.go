package report

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Persister appends one finished report row to the backing spreadsheet.
type Persister interface {
	Append(ctx context.Context, row []string) error
}

// Uploader stores a local photo in the file store and returns a publicly
// readable link.
type Uploader interface {
	Upload(ctx context.Context, localPath, displayName string) (string, error)
}

// FileFetcher resolves a transport file reference to a local file.
type FileFetcher interface {
	FetchFile(ctx context.Context, fileRef, destPath string) error
}

// PhotoInput is an inbound photo event: the transport's file reference and
// the fetcher able to download it.
type PhotoInput struct {
	FileRef string
	Fetcher FileFetcher
}

// Observer receives step-level signals, typically for metrics. All methods
// must be safe for concurrent use.
type Observer interface {
	ConversationStarted()
	ValidationRejected(step Step)
	PhotoStored(ok bool)
	PersistDone(d time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ConversationStarted()             {}
func (noopObserver) ValidationRejected(Step)          {}
func (noopObserver) PhotoStored(bool)                 {}
func (noopObserver) PersistDone(time.Duration, error) {}

// Controller drives report conversations. It holds no per-user state: every
// operation takes the caller-owned Conversation and returns the replies to
// send. A Controller is safe for concurrent use across conversations.
type Controller struct {
	flow      Flow
	persister Persister
	uploader  Uploader
	photoDir  string
	loc       *time.Location
	now       func() time.Time
	newID     func() string
	sinks     []OutcomeSink
	observer  Observer
}

// ControllerOpts holds parameters for creating a Controller.
type ControllerOpts struct {
	Flow      Flow
	Persister Persister
	Uploader  Uploader         // required when Flow.RequirePhotos
	PhotoDir  string           // defaults to os.TempDir()
	Location  *time.Location   // timestamp zone; defaults to time.Local
	Now       func() time.Time // defaults to time.Now
	NewID     func() string    // defaults to uuid.NewString
	Sinks     []OutcomeSink
	Observer  Observer
}

// NewController creates a Controller.
func NewController(opts ControllerOpts) (*Controller, error) {
	if opts.Persister == nil {
		return nil, fmt.Errorf("report: controller: persister is required")
	}
	if opts.Flow.RequirePhotos && opts.Uploader == nil {
		return nil, fmt.Errorf("report: controller: uploader is required when photos are enabled")
	}
	c := &Controller{
		flow:      opts.Flow,
		persister: opts.Persister,
		uploader:  opts.Uploader,
		photoDir:  opts.PhotoDir,
		loc:       opts.Location,
		now:       opts.Now,
		newID:     opts.NewID,
		sinks:     opts.Sinks,
		observer:  opts.Observer,
	}
	if c.photoDir == "" {
		c.photoDir = os.TempDir()
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.observer == nil {
		c.observer = noopObserver{}
	}
	return c, nil
}

// Flow returns the configured step chain.
func (c *Controller) Flow() Flow { return c.flow }

// Welcome returns the /start greeting.
func (c *Controller) Welcome(name string) []Reply {
	return []Reply{{Text: welcomeText(name)}}
}

// Help returns the static help text. It never touches conversation state.
func (c *Controller) Help() []Reply {
	return []Reply{{Text: c.helpText()}}
}

// Start begins a new report. Any in-flight draft is discarded first.
func (c *Controller) Start(ctx context.Context, conv *Conversation) []Reply {
	if conv.Active() {
		c.discard(ctx, conv, StatusRestarted)
	}
	conv.Draft = &Draft{ID: c.newID()}
	conv.Step = StepEntry
	c.observer.ConversationStarted()
	log.Printf("report: %s started by %s/%s", conv.Draft.ID, conv.Owner.Platform, conv.Owner.UserID)
	return c.advance(ctx, conv, nil)
}

// Cancel discards the in-flight draft without persisting anything.
func (c *Controller) Cancel(ctx context.Context, conv *Conversation) []Reply {
	if !conv.Active() {
		return []Reply{{Text: msgNothingActive, RemoveKeyboard: true}}
	}
	c.discard(ctx, conv, StatusCancelled)
	conv.Step = StepCancelled
	return []Reply{{Text: msgCancelled, RemoveKeyboard: true}}
}

// Expire drops an idle conversation. It sends nothing to the user.
func (c *Controller) Expire(ctx context.Context, conv *Conversation) {
	if !conv.Active() {
		return
	}
	c.discard(ctx, conv, StatusExpired)
	conv.Step = StepNone
}

// Text handles a text message for the conversation's current step. Text
// arriving while idle or at a photo step is unhandled and returns nil.
func (c *Controller) Text(ctx context.Context, conv *Conversation, text string) []Reply {
	if !conv.Active() || conv.Step.IsPhoto() {
		return nil
	}
	d := conv.Draft

	switch conv.Step {
	case StepJourneyType:
		d.JourneyType = ParseJourneyType(text)

	case StepDriverName:
		d.DriverName = &text

	case StepPlate:
		plate := NormalizePlate(text)
		d.Plate = &plate

	case StepOdometerInitial:
		v, err := ParseOdometer(text)
		if err != nil {
			return c.reject(conv, msgOdometerHint)
		}
		d.OdometerInitial = &v

	case StepOdometerFinal:
		v, err := ParseOdometer(text)
		if err != nil {
			return c.reject(conv, msgOdometerHint)
		}
		dist, ok := ComputeDistance(*d.OdometerInitial, v)
		if !ok {
			c.observer.ValidationRejected(conv.Step)
			return []Reply{{Text: negativeDistanceText(*d.OdometerInitial, v)}}
		}
		d.OdometerFinal = &v
		d.Distance = &dist
		return c.advance(ctx, conv, []Reply{{Text: distanceText(dist)}})

	case StepComments:
		comments := NormalizeComments(text)
		d.Comments = &comments

	default:
		return nil
	}
	return c.advance(ctx, conv, nil)
}

// Photo handles a photo for the current photo step. The file is fetched to
// the photo directory and uploaded; a failed fetch or upload stores
// UploadFailedMarker and the conversation continues.
func (c *Controller) Photo(ctx context.Context, conv *Conversation, in PhotoInput) []Reply {
	if !conv.Active() || !conv.Step.IsPhoto() {
		return nil
	}
	d := conv.Draft
	kind := photoKinds[conv.Step]
	stamp := c.now().In(c.loc).Format("20060102_150405")
	// The plate is driver text: it names the Drive file but never the local path.
	name := fmt.Sprintf("%s_%s_%s.jpg", kind, deref(d.Plate), stamp)
	ref := PhotoRef{Kind: kind, Link: UploadFailedMarker}

	localPath := filepath.Join(c.photoDir, safeFileName(fmt.Sprintf("%s_%s_%s.jpg", d.ID, kind, stamp)))
	if err := c.fetch(ctx, in, localPath); err != nil {
		log.Printf("report: %s: fetch %s photo: %v", d.ID, kind, err)
	} else {
		ref.LocalPath = localPath
		link, err := c.uploader.Upload(ctx, localPath, name)
		if err != nil {
			log.Printf("report: %s: upload %s photo: %v", d.ID, kind, err)
		} else {
			ref.Link = link
		}
	}
	d.Photos = append(d.Photos, ref)
	c.observer.PhotoStored(ref.Link != UploadFailedMarker)

	status := fmt.Sprintf("✅ Foto de %s guardada.", photoLabels[kind])
	if ref.Link == UploadFailedMarker {
		status = fmt.Sprintf(msgUploadDegraded, photoLabels[kind], UploadFailedMarker)
	}
	return c.advance(ctx, conv, []Reply{{Text: status}})
}

// safeFileName keeps a single path element made of letters, digits and
// "._-"; anything else becomes "_".
func safeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		return "_"
	}
	return name
}

func (c *Controller) fetch(ctx context.Context, in PhotoInput, dest string) error {
	if in.Fetcher == nil {
		return fmt.Errorf("no file fetcher for %q", in.FileRef)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return in.Fetcher.FetchFile(ctx, in.FileRef, dest)
}

// reject keeps the conversation on its current step and re-asks.
func (c *Controller) reject(conv *Conversation, hint string) []Reply {
	c.observer.ValidationRejected(conv.Step)
	p := c.prompt(conv.Step)
	p.Text = hint + "\n\n" + p.Text
	return []Reply{p}
}

// advance moves to the next step and appends its prompt to pre. Reaching the
// end of the chain runs the completion protocol instead.
func (c *Controller) advance(ctx context.Context, conv *Conversation, pre []Reply) []Reply {
	conv.Step = c.flow.Next(conv.Step)
	if conv.Step == StepComplete {
		return append(pre, c.complete(ctx, conv))
	}
	return append(pre, c.prompt(conv.Step))
}

// complete stamps, persists and discards the draft. It always leaves the
// conversation idle at StepComplete, whatever the outcome.
func (c *Controller) complete(ctx context.Context, conv *Conversation) (reply Reply) {
	d := conv.Draft
	defer func() {
		removeFiles(d.localFiles())
		conv.Draft = nil
		conv.Step = StepComplete
	}()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("report: completion panic: %v", r)
			log.Printf("report: %s: %v", d.ID, err)
			c.notify(ctx, Outcome{ReportID: d.ID, Owner: conv.Owner, Status: StatusFailed, Step: StepComplete, Err: err})
			reply = Reply{Text: UnexpectedErrorText}
		}
	}()

	if !complete(c.flow, d) {
		panic(fmt.Sprintf("draft %s reached completion with missing fields", d.ID))
	}

	d.Timestamp = c.now()
	row := Row(c.flow, d, c.loc)

	start := time.Now()
	err := c.persister.Append(ctx, row)
	c.observer.PersistDone(time.Since(start), err)
	if err != nil {
		log.Printf("report: %s: persist: %v", d.ID, err)
		c.notify(ctx, Outcome{ReportID: d.ID, Owner: conv.Owner, Status: StatusFailed, Step: StepComplete, Row: row, Err: err})
		return Reply{Text: msgPersistFailed}
	}

	log.Printf("report: %s saved for %s", d.ID, deref(d.Plate))
	c.notify(ctx, Outcome{ReportID: d.ID, Owner: conv.Owner, Status: StatusSubmitted, Step: StepComplete, Row: row})
	return Reply{Text: c.confirmationText(d)}
}

// discard drops the draft and its cached photos without persisting.
func (c *Controller) discard(ctx context.Context, conv *Conversation, status Status) {
	d := conv.Draft
	removeFiles(d.localFiles())
	conv.Draft = nil
	log.Printf("report: %s %s at step %s", d.ID, status, conv.Step)
	c.notify(ctx, Outcome{ReportID: d.ID, Owner: conv.Owner, Status: status, Step: conv.Step})
}

func removeFiles(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Printf("report: remove cached photo %s: %v", p, err)
		}
	}
}
