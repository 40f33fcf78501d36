package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockPersister struct {
	mu    sync.Mutex
	rows  [][]string
	err   error
	panic bool
}

func (m *mockPersister) Append(_ context.Context, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panic {
		panic("sheet exploded")
	}
	m.rows = append(m.rows, row)
	return m.err
}

func (m *mockPersister) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type mockUploader struct {
	mu       sync.Mutex
	uploaded []string
	err      error
}

func (m *mockUploader) Upload(_ context.Context, localPath, displayName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	m.uploaded = append(m.uploaded, displayName)
	return "https://drive.example/" + displayName, nil
}

type mockFetcher struct {
	err error
}

func (m *mockFetcher) FetchFile(_ context.Context, fileRef, destPath string) error {
	if m.err != nil {
		return m.err
	}
	return os.WriteFile(destPath, []byte("jpeg:"+fileRef), 0o644)
}

type pathRecordingFetcher struct {
	dests []string
}

func (m *pathRecordingFetcher) FetchFile(_ context.Context, fileRef, destPath string) error {
	m.dests = append(m.dests, destPath)
	return os.WriteFile(destPath, []byte("jpeg:"+fileRef), 0o644)
}

type recordingSink struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (s *recordingSink) RecordOutcome(_ context.Context, o Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
	return nil
}

func (s *recordingSink) last() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcomes[len(s.outcomes)-1]
}

var testNow = time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC)

type testRig struct {
	ctrl      *Controller
	persister *mockPersister
	uploader  *mockUploader
	sink      *recordingSink
	photoDir  string
}

func newTestRig(t *testing.T, flow Flow) *testRig {
	t.Helper()
	rig := &testRig{
		persister: &mockPersister{},
		uploader:  &mockUploader{},
		sink:      &recordingSink{},
		photoDir:  t.TempDir(),
	}
	seq := 0
	ctrl, err := NewController(ControllerOpts{
		Flow:      flow,
		Persister: rig.persister,
		Uploader:  rig.uploader,
		PhotoDir:  rig.photoDir,
		Location:  time.UTC,
		Now:       func() time.Time { return testNow },
		NewID: func() string {
			seq++
			return fmt.Sprintf("rep-%d", seq)
		},
		Sinks: []OutcomeSink{rig.sink},
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	rig.ctrl = ctrl
	return rig
}

func (r *testRig) texts(conv *Conversation, inputs ...string) []Reply {
	var last []Reply
	for _, in := range inputs {
		last = r.ctrl.Text(context.Background(), conv, in)
	}
	return last
}

func joinReplies(replies []Reply) string {
	var parts []string
	for _, r := range replies {
		parts = append(parts, r.Text)
	}
	return strings.Join(parts, "\n---\n")
}

// ---------------------------------------------------------------------------
// Constructor
// ---------------------------------------------------------------------------

func TestNewController_NilPersister(t *testing.T) {
	_, err := NewController(ControllerOpts{})
	if err == nil || !strings.Contains(err.Error(), "persister is required") {
		t.Fatalf("err = %v, want persister is required", err)
	}
}

func TestNewController_PhotosRequireUploader(t *testing.T) {
	_, err := NewController(ControllerOpts{
		Flow:      Flow{RequirePhotos: true},
		Persister: &mockPersister{},
	})
	if err == nil || !strings.Contains(err.Error(), "uploader is required") {
		t.Fatalf("err = %v, want uploader is required", err)
	}
}

// ---------------------------------------------------------------------------
// Example scenarios
// ---------------------------------------------------------------------------

func TestController_HappyPathWithDistance(t *testing.T) {
	rig := newTestRig(t, Flow{ComputeDistance: true})
	conv := &Conversation{Owner: Owner{Platform: "telegram", UserID: "42"}}

	rig.ctrl.Start(context.Background(), conv)
	replies := rig.texts(conv, "Juan Perez", "abc123", "1000", "1150.5", "sin comentarios")

	if rig.persister.calls() != 1 {
		t.Fatalf("append calls = %d, want 1", rig.persister.calls())
	}
	want := []string{"2026-03-14 08:30:00", "Juan Perez", "ABC123", "1000", "1150.5", "150.5", "sin comentarios", "rep-1"}
	if got := rig.persister.rows[0]; !reflect.DeepEqual(got, want) {
		t.Errorf("row = %q\nwant  %q", got, want)
	}
	text := joinReplies(replies)
	if !strings.Contains(text, "completado exitosamente") {
		t.Errorf("missing confirmation: %q", text)
	}
	if !strings.Contains(text, "Distancia recorrida: 150.5 km") {
		t.Errorf("confirmation missing distance: %q", text)
	}
	if conv.Step != StepComplete || conv.Draft != nil {
		t.Errorf("after completion step=%s draft=%v, want complete/nil", conv.Step, conv.Draft)
	}
	if o := rig.sink.last(); o.Status != StatusSubmitted || o.ReportID != "rep-1" {
		t.Errorf("outcome = %+v, want submitted rep-1", o)
	}
}

func TestController_NegativeDistanceStaysOnFinal(t *testing.T) {
	rig := newTestRig(t, Flow{ComputeDistance: true})
	conv := &Conversation{}

	rig.ctrl.Start(context.Background(), conv)
	replies := rig.texts(conv, "Juan Perez", "ABC123", "1000", "900")

	if conv.Step != StepOdometerFinal {
		t.Fatalf("step = %s, want odometer_final", conv.Step)
	}
	if got := conv.Draft.OdometerInitial.String(); got != "1000" {
		t.Errorf("initial = %s, want 1000", got)
	}
	if conv.Draft.OdometerFinal != nil || conv.Draft.Distance != nil {
		t.Error("final/distance should not be stored after rejection")
	}
	text := joinReplies(replies)
	if !strings.Contains(text, "900") || !strings.Contains(text, "1000") {
		t.Errorf("rejection should show both values: %q", text)
	}

	// A corrected value is then accepted.
	replies = rig.texts(conv, "1000")
	if conv.Step != StepComments {
		t.Fatalf("step = %s, want comments", conv.Step)
	}
	if len(replies) != 2 || !strings.Contains(replies[0].Text, "0 km") {
		t.Errorf("expected distance summary then prompt, got %q", joinReplies(replies))
	}
}

func TestController_NonNumericOdometerRetries(t *testing.T) {
	rig := newTestRig(t, Flow{ComputeDistance: true})
	conv := &Conversation{}

	rig.ctrl.Start(context.Background(), conv)
	replies := rig.texts(conv, "Juan Perez", "ABC123", "abc")

	if conv.Step != StepOdometerInitial {
		t.Fatalf("step = %s, want odometer_initial", conv.Step)
	}
	if conv.Draft.OdometerInitial != nil {
		t.Error("odometer should not be stored")
	}
	if len(replies) != 1 || !strings.Contains(replies[0].Text, "solo números") ||
		!strings.Contains(replies[0].Text, "kilometraje INICIAL") {
		t.Errorf("expected hint plus original prompt, got %q", joinReplies(replies))
	}
}

func TestController_CancelAfterName(t *testing.T) {
	rig := newTestRig(t, Flow{ComputeDistance: true})
	conv := &Conversation{}

	rig.ctrl.Start(context.Background(), conv)
	rig.texts(conv, "Juan Perez")
	replies := rig.ctrl.Cancel(context.Background(), conv)

	if rig.persister.calls() != 0 {
		t.Fatalf("append called %d times on cancel", rig.persister.calls())
	}
	if conv.Draft != nil || conv.Step != StepCancelled {
		t.Errorf("step=%s draft=%v, want cancelled/nil", conv.Step, conv.Draft)
	}
	if len(replies) != 1 || !strings.Contains(replies[0].Text, "cancelado") || !replies[0].RemoveKeyboard {
		t.Errorf("unexpected cancel reply: %+v", replies)
	}
	o := rig.sink.last()
	if o.Status != StatusCancelled || o.Row != nil || o.Step != StepPlate {
		t.Errorf("outcome = %+v, want cancelled at plate without row", o)
	}

	rig.ctrl.Start(context.Background(), conv)
	if conv.Draft.DriverName != nil {
		t.Error("new draft leaked driver name from cancelled one")
	}
	if conv.Draft.ID != "rep-2" {
		t.Errorf("new draft id = %s, want rep-2", conv.Draft.ID)
	}
}

func TestController_PersistFailure(t *testing.T) {
	rig := newTestRig(t, Flow{ComputeDistance: true})
	rig.persister.err = fmt.Errorf("quota exceeded")
	conv := &Conversation{}

	rig.ctrl.Start(context.Background(), conv)
	replies := rig.texts(conv, "Juan Perez", "ABC123", "1000", "1100", "ok")

	if rig.persister.calls() != 1 {
		t.Fatalf("append calls = %d, want 1", rig.persister.calls())
	}
	last := replies[len(replies)-1]
	if last.Text != msgPersistFailed {
		t.Errorf("reply = %q, want failure notice", last.Text)
	}
	if conv.Draft != nil || conv.Step != StepComplete {
		t.Errorf("draft should be discarded after failure")
	}
	if o := rig.sink.last(); o.Status != StatusFailed || o.Err == nil || o.Row == nil {
		t.Errorf("outcome = %+v, want failed with row and err", o)
	}
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

// filledFields lists the draft fields that are set, in declaration order.
func filledFields(d *Draft) []string {
	var f []string
	if d.JourneyType != "" {
		f = append(f, "journey")
	}
	if d.DriverName != nil {
		f = append(f, "name")
	}
	if d.Plate != nil {
		f = append(f, "plate")
	}
	if d.OdometerInitial != nil {
		f = append(f, "odo_initial")
	}
	if d.OdometerFinal != nil {
		f = append(f, "odo_final")
	}
	for _, p := range d.Photos {
		f = append(f, "photo_"+string(p.Kind))
	}
	if d.Comments != nil {
		f = append(f, "comments")
	}
	return f
}

func TestController_FieldsFilledInStepOrder(t *testing.T) {
	rig := newTestRig(t, Flow{JourneyType: true, ComputeDistance: true, RequirePhotos: true})
	conv := &Conversation{}
	ctx := context.Background()
	fetcher := &mockFetcher{}

	rig.ctrl.Start(ctx, conv)
	order := []string{"journey", "name", "plate", "odo_initial", "odo_final", "photo_placa", "photo_km", "photo_estado"}
	inputs := []string{"🟢 Inicio de Jornada", "Ana", "xyz987", "500", "620"}

	for i, in := range inputs {
		rig.ctrl.Text(ctx, conv, in)
		if got := filledFields(conv.Draft); !reflect.DeepEqual(got, order[:i+1]) {
			t.Fatalf("after %q fields = %v, want %v", in, got, order[:i+1])
		}
	}
	for i := 0; i < 3; i++ {
		rig.ctrl.Photo(ctx, conv, PhotoInput{FileRef: fmt.Sprintf("file-%d", i), Fetcher: fetcher})
		want := order[:len(inputs)+i+1]
		if got := filledFields(conv.Draft); !reflect.DeepEqual(got, want) {
			t.Fatalf("after photo %d fields = %v, want %v", i, got, want)
		}
	}
	if conv.Step != StepComments {
		t.Fatalf("step = %s, want comments", conv.Step)
	}
	rig.ctrl.Text(ctx, conv, "todo bien")

	if rig.persister.calls() != 1 {
		t.Fatalf("append calls = %d, want 1", rig.persister.calls())
	}
	row := rig.persister.rows[0]
	if len(row) != len(Header(rig.ctrl.Flow())) {
		t.Fatalf("row len %d != header len %d", len(row), len(Header(rig.ctrl.Flow())))
	}
	if row[1] != string(JourneyStart) {
		t.Errorf("journey column = %q", row[1])
	}
	if !strings.HasPrefix(row[7], "https://drive.example/placa_XYZ987_") {
		t.Errorf("plate photo link = %q", row[7])
	}
}

func TestController_OdometerRejectionLeavesDraftUnchanged(t *testing.T) {
	rig := newTestRig(t, Flow{ComputeDistance: true})
	conv := &Conversation{}
	ctx := context.Background()

	rig.ctrl.Start(ctx, conv)
	rig.texts(conv, "Ana", "P1", "10")
	before := filledFields(conv.Draft)

	for _, bad := range []string{"diez", "", "1.2.3", "km"} {
		rig.ctrl.Text(ctx, conv, bad)
		if conv.Step != StepOdometerFinal {
			t.Fatalf("input %q moved step to %s", bad, conv.Step)
		}
		if got := filledFields(conv.Draft); !reflect.DeepEqual(got, before) {
			t.Fatalf("input %q changed fields to %v", bad, got)
		}
	}
}

func TestController_DistanceAlwaysFinalMinusInitial(t *testing.T) {
	pairs := []struct{ initial, final, want string }{
		{"0", "0", "0"},
		{"1,000", "1,250.75", "250.75"},
		{"99999.9", "100000", "0.1"},
		{"1000.3", "1000.5", "0.2"},
	}
	for _, p := range pairs {
		rig := newTestRig(t, Flow{ComputeDistance: true})
		conv := &Conversation{}
		rig.ctrl.Start(context.Background(), conv)
		rig.texts(conv, "Ana", "P1", p.initial, p.final)
		if conv.Step != StepComments {
			t.Fatalf("%s->%s: step = %s, want comments", p.initial, p.final, conv.Step)
		}
		if got := conv.Draft.Distance.String(); got != p.want {
			t.Errorf("%s->%s: distance = %s, want %s", p.initial, p.final, got, p.want)
		}
		if conv.Draft.Distance.IsNegative() {
			t.Errorf("negative distance accepted")
		}
	}
}

func TestController_CancelFromEveryStepNeverPersists(t *testing.T) {
	flow := Flow{JourneyType: true, ComputeDistance: true, RequirePhotos: true}
	inputs := []string{"Fin", "Ana", "P1", "10", "20"}
	ctx := context.Background()

	for n := 0; n <= len(inputs)+3; n++ {
		rig := newTestRig(t, flow)
		conv := &Conversation{}
		rig.ctrl.Start(ctx, conv)
		for i := 0; i < n; i++ {
			if i < len(inputs) {
				rig.ctrl.Text(ctx, conv, inputs[i])
			} else {
				rig.ctrl.Photo(ctx, conv, PhotoInput{FileRef: "f", Fetcher: &mockFetcher{}})
			}
		}
		rig.ctrl.Cancel(ctx, conv)
		if rig.persister.calls() != 0 {
			t.Fatalf("cancel after %d inputs persisted", n)
		}
		if conv.Draft != nil {
			t.Fatalf("cancel after %d inputs kept draft", n)
		}
		entries, _ := os.ReadDir(rig.photoDir)
		if len(entries) != 0 {
			t.Errorf("cancel after %d inputs left %d cached photos", n, len(entries))
		}
	}
}

func TestController_RestartReplacesDraft(t *testing.T) {
	rig := newTestRig(t, Flow{ComputeDistance: true})
	conv := &Conversation{}
	ctx := context.Background()

	rig.ctrl.Start(ctx, conv)
	rig.texts(conv, "Ana", "P1", "10")
	replies := rig.ctrl.Start(ctx, conv)

	if conv.Step != StepDriverName {
		t.Fatalf("step = %s, want driver_name", conv.Step)
	}
	if got := filledFields(conv.Draft); len(got) != 0 {
		t.Errorf("restarted draft has fields %v", got)
	}
	if len(replies) != 1 || !strings.Contains(replies[0].Text, "nombre completo") {
		t.Errorf("restart reply = %q", joinReplies(replies))
	}
	if o := rig.sink.last(); o.Status != StatusRestarted || o.ReportID != "rep-1" {
		t.Errorf("outcome = %+v, want restarted rep-1", o)
	}
	if rig.persister.calls() != 0 {
		t.Error("restart must not persist")
	}
}

func TestController_PersistAtMostOnce(t *testing.T) {
	rig := newTestRig(t, Flow{})
	conv := &Conversation{}
	ctx := context.Background()

	rig.ctrl.Start(ctx, conv)
	rig.texts(conv, "Ana", "P1", "10", "-")
	if rig.persister.calls() != 1 {
		t.Fatalf("append calls = %d, want 1", rig.persister.calls())
	}
	if got := rig.ctrl.Text(ctx, conv, "otra cosa"); got != nil {
		t.Errorf("text after completion should be unhandled, got %q", joinReplies(got))
	}
	if rig.persister.calls() != 1 {
		t.Fatalf("append calls = %d after extra text, want 1", rig.persister.calls())
	}
}

// ---------------------------------------------------------------------------
// Step details
// ---------------------------------------------------------------------------

func TestController_StartWithJourneyOffersKeyboard(t *testing.T) {
	rig := newTestRig(t, Flow{JourneyType: true})
	conv := &Conversation{}

	replies := rig.ctrl.Start(context.Background(), conv)
	if conv.Step != StepJourneyType {
		t.Fatalf("step = %s, want journey_type", conv.Step)
	}
	if len(replies) != 1 || len(replies[0].Keyboard) != 2 {
		t.Fatalf("expected keyboard with 2 options, got %+v", replies)
	}

	replies = rig.ctrl.Text(context.Background(), conv, replies[0].Keyboard[1])
	if conv.Draft.JourneyType != JourneyEnd {
		t.Errorf("journey = %q, want end", conv.Draft.JourneyType)
	}
	if !replies[0].RemoveKeyboard {
		t.Error("name prompt should remove the journey keyboard")
	}
}

func TestController_FreeTextStoredVerbatim(t *testing.T) {
	rig := newTestRig(t, Flow{})
	conv := &Conversation{}
	rig.ctrl.Start(context.Background(), conv)

	rig.ctrl.Text(context.Background(), conv, "   ")
	if conv.Step != StepPlate || conv.Draft.DriverName == nil || *conv.Draft.DriverName != "   " {
		t.Fatalf("name not stored verbatim: step=%s", conv.Step)
	}
	rig.texts(conv, " abc 1 ", "10", "  sin novedad ")

	row := rig.persister.rows[0]
	if got := row[2]; got != "ABC 1" {
		t.Errorf("plate column = %q, want upper-cased and trimmed", got)
	}
	if got := row[len(row)-2]; got != "  sin novedad " {
		t.Errorf("comments column = %q, want verbatim", got)
	}
}

func TestController_NoCommentSentinel(t *testing.T) {
	rig := newTestRig(t, Flow{})
	conv := &Conversation{}
	rig.ctrl.Start(context.Background(), conv)
	rig.texts(conv, "Ana", "p1", "10", NoCommentSentinel)

	row := rig.persister.rows[0]
	if got := row[len(row)-2]; got != "" {
		t.Errorf("comments column = %q, want empty", got)
	}
}

func TestController_WrongEventKindIsUnhandled(t *testing.T) {
	rig := newTestRig(t, Flow{RequirePhotos: true})
	conv := &Conversation{}
	ctx := context.Background()
	rig.ctrl.Start(ctx, conv)

	if got := rig.ctrl.Photo(ctx, conv, PhotoInput{FileRef: "f", Fetcher: &mockFetcher{}}); got != nil {
		t.Errorf("photo at text step should be unhandled, got %q", joinReplies(got))
	}
	rig.texts(conv, "Ana", "P1", "10")
	if conv.Step != StepPhotoPlate {
		t.Fatalf("step = %s, want photo_plate", conv.Step)
	}
	if got := rig.ctrl.Text(ctx, conv, "aquí va"); got != nil {
		t.Errorf("text at photo step should be unhandled, got %q", joinReplies(got))
	}
	if conv.Step != StepPhotoPlate {
		t.Errorf("step moved to %s", conv.Step)
	}
}

func TestController_IdleTextIsUnhandled(t *testing.T) {
	rig := newTestRig(t, Flow{})
	if got := rig.ctrl.Text(context.Background(), &Conversation{}, "hola"); got != nil {
		t.Errorf("idle text should be unhandled, got %q", joinReplies(got))
	}
}

func TestController_UploadFailureStoresMarker(t *testing.T) {
	rig := newTestRig(t, Flow{RequirePhotos: true})
	rig.uploader.err = fmt.Errorf("drive down")
	conv := &Conversation{}
	ctx := context.Background()

	rig.ctrl.Start(ctx, conv)
	rig.texts(conv, "Ana", "P1", "10")
	replies := rig.ctrl.Photo(ctx, conv, PhotoInput{FileRef: "f1", Fetcher: &mockFetcher{}})

	if conv.Step != StepPhotoOdometer {
		t.Fatalf("step = %s, want photo_odometer", conv.Step)
	}
	ref, ok := conv.Draft.Photo(PhotoPlate)
	if !ok || ref.Link != UploadFailedMarker {
		t.Errorf("plate photo = %+v, want failure marker", ref)
	}
	if !strings.Contains(joinReplies(replies), UploadFailedMarker) {
		t.Errorf("user should be told about the failed upload: %q", joinReplies(replies))
	}
}

func TestController_FetchFailureStoresMarker(t *testing.T) {
	rig := newTestRig(t, Flow{RequirePhotos: true})
	conv := &Conversation{}
	ctx := context.Background()

	rig.ctrl.Start(ctx, conv)
	rig.texts(conv, "Ana", "P1", "10")
	rig.ctrl.Photo(ctx, conv, PhotoInput{FileRef: "f1", Fetcher: &mockFetcher{err: fmt.Errorf("404")}})

	ref, _ := conv.Draft.Photo(PhotoPlate)
	if ref.Link != UploadFailedMarker || ref.LocalPath != "" {
		t.Errorf("plate photo = %+v, want marker without local path", ref)
	}
	if len(rig.uploader.uploaded) != 0 {
		t.Error("uploader should not be called when fetch fails")
	}
}

func TestController_PhotoPathStaysInPhotoDir(t *testing.T) {
	rig := newTestRig(t, Flow{RequirePhotos: true})
	conv := &Conversation{}
	ctx := context.Background()
	fetcher := &pathRecordingFetcher{}

	rig.ctrl.Start(ctx, conv)
	rig.texts(conv, "Ana", "/../../../../../../ESCAPED/X", "10")
	rig.ctrl.Photo(ctx, conv, PhotoInput{FileRef: "f1", Fetcher: fetcher})

	if len(fetcher.dests) != 1 {
		t.Fatalf("fetch calls = %d, want 1", len(fetcher.dests))
	}
	dest := fetcher.dests[0]
	if filepath.Dir(dest) != rig.photoDir {
		t.Errorf("photo cached at %q, want directly under %q", dest, rig.photoDir)
	}
	if strings.Contains(filepath.Base(dest), "ESCAPED") {
		t.Errorf("local file name %q carries driver text", dest)
	}
	if len(rig.uploader.uploaded) != 1 || !strings.Contains(rig.uploader.uploaded[0], "ESCAPED") {
		t.Errorf("drive name should still carry the plate: %v", rig.uploader.uploaded)
	}
}

func TestSafeFileName(t *testing.T) {
	tests := map[string]string{
		"rep-1_placa_20260314.jpg": "rep-1_placa_20260314.jpg",
		"../../etc/passwd":         "____etc_passwd",
		`a\b/c`:                   "a__b_c",
		"..":                       "_",
		"":                         "_",
	}
	for in, want := range tests {
		if got := safeFileName(in); got != want {
			t.Errorf("safeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestController_CompletionRemovesCachedPhotos(t *testing.T) {
	rig := newTestRig(t, Flow{RequirePhotos: true})
	rig.persister.err = fmt.Errorf("sheet locked")
	conv := &Conversation{}
	ctx := context.Background()

	rig.ctrl.Start(ctx, conv)
	rig.texts(conv, "Ana", "P1", "10")
	for i := 0; i < 3; i++ {
		rig.ctrl.Photo(ctx, conv, PhotoInput{FileRef: fmt.Sprintf("f%d", i), Fetcher: &mockFetcher{}})
	}
	entries, _ := os.ReadDir(rig.photoDir)
	if len(entries) == 0 {
		t.Fatal("expected cached photos before completion")
	}
	rig.texts(conv, "-")

	entries, _ = os.ReadDir(rig.photoDir)
	if len(entries) != 0 {
		t.Errorf("%d cached photos left after failed completion", len(entries))
	}
}

func TestController_PanicDuringCompletionIsRecovered(t *testing.T) {
	rig := newTestRig(t, Flow{})
	rig.persister.panic = true
	conv := &Conversation{}

	rig.ctrl.Start(context.Background(), conv)
	replies := rig.texts(conv, "Ana", "P1", "10", "-")

	if last := replies[len(replies)-1]; last.Text != UnexpectedErrorText {
		t.Errorf("reply = %q, want generic error", last.Text)
	}
	if conv.Draft != nil || conv.Step != StepComplete {
		t.Error("draft should be discarded after panic")
	}
	if o := rig.sink.last(); o.Status != StatusFailed {
		t.Errorf("outcome = %+v, want failed", o)
	}
}

func TestController_HelpDoesNotTouchState(t *testing.T) {
	rig := newTestRig(t, Flow{RequirePhotos: true})
	conv := &Conversation{}
	rig.ctrl.Start(context.Background(), conv)
	rig.texts(conv, "Ana")

	replies := rig.ctrl.Help()
	if conv.Step != StepPlate {
		t.Errorf("help moved step to %s", conv.Step)
	}
	if !strings.Contains(replies[0].Text, "/cancelar") || !strings.Contains(replies[0].Text, "3 fotos") {
		t.Errorf("help text = %q", replies[0].Text)
	}
}

func TestController_ExpireDiscardsSilently(t *testing.T) {
	rig := newTestRig(t, Flow{})
	conv := &Conversation{}
	rig.ctrl.Start(context.Background(), conv)
	rig.texts(conv, "Ana")

	rig.ctrl.Expire(context.Background(), conv)
	if conv.Active() {
		t.Fatal("conversation still active after expire")
	}
	if o := rig.sink.last(); o.Status != StatusExpired || o.Row != nil {
		t.Errorf("outcome = %+v, want expired without row", o)
	}
}

func TestController_CancelWithoutConversation(t *testing.T) {
	rig := newTestRig(t, Flow{})
	replies := rig.ctrl.Cancel(context.Background(), &Conversation{})
	if len(replies) != 1 || replies[0].Text != msgNothingActive {
		t.Errorf("reply = %+v", replies)
	}
	if len(rig.sink.outcomes) != 0 {
		t.Error("no outcome expected when nothing was active")
	}
}
