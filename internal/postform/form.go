// Package postform is the submission surface shared by every posting screen.
// A form is described by field descriptors and hands the assembled payload
// to a caller-supplied callback; it never talks to the backend itself.
package postform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
)

var formLog = observability.NewComponentLogger("postform")

// DefaultSuccessDelay is how long the success message stays visible.
const DefaultSuccessDelay = 3 * time.Second

// DefaultSuccessMessage is shown after an accepted submission.
const DefaultSuccessMessage = "Posted successfully!"

// ErrBusy is returned when Submit is called while a submission is running.
var ErrBusy = errors.New("a submission is already in progress")

// Kind is the input type of a field.
type Kind string

const (
	KindText     Kind = "text"
	KindTextarea Kind = "textarea"
	KindNumber   Kind = "number"
	KindDate     Kind = "date"
	KindFile     Kind = "file"
	KindCustom   Kind = "custom"
)

// Field describes one input.
type Field struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Kind     Kind   `json:"kind"`
	Required bool   `json:"required"`
	// Multiple lets a file field carry several files.
	Multiple bool `json:"multiple,omitempty"`
	// Accept lists allowed file extensions (".pdf") or MIME prefixes ("image/").
	Accept      []string `json:"accept,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	// Render produces the view model of a custom field from its current value.
	Render func(value string) any `json:"-"`
}

// File is an uploaded file handed to the callback.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// Payload is the assembled submission. Text-like fields map to string, file
// fields to *File (single) or []File (multiple).
type Payload map[string]any

// String returns a text value, or "" when absent.
func (p Payload) String(name string) string {
	s, _ := p[name].(string)
	return s
}

// File returns a single-file value, or nil.
func (p Payload) File(name string) *File {
	f, _ := p[name].(*File)
	return f
}

// Files returns the files of a field, whatever its cardinality.
func (p Payload) Files(name string) []File {
	switch v := p[name].(type) {
	case []File:
		return v
	case *File:
		if v != nil {
			return []File{*v}
		}
	}
	return nil
}

// BeforeSubmit persists a payload. Returning false rejects the submission
// without an error message.
type BeforeSubmit func(ctx context.Context, payload Payload) (bool, error)

// Options configure a form.
type Options struct {
	Fields         []Field
	BeforeSubmit   BeforeSubmit
	OnSuccess      func(payload Payload)
	SuccessMessage string
	SuccessDelay   time.Duration
}

// Outcome is the result of one Submit.
type Outcome string

const (
	// Invalid means a required field was missing; the callback did not run.
	Invalid   Outcome = "invalid"
	Rejected  Outcome = "rejected"
	Failed    Outcome = "failed"
	Succeeded Outcome = "succeeded"
)

// State is a snapshot of what the form shows.
type State struct {
	Fields  []Field           `json:"fields"`
	Values  map[string]string `json:"values"`
	Custom  map[string]any    `json:"custom,omitempty"`
	Loading bool              `json:"loading"`
	Error   string            `json:"error,omitempty"`
	Success string            `json:"success,omitempty"`
}

// Form holds the values and status of one posting screen.
type Form struct {
	opts Options

	mu         sync.Mutex
	values     map[string]string
	loading    bool
	errMsg     string
	success    string
	successGen uint64
	timer      *time.Timer
}

// New creates a form.
func New(opts Options) *Form {
	if opts.SuccessDelay <= 0 {
		opts.SuccessDelay = DefaultSuccessDelay
	}
	if opts.SuccessMessage == "" {
		opts.SuccessMessage = DefaultSuccessMessage
	}
	return &Form{opts: opts, values: map[string]string{}}
}

// Fields returns the descriptors the form was built with.
func (f *Form) Fields() []Field { return f.opts.Fields }

// State returns a snapshot.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := make(map[string]string, len(f.values))
	for k, v := range f.values {
		values[k] = v
	}
	var custom map[string]any
	for _, field := range f.opts.Fields {
		if field.Kind == KindCustom && field.Render != nil {
			if custom == nil {
				custom = map[string]any{}
			}
			custom[field.Name] = field.Render(values[field.Name])
		}
	}
	return State{
		Fields:  f.opts.Fields,
		Values:  values,
		Custom:  custom,
		Loading: f.loading,
		Error:   f.errMsg,
		Success: f.success,
	}
}

// Submit assembles a payload from values and files, checks required fields
// and runs the callback.
//
// A false result keeps the values and shows nothing. An error keeps the
// values and shows its message. Success clears the values, shows the
// success message until the configured delay passes and calls OnSuccess.
func (f *Form) Submit(ctx context.Context, values map[string]string, files map[string][]File) (Outcome, error) {
	f.mu.Lock()
	if f.loading {
		f.mu.Unlock()
		return Failed, ErrBusy
	}
	f.values = textValues(f.opts.Fields, values)
	f.errMsg = ""
	f.dismissSuccessLocked()
	payload, err := f.assemble(values, files)
	if err != nil {
		f.errMsg = err.Error()
		f.mu.Unlock()
		return Invalid, err
	}
	f.loading = true
	f.mu.Unlock()

	ok, err := f.run(ctx, payload)

	f.mu.Lock()
	f.loading = false
	switch {
	case err != nil:
		f.errMsg = errorText(err)
		f.mu.Unlock()
		formLog.Warn(ctx, "post submission failed", map[string]any{"error": err.Error()})
		return Failed, err
	case !ok:
		f.mu.Unlock()
		return Rejected, nil
	}
	f.values = map[string]string{}
	f.showSuccessLocked()
	f.mu.Unlock()

	if f.opts.OnSuccess != nil {
		f.opts.OnSuccess(payload)
	}
	return Succeeded, nil
}

func (f *Form) run(ctx context.Context, payload Payload) (ok bool, err error) {
	if f.opts.BeforeSubmit == nil {
		return true, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("submission failed: %v", r)
		}
	}()
	return f.opts.BeforeSubmit(ctx, payload)
}

func (f *Form) showSuccessLocked() {
	f.successGen++
	gen := f.successGen
	f.success = f.opts.SuccessMessage
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.opts.SuccessDelay, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.successGen == gen {
			f.success = ""
		}
	})
}

// dismissSuccessLocked hides the success message of an earlier submission.
func (f *Form) dismissSuccessLocked() {
	f.successGen++
	f.success = ""
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

// Close stops the success timer.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer != nil {
		f.timer.Stop()
	}
}

func (f *Form) assemble(values map[string]string, files map[string][]File) (Payload, error) {
	payload := Payload{}
	for _, field := range f.opts.Fields {
		if field.Kind == KindFile {
			got := files[field.Name]
			for _, file := range got {
				if !accepts(field.Accept, file) {
					return nil, fmt.Errorf("%s: %s is not an accepted file type", field.Label, file.Name)
				}
			}
			if len(got) == 0 {
				if field.Required {
					return nil, fmt.Errorf("%s is required", field.Label)
				}
				continue
			}
			if field.Multiple {
				payload[field.Name] = got
			} else {
				first := got[0]
				payload[field.Name] = &first
			}
			continue
		}
		v := strings.TrimSpace(values[field.Name])
		if v == "" && field.Required {
			return nil, fmt.Errorf("%s is required", field.Label)
		}
		payload[field.Name] = v
	}
	return payload, nil
}

// errorText prefers the user-facing message of an AppError.
func errorText(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func textValues(fields []Field, values map[string]string) map[string]string {
	out := map[string]string{}
	for _, field := range fields {
		if field.Kind == KindFile {
			continue
		}
		if v, ok := values[field.Name]; ok {
			out[field.Name] = v
		}
	}
	return out
}

func accepts(accept []string, file File) bool {
	if len(accept) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(file.Name))
	ct := strings.ToLower(file.ContentType)
	for _, a := range accept {
		a = strings.ToLower(a)
		switch {
		case strings.HasPrefix(a, "."):
			if ext == a {
				return true
			}
		case strings.HasSuffix(a, "/"):
			if strings.HasPrefix(ct, a) {
				return true
			}
		case ct == a:
			return true
		}
	}
	return false
}
