package postform

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textFile(name, contentType, body string) File {
	return File{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(body)),
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(body)), nil },
	}
}

var eventFields = []Field{
	{Name: "title", Label: "Title", Kind: KindText, Required: true},
	{Name: "description", Label: "Description", Kind: KindTextarea},
	{Name: "image", Label: "Image", Kind: KindFile, Accept: []string{"image/"}},
}

func TestSubmit_RejectedKeepsValuesWithoutSuccess(t *testing.T) {
	var accept atomic.Bool
	accept.Store(true)
	f := New(Options{
		Fields:       eventFields,
		SuccessDelay: time.Hour,
		BeforeSubmit: func(context.Context, Payload) (bool, error) { return accept.Load(), nil },
	})
	t.Cleanup(f.Close)

	outcome, err := f.Submit(context.Background(), map[string]string{"title": "Career fair"}, nil)
	require.NoError(t, err)
	require.Equal(t, Succeeded, outcome)
	require.Equal(t, DefaultSuccessMessage, f.State().Success)

	accept.Store(false)
	outcome, err = f.Submit(context.Background(), map[string]string{"title": "Hackathon"}, nil)
	require.NoError(t, err)
	assert.Equal(t, Rejected, outcome)

	st := f.State()
	assert.Equal(t, "Hackathon", st.Values["title"])
	assert.Empty(t, st.Success)
	assert.Empty(t, st.Error)
	assert.False(t, st.Loading)
}

func TestSubmit_InvalidAfterSuccessShowsOnlyTheError(t *testing.T) {
	f := New(Options{Fields: eventFields, SuccessDelay: time.Hour})
	t.Cleanup(f.Close)

	outcome, err := f.Submit(context.Background(), map[string]string{"title": "Career fair"}, nil)
	require.NoError(t, err)
	require.Equal(t, Succeeded, outcome)

	outcome, err = f.Submit(context.Background(), map[string]string{"description": "no title"}, nil)
	require.Error(t, err)
	assert.Equal(t, Invalid, outcome)

	st := f.State()
	assert.Equal(t, "Title is required", st.Error)
	assert.Empty(t, st.Success)
}

func TestSubmit_ErrorKeepsValuesAndShowsMessage(t *testing.T) {
	f := New(Options{
		Fields: eventFields,
		BeforeSubmit: func(context.Context, Payload) (bool, error) {
			return false, errors.New("upload failed")
		},
	})

	outcome, err := f.Submit(context.Background(), map[string]string{"title": "Hackathon", "description": "24h"}, nil)
	assert.Error(t, err)
	assert.Equal(t, Failed, outcome)

	st := f.State()
	assert.Equal(t, "upload failed", st.Error)
	assert.Equal(t, map[string]string{"title": "Hackathon", "description": "24h"}, st.Values)
	assert.False(t, st.Loading)
}

func TestSubmit_PanicIsReportedAsError(t *testing.T) {
	f := New(Options{
		Fields:       eventFields,
		BeforeSubmit: func(context.Context, Payload) (bool, error) { panic("boom") },
	})
	outcome, err := f.Submit(context.Background(), map[string]string{"title": "x"}, nil)
	assert.Equal(t, Failed, outcome)
	assert.ErrorContains(t, err, "boom")
}

func TestSubmit_SuccessClearsValuesAndMessageExpires(t *testing.T) {
	var got Payload
	var successCalls atomic.Int32
	f := New(Options{
		Fields: eventFields,
		BeforeSubmit: func(_ context.Context, p Payload) (bool, error) {
			got = p
			return true, nil
		},
		OnSuccess:    func(Payload) { successCalls.Add(1) },
		SuccessDelay: 30 * time.Millisecond,
	})
	t.Cleanup(f.Close)

	img := textFile("poster.png", "image/png", "png")
	outcome, err := f.Submit(context.Background(),
		map[string]string{"title": "  Hackathon  "},
		map[string][]File{"image": {img}})
	require.NoError(t, err)
	assert.Equal(t, Succeeded, outcome)

	assert.Equal(t, "Hackathon", got.String("title"))
	require.NotNil(t, got.File("image"))
	assert.Equal(t, "poster.png", got.File("image").Name)
	assert.EqualValues(t, 1, successCalls.Load())

	st := f.State()
	assert.Empty(t, st.Values)
	assert.Equal(t, DefaultSuccessMessage, st.Success)

	assert.Eventually(t, func() bool { return f.State().Success == "" }, time.Second, 5*time.Millisecond)
}

func TestSubmit_RequiredFieldBlocksCallback(t *testing.T) {
	called := false
	f := New(Options{
		Fields: []Field{
			{Name: "title", Label: "Title", Kind: KindText, Required: true},
			{Name: "file", Label: "File", Kind: KindFile, Required: true},
		},
		BeforeSubmit: func(context.Context, Payload) (bool, error) { called = true; return true, nil },
	})

	outcome, err := f.Submit(context.Background(), map[string]string{"title": "   "}, nil)
	assert.Equal(t, Invalid, outcome)
	assert.EqualError(t, err, "Title is required")
	assert.False(t, called)

	outcome, err = f.Submit(context.Background(), map[string]string{"title": "Notes"}, nil)
	assert.Equal(t, Invalid, outcome)
	assert.EqualError(t, err, "File is required")
	assert.False(t, called)
	assert.Equal(t, "Notes", f.State().Values["title"])
}

func TestSubmit_MultipleFilesAndAccept(t *testing.T) {
	var got Payload
	f := New(Options{
		Fields: []Field{
			{Name: "images", Label: "Images", Kind: KindFile, Multiple: true, Accept: []string{"image/"}},
			{Name: "doc", Label: "Document", Kind: KindFile, Accept: []string{".pdf", ".docx"}},
		},
		BeforeSubmit: func(_ context.Context, p Payload) (bool, error) { got = p; return true, nil },
	})
	t.Cleanup(f.Close)

	_, err := f.Submit(context.Background(), nil, map[string][]File{
		"doc": {textFile("virus.exe", "application/octet-stream", "MZ")},
	})
	assert.ErrorContains(t, err, "not an accepted file type")

	outcome, err := f.Submit(context.Background(), nil, map[string][]File{
		"images": {textFile("a.jpg", "image/jpeg", "1"), textFile("b.webp", "image/webp", "2")},
		"doc":    {textFile("Lecture.PDF", "application/pdf", "%PDF")},
	})
	require.NoError(t, err)
	assert.Equal(t, Succeeded, outcome)
	assert.Len(t, got.Files("images"), 2)
	assert.Len(t, got.Files("doc"), 1)
	assert.Nil(t, got.File("images"))
}

func TestSubmit_BusyWhileLoading(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	f := New(Options{
		Fields: eventFields,
		BeforeSubmit: func(context.Context, Payload) (bool, error) {
			close(entered)
			<-release
			return false, nil
		},
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.Submit(context.Background(), map[string]string{"title": "a"}, nil)
	}()
	<-entered
	assert.True(t, f.State().Loading)

	_, err := f.Submit(context.Background(), map[string]string{"title": "b"}, nil)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	<-done
	assert.False(t, f.State().Loading)
}

func TestState_RendersCustomFields(t *testing.T) {
	f := New(Options{Fields: []Field{
		{Name: "anonymous", Label: "Post anonymously", Kind: KindCustom, Render: func(v string) any {
			return map[string]bool{"checked": v != "false"}
		}},
	}})
	assert.Equal(t, map[string]bool{"checked": true}, f.State().Custom["anonymous"])
}

func TestSubmit_AppErrorShowsUserMessage(t *testing.T) {
	f := New(Options{
		Fields: eventFields,
		BeforeSubmit: func(context.Context, Payload) (bool, error) {
			return false, models.NewValidationError("Price must be a number")
		},
	})
	_, err := f.Submit(context.Background(), map[string]string{"title": "Bike"}, nil)
	assert.Error(t, err)
	assert.Equal(t, "Price must be a number", f.State().Error)
}
