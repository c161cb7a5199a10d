package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/raine/fittingap/internal/camera"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jpegMagic = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

type fakeStream struct {
	still  camera.Still
	err    error
	closed int
}

func (s *fakeStream) Capture() (camera.Still, error) { return s.still, s.err }

func (s *fakeStream) Close() error {
	s.closed++
	return nil
}

type fakeDevice struct {
	stream *fakeStream
	err    error
	opens  int
}

func (d *fakeDevice) Name() string { return "fake" }

func (d *fakeDevice) Open(ctx context.Context) (camera.Stream, error) {
	d.opens++
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

func newTestController(t *testing.T) (*Controller, *TempPreviewStore) {
	store, err := NewTempPreviewStore(t.TempDir())
	require.NoError(t, err)
	return NewController(store), store
}

func newFrameStream() *fakeStream {
	return &fakeStream{still: camera.Still{Width: 640, Height: 480, JPEG: jpegMagic}}
}

func TestController_StartsEmpty(t *testing.T) {
	c, _ := newTestController(t)

	cur := c.Current()
	assert.Equal(t, SourceNone, cur.Kind())
	assert.False(t, cur.HasPayload())
	assert.True(t, cur.Preview().IsPlaceholder())
	assert.False(t, c.CameraActive())
}

func TestController_LastSelectionWins(t *testing.T) {
	c, store := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.SelectFromDialog(NewBlob("a.jpg", "image/jpeg", []byte("aaa"))))
	require.NoError(t, c.SelectFromDrop(NewBlob("b.png", "image/png", []byte("bbb"))))

	dev := &fakeDevice{stream: newFrameStream()}
	require.NoError(t, c.StartCamera(ctx, dev))
	require.NoError(t, c.CaptureStill())

	require.NoError(t, c.SelectFromDrop(NewBlob("c.png", "image/png", []byte("ccc"))))

	cur := c.Current()
	payload, ok := cur.Payload()
	require.True(t, ok)
	assert.Equal(t, SourceDroppedFile, cur.Kind())
	assert.Equal(t, []byte("ccc"), payload.Data)
	assert.Equal(t, "c.png", cur.Label())
	assert.Equal(t, 1, store.Live(), "superseded previews are revoked")
}

func TestController_PreviewFileIsReplaced(t *testing.T) {
	c, _ := newTestController(t)

	require.NoError(t, c.SelectFromDialog(NewBlob("a.jpg", "image/jpeg", []byte("aaa"))))
	first := c.Current().Preview()
	data, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte("aaa"), data)

	require.NoError(t, c.SelectFromDialog(NewBlob("b.jpg", "image/jpeg", []byte("bbb"))))
	_, err = os.Stat(first.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.NotEqual(t, first.ID, c.Current().Preview().ID)
}

func TestController_SelectionCopiesPayload(t *testing.T) {
	c, _ := newTestController(t)
	data := []byte("abc")
	require.NoError(t, c.SelectFromDialog(NewBlob("a.jpg", "image/jpeg", data)))
	data[0] = 'z'

	payload, _ := c.Current().Payload()
	assert.Equal(t, []byte("abc"), payload.Data)
}

func TestController_EmptyBlobRejected(t *testing.T) {
	c, _ := newTestController(t)
	assert.Error(t, c.SelectFromDialog(NewBlob("a.jpg", "image/jpeg", nil)))
	assert.Equal(t, SourceNone, c.Current().Kind())
}

func TestController_CaptureAlwaysStopsCamera(t *testing.T) {
	c, _ := newTestController(t)
	stream := newFrameStream()
	require.NoError(t, c.StartCamera(context.Background(), &fakeDevice{stream: stream}))
	require.True(t, c.CameraActive())

	require.NoError(t, c.CaptureStill())

	assert.False(t, c.CameraActive())
	assert.Equal(t, 1, stream.closed)
	cur := c.Current()
	payload, ok := cur.Payload()
	require.True(t, ok)
	assert.Equal(t, SourceCameraCapture, cur.Kind())
	assert.Equal(t, camera.StillFileName, payload.Name)
	assert.Equal(t, camera.StillMimeType, payload.MimeType)
}

func TestController_CaptureWithoutFrameChangesNothing(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.SelectFromDialog(NewBlob("a.jpg", "image/jpeg", []byte("aaa"))))
	before := c.Current()

	stream := &fakeStream{err: camera.ErrNoFrame}
	require.NoError(t, c.StartCamera(context.Background(), &fakeDevice{stream: stream}))

	err := c.CaptureStill()
	assert.ErrorIs(t, err, camera.ErrNoFrame)
	assert.Equal(t, before, c.Current())
	assert.True(t, c.CameraActive(), "camera stays open so the user can retry")
}

func TestController_CaptureInactive(t *testing.T) {
	c, _ := newTestController(t)
	assert.ErrorIs(t, c.CaptureStill(), camera.ErrNotActive)
	assert.Equal(t, SourceNone, c.Current().Kind())
}

func TestController_StartCameraDenied(t *testing.T) {
	c, _ := newTestController(t)
	err := c.StartCamera(context.Background(), &fakeDevice{err: errors.New("NotAllowedError")})
	assert.ErrorIs(t, err, camera.ErrAccess)
	assert.False(t, c.CameraActive())
}

func TestController_StartCameraWhenActiveIsNoop(t *testing.T) {
	c, _ := newTestController(t)
	dev := &fakeDevice{stream: newFrameStream()}
	require.NoError(t, c.StartCamera(context.Background(), dev))
	require.NoError(t, c.StartCamera(context.Background(), dev))
	assert.Equal(t, 1, dev.opens)
}

func TestController_BindCameraWhenActiveClosesSurplus(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.BindCamera(newFrameStream()))

	late := newFrameStream()
	assert.Error(t, c.BindCamera(late))
	assert.Equal(t, 1, late.closed)
	assert.True(t, c.CameraActive())
}

func TestController_StopCameraIdempotent(t *testing.T) {
	c, _ := newTestController(t)
	stream := newFrameStream()
	require.NoError(t, c.BindCamera(stream))

	c.StopCamera()
	c.StopCamera()
	assert.False(t, c.CameraActive())
	assert.Equal(t, 1, stream.closed)
}

func TestController_ClearKeepsCamera(t *testing.T) {
	c, store := newTestController(t)
	require.NoError(t, c.SelectFromDialog(NewBlob("a.jpg", "image/jpeg", []byte("aaa"))))
	require.NoError(t, c.BindCamera(newFrameStream()))

	c.Clear()

	assert.Equal(t, SourceNone, c.Current().Kind())
	assert.True(t, c.Current().Preview().IsPlaceholder())
	assert.Equal(t, 0, store.Live())
	assert.True(t, c.CameraActive())
}

func TestController_CloseReleasesEverything(t *testing.T) {
	c, store := newTestController(t)
	require.NoError(t, c.SelectFromDrop(NewBlob("a.jpg", "image/jpeg", []byte("aaa"))))
	stream := newFrameStream()
	require.NoError(t, c.BindCamera(stream))

	c.Close()

	assert.False(t, c.CameraActive())
	assert.Equal(t, 1, stream.closed)
	assert.Equal(t, 0, store.Live())
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "look.jpg")
	require.NoError(t, os.WriteFile(path, jpegMagic, 0600))

	blob, err := ReadFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, "look.jpg", blob.Name)
	assert.Equal(t, "image/jpeg", blob.MimeType)

	_, err = ReadFile(path, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestReadFile_RejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0600))

	_, err := ReadFile(path, 0)
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestTempPreviewStore_CloseRevokesAll(t *testing.T) {
	store, err := NewTempPreviewStore(t.TempDir())
	require.NoError(t, err)

	a, err := store.Create(NewBlob("a.jpg", "image/jpeg", []byte("a")))
	require.NoError(t, err)
	_, err = store.Create(NewBlob("b", "image/png", []byte("b")))
	require.NoError(t, err)
	assert.Equal(t, 2, store.Live())

	require.NoError(t, store.Close())
	assert.Equal(t, 0, store.Live())
	_, err = os.Stat(a.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.NoError(t, store.Revoke(Placeholder))
}
