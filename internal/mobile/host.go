package mobile

import (
	"io"

	"oxygencrate/internal/importer"
)

// Host result codes passed to OnActivityResult.
const (
	ResultOK       int32 = -1
	ResultCanceled int32 = 0
)

// maxReadChunk bounds a single InputStream.Read request.
const maxReadChunk = 64 << 10

// Runnable is a unit of work handed to the host UI thread.
type Runnable interface {
	Run()
}

// MainThread posts work to the host UI thread (runOnUiThread).
type MainThread interface {
	Post(task Runnable) bool
}

// PickerLauncher opens the system document picker for requestCode.
type PickerLauncher interface {
	Launch(requestCode int32) error
}

// InputStream is a host byte stream. Read returns up to n bytes and an
// empty slice at end of stream.
type InputStream interface {
	Read(n int32) ([]byte, error)
	Close() error
}

// ContentResolver reads picked documents.
type ContentResolver interface {
	TakePersistableURIPermission(uri string, flags int32) error
	QueryDisplayName(uri string) (string, error)
	OpenInputStream(uri string) (InputStream, error)
}

// KeyCharacterMap decodes a key code under a meta state. It returns 0 for
// keys without a character.
type KeyCharacterMap interface {
	Get(keyCode, metaState int32) int32
}

// SoftKeyboard shows and hides the input method. Both run on the UI thread.
type SoftKeyboard interface {
	Show()
	Hide()
}

// StoragePermission is the host's shared-storage permission flow.
type StoragePermission interface {
	Granted() bool
	Request() error
	RequestFallback() error
}

type task func()

func (t task) Run() { t() }

type launcher struct{ host PickerLauncher }

func (l launcher) Launch(tok importer.RequestToken) error {
	return l.host.Launch(int32(tok))
}

type resolver struct{ host ContentResolver }

func (r resolver) TakePersistableReadPermission(ref string, flags importer.GrantFlags) error {
	return r.host.TakePersistableURIPermission(ref, int32(flags))
}

func (r resolver) DisplayName(ref string) (string, error) {
	return r.host.QueryDisplayName(ref)
}

func (r resolver) Open(ref string) (io.ReadCloser, error) {
	s, err := r.host.OpenInputStream(ref)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, importer.ErrNoContent
	}
	return &streamReader{stream: s}, nil
}

// streamReader adapts a chunked host stream to io.ReadCloser.
type streamReader struct {
	stream InputStream
	buf    []byte
	eof    bool
}

func (s *streamReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(s.buf) == 0 {
		if s.eof {
			return 0, io.EOF
		}
		chunk, err := s.stream.Read(int32(min(len(p), maxReadChunk)))
		if err != nil {
			return 0, err
		}
		if len(chunk) == 0 {
			s.eof = true
			return 0, io.EOF
		}
		s.buf = chunk
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *streamReader) Close() error {
	return s.stream.Close()
}
