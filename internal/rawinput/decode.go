package rawinput

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
	"unsafe"

	"github.com/verte-zerg/keytest/internal/model"
)

const (
	ptrSize      = int(unsafe.Sizeof(uintptr(0)))
	keyboardSize = 16
)

// HeaderSize is sizeof(RAWINPUTHEADER) for the running architecture.
var HeaderSize = headerSize(ptrSize)

func headerSize(ptr int) int {
	return 8 + 2*ptr
}

// Reader decodes WM_INPUT payloads. It reuses one buffer between reads
// and must only be used from the window thread.
type Reader struct {
	api WindowAPI
	buf []byte
}

// NewReader returns a reader for api.
func NewReader(api WindowAPI) *Reader {
	return &Reader{api: api}
}

// Read fetches the record behind lParam with a size query followed by a
// sized copy. Non-keyboard records return false.
func (r *Reader) Read(lParam uintptr) (model.RawKeyEvent, bool, error) {
	size, err := r.api.GetRawInputData(lParam, nil)
	if err != nil {
		return model.RawKeyEvent{}, false, fmt.Errorf("query raw input size: %w", err)
	}
	if size == 0 {
		return model.RawKeyEvent{}, false, nil
	}
	if cap(r.buf) < int(size) {
		r.buf = make([]byte, size)
	}
	buf := r.buf[:size]
	n, err := r.api.GetRawInputData(lParam, buf)
	if err != nil {
		return model.RawKeyEvent{}, false, fmt.Errorf("read raw input: %w", err)
	}
	if n != size {
		return model.RawKeyEvent{}, false, fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, n, size)
	}
	return ParseKeyboard(buf)
}

// ParseKeyboard decodes a RAWINPUT record laid out for the running
// architecture.
func ParseKeyboard(buf []byte) (model.RawKeyEvent, bool, error) {
	return parseKeyboard(buf, ptrSize)
}

func parseKeyboard(buf []byte, ptr int) (model.RawKeyEvent, bool, error) {
	hdr := headerSize(ptr)
	if len(buf) < hdr {
		return model.RawKeyEvent{}, false, fmt.Errorf("%w: header needs %d bytes, have %d", ErrShortRead, hdr, len(buf))
	}
	le := binary.LittleEndian
	if typ := le.Uint32(buf[0:4]); typ != RIMTypeKeyboard {
		return model.RawKeyEvent{}, false, nil
	}
	declared := int(le.Uint32(buf[4:8]))
	if declared > len(buf) || len(buf) < hdr+keyboardSize {
		return model.RawKeyEvent{}, false, fmt.Errorf("%w: record needs %d bytes, have %d", ErrShortRead, max(declared, hdr+keyboardSize), len(buf))
	}
	kb := buf[hdr:]
	flags := le.Uint16(kb[2:4])
	return model.RawKeyEvent{
		Device:   readPtr(buf[8:], ptr),
		MakeCode: le.Uint16(kb[0:2]),
		Flags:    flags,
		VKey:     le.Uint16(kb[6:8]),
		Extended: flags&RIKeyE0 != 0,
		Break:    flags&RIKeyBreak != 0,
	}, true, nil
}

// EncodeKeyboard builds a RAWINPUT keyboard record for the running
// architecture. Message and ExtraInformation are left zero.
func EncodeKeyboard(ev model.RawKeyEvent) []byte {
	return encodeKeyboard(ev, ptrSize)
}

func encodeKeyboard(ev model.RawKeyEvent, ptr int) []byte {
	hdr := headerSize(ptr)
	buf := make([]byte, hdr+keyboardSize)
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], RIMTypeKeyboard)
	le.PutUint32(buf[4:8], uint32(len(buf)))
	writePtr(buf[8:], ptr, ev.Device)

	flags := ev.Flags
	if ev.Extended {
		flags |= RIKeyE0
	}
	if ev.Break {
		flags |= RIKeyBreak
	}
	kb := buf[hdr:]
	le.PutUint16(kb[0:2], ev.MakeCode)
	le.PutUint16(kb[2:4], flags)
	le.PutUint16(kb[6:8], ev.VKey)
	return buf
}

func readPtr(b []byte, ptr int) uintptr {
	if ptr == 4 {
		return uintptr(binary.LittleEndian.Uint32(b))
	}
	return uintptr(binary.LittleEndian.Uint64(b))
}

func writePtr(b []byte, ptr int, v uintptr) {
	if ptr == 4 {
		binary.LittleEndian.PutUint32(b, uint32(v))
		return
	}
	binary.LittleEndian.PutUint64(b, uint64(v))
}

// DeviceName resolves the path of a raw input device. It returns false when
// the platform has no name for the handle.
func DeviceName(api WindowAPI, handle uintptr) (string, bool) {
	n, err := api.GetRawInputDeviceName(handle, nil)
	if err != nil || n == 0 {
		return "", false
	}
	buf := make([]uint16, n)
	got, err := api.GetRawInputDeviceName(handle, buf)
	if err != nil || got == 0 || got > n {
		return "", false
	}
	name := decodeUTF16(buf[:got])
	if name == "" {
		return "", false
	}
	return name, true
}

func decodeUTF16(buf []uint16) string {
	for i, v := range buf {
		if v == 0 {
			buf = buf[:i]
			break
		}
	}
	return string(utf16.Decode(buf))
}
