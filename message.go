// Package ajp implements the packet framing of the AJP protocol spoken
// between a front-end web server and a backend container. A Message is a
// single fixed-capacity packet buffer, designed to be reused many times with
// no creation of garbage: cycle it through Reset/Append*/End for outbound
// packets, or ParseHeader/Read* for inbound ones. The package performs no
// I/O; moving finalized buffers over a socket belongs to the caller.
package ajp

import (
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Errors returned by packet buffer operations.
var (
	// ErrInvalidPacketSize is returned when a buffer smaller than the packet header is requested.
	ErrInvalidPacketSize = errors.New("packet size smaller than header")
	// ErrBufferOverflow is returned when an append would run past the buffer capacity.
	// The refused append leaves the buffer untouched.
	ErrBufferOverflow = errors.New("append exceeds buffer capacity")
	// ErrOutOfRange is returned when a read would run past the end of the buffer.
	ErrOutOfRange = errors.New("read past end of buffer")
	// ErrInvalidHeader is returned when a received packet carries an unknown signature.
	ErrInvalidHeader = errors.New("invalid packet signature")
)

// Packet signatures. 0x1234 marks packets travelling from the web server to
// the container, 0x4142 (the bytes 'A' 'B') marks packets travelling back.
const (
	markServer    = 0x1234
	markContainer = 0x4142
)

const (
	// headerLength is the fixed header size: two signature bytes followed by
	// a 16-bit big-endian payload length.
	headerLength = 4

	// DefaultPacketSize is the classic AJP maximum packet size.
	DefaultPacketSize = 8192
)

// Message is a single AJP packet buffer. The buffer is allocated once at the
// requested packet size and never grows; size it to the largest packet the
// connection will ever exchange. A Message is used (somewhat confusingly) for
// both incoming and outgoing packets, one packet at a time, and is not safe
// for concurrent use.
type Message struct {
	buf    []byte
	pos    int
	logger Logger
}

// NewMessage creates a packet buffer of the given fixed size.
// Returns ErrInvalidPacketSize if the size cannot hold even the header.
func NewMessage(packetSize int, opt ...Option) (*Message, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)

	if packetSize < headerLength {
		return nil, errors.Wrapf(ErrInvalidPacketSize, "%d bytes", packetSize)
	}

	return &Message{
		buf:    make([]byte, packetSize),
		logger: opts.logger,
	}, nil
}

// Reset prepares the buffer for accumulating a new outbound packet. The write
// position is set just past the header, which stays unwritten until End is
// called, because the payload length is as yet unknown.
func (m *Message) Reset() {
	m.pos = headerLength
}

// End finishes an outbound packet: it stamps the container signature and the
// now-known payload length into the header. Call it exactly once per packet,
// after the last append and before handing the buffer to the transport.
func (m *Message) End() {
	dLen := m.pos - headerLength

	m.buf[0] = 0x41
	m.buf[1] = 0x42
	m.buf[2] = byte((dLen >> 8) & 0xFF)
	m.buf[3] = byte(dLen & 0xFF)
}

// Buffer returns the underlying byte buffer.
func (m *Message) Buffer() []byte {
	return m.buf
}

// Len returns the total size of the outbound packet accumulated so far,
// header included. After End it is the number of bytes to transmit.
func (m *Message) Len() int {
	return m.pos
}

// PayloadLength decodes the payload length declared in the header. It is
// meaningful after End (outbound) or a successful ParseHeader (inbound).
func (m *Message) PayloadLength() int {
	return int(m.buf[2])<<8 | int(m.buf[3])
}

// AppendInt16 writes a 16-bit integer, high byte first. Values outside
// 0-65535 are truncated to their low 16 bits, as the protocol has always
// done.
func (m *Message) AppendInt16(val int) error {
	if m.pos+2 > len(m.buf) {
		m.logger.Error("overflow appending int16", "pos", m.pos, "capacity", len(m.buf))
		return errors.Wrapf(ErrBufferOverflow, "int16 at %d", m.pos)
	}
	m.buf[m.pos] = byte((val >> 8) & 0xFF)
	m.buf[m.pos+1] = byte(val & 0xFF)
	m.pos += 2
	return nil
}

// AppendByte writes the low 8 bits of val.
func (m *Message) AppendByte(val int) error {
	if m.pos+1 > len(m.buf) {
		m.logger.Error("overflow appending byte", "pos", m.pos, "capacity", len(m.buf))
		return errors.Wrapf(ErrBufferOverflow, "byte at %d", m.pos)
	}
	m.buf[m.pos] = byte(val)
	m.pos++
	return nil
}

// AppendString writes a string field: a two-byte character count, the
// characters themselves, and a terminating zero byte that is not included in
// the count. Only the low byte of each character is encoded, so the codec
// carries single-byte text only; wider characters are not representable and
// come out mangled. Control characters below 32 (except tab) and 127 are
// replaced with spaces. An empty string encodes as a zero count and the
// terminator.
func (m *Message) AppendString(str string) error {
	n := utf8.RuneCountInString(str)
	if m.pos+n+3 > len(m.buf) {
		m.logger.Error("overflow appending string", "length", n, "pos", m.pos)
		return errors.Wrapf(ErrBufferOverflow, "string of %d chars at %d", n, m.pos)
	}

	if err := m.AppendInt16(n); err != nil {
		return err
	}
	for _, c := range str {
		if c <= 31 && c != 9 {
			c = ' '
		} else if c == 127 {
			c = ' '
		}
		if err := m.AppendByte(int(c)); err != nil {
			return err
		}
	}
	return m.AppendByte(0)
}

// AppendBytes copies numBytes from b starting at off into the packet, encoded
// as a two-byte length, the raw bytes, and a terminating zero byte not
// included in the length. If the chunk does not fit, the append is refused
// and the buffer is left untouched.
func (m *Message) AppendBytes(b []byte, off, numBytes int) error {
	if off < 0 || numBytes < 0 || off+numBytes > len(b) {
		m.logger.Error("byte chunk outside source range", "offset", off, "count", numBytes, "source", len(b))
		return errors.Wrapf(ErrOutOfRange, "chunk [%d:%d) of %d source bytes", off, off+numBytes, len(b))
	}
	if m.pos+numBytes+3 > len(m.buf) {
		m.logger.Error("overflow appending bytes", "count", numBytes, "pos", m.pos)
		return errors.Wrapf(ErrBufferOverflow, "%d bytes at %d", numBytes, m.pos)
	}

	if err := m.AppendInt16(numBytes); err != nil {
		return err
	}
	copy(m.buf[m.pos:], b[off:off+numBytes])
	m.pos += numBytes
	return m.AppendByte(0)
}

// ReadInt16 reads a 16-bit integer, high byte first, and advances the read
// position past it. The result is always in 0-65535.
func (m *Message) ReadInt16() (int, error) {
	if m.pos+2 > len(m.buf) {
		return 0, errors.Wrapf(ErrOutOfRange, "int16 at %d", m.pos)
	}
	val := int(m.buf[m.pos])<<8 | int(m.buf[m.pos+1])
	m.pos += 2
	return val, nil
}

// PeekInt16 decodes the 16-bit integer at the read position without
// consuming it, so a caller can inspect a type or length discriminator
// before deciding how to read the field.
func (m *Message) PeekInt16() (int, error) {
	if m.pos+2 > len(m.buf) {
		return 0, errors.Wrapf(ErrOutOfRange, "int16 at %d", m.pos)
	}
	return int(m.buf[m.pos])<<8 | int(m.buf[m.pos+1]), nil
}

// ReadByte reads one byte and advances past it. The value is signed; mask
// with 0xFF for the unsigned 0-255 reading.
func (m *Message) ReadByte() (int8, error) {
	if m.pos+1 > len(m.buf) {
		return 0, errors.Wrapf(ErrOutOfRange, "byte at %d", m.pos)
	}
	val := int8(m.buf[m.pos])
	m.pos++
	return val, nil
}

// ReadInt32 reads a 32-bit integer, high byte first, and advances past it.
// Values with the high bit set come out negative.
func (m *Message) ReadInt32() (int32, error) {
	if m.pos+4 > len(m.buf) {
		return 0, errors.Wrapf(ErrOutOfRange, "int32 at %d", m.pos)
	}
	val := uint32(m.buf[m.pos])<<24 |
		uint32(m.buf[m.pos+1])<<16 |
		uint32(m.buf[m.pos+2])<<8 |
		uint32(m.buf[m.pos+3])
	m.pos += 4
	return int32(val), nil
}

// ReadString reads a string field: a two-byte length, that many bytes, and
// the terminating zero byte, which is consumed but not returned.
func (m *Message) ReadString() (string, error) {
	n, err := m.PeekInt16()
	if err != nil {
		return "", err
	}
	if m.pos+n+3 > len(m.buf) {
		return "", errors.Wrapf(ErrOutOfRange, "string of %d chars at %d", n, m.pos)
	}
	m.pos += 2
	str := string(m.buf[m.pos : m.pos+n])
	m.pos += n + 1 // skip the terminator
	return str, nil
}

// ReadBytes reads a byte chunk field and returns a copy of its contents. The
// terminating zero byte is consumed but not returned.
func (m *Message) ReadBytes() ([]byte, error) {
	n, err := m.PeekInt16()
	if err != nil {
		return nil, err
	}
	if m.pos+n+3 > len(m.buf) {
		return nil, errors.Wrapf(ErrOutOfRange, "%d bytes at %d", n, m.pos)
	}
	m.pos += 2
	b := make([]byte, n)
	copy(b, m.buf[m.pos:m.pos+n])
	m.pos += n + 1 // skip the terminator
	return b, nil
}

// HeaderLength returns the fixed packet header size.
func (m *Message) HeaderLength() int {
	return headerLength
}

// Capacity returns the fixed allocated size of the buffer.
func (m *Message) Capacity() int {
	return len(m.buf)
}

// ParseHeader validates and consumes the header of a received packet. It
// rewinds to the start of the buffer, verifies the signature, and on success
// returns the declared payload length with the read position just past the
// header, ready for payload reads. On an unknown signature it returns -1 and
// ErrInvalidHeader; the buffer must not be processed as a packet.
func (m *Message) ParseHeader() (int, error) {
	m.pos = 0
	mark, err := m.ReadInt16()
	if err != nil {
		return -1, err
	}
	length, err := m.ReadInt16()
	if err != nil {
		return -1, err
	}

	m.logger.Debug("received packet", "payload_length", length, "first_byte", m.buf[0])

	if mark != markServer && mark != markContainer {
		m.logger.Error("invalid packet signature", "mark", mark)
		return -1, errors.Wrapf(ErrInvalidHeader, "mark 0x%04x", mark)
	}
	return length, nil
}
