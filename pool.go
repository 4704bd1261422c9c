package ajp

import (
	"sync"

	"github.com/pkg/errors"
)

// Pool recycles Messages so a connection handler can cycle one buffer per
// packet without allocating on the hot path. All messages in a pool share
// one packet size. The pool itself is safe for concurrent use; each checked
// out Message still belongs to exactly one caller at a time.
type Pool struct {
	packetSize int
	logger     Logger

	pool sync.Pool
}

// NewPool creates a pool of packet buffers of the given fixed size.
// DefaultPacketSize is a reasonable choice when the peer has not negotiated
// a larger packet.
func NewPool(packetSize int, opt ...Option) (*Pool, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)

	if packetSize < headerLength {
		return nil, errors.Wrapf(ErrInvalidPacketSize, "%d bytes", packetSize)
	}

	p := &Pool{
		packetSize: packetSize,
		logger:     opts.logger,
	}
	p.pool.New = func() any {
		m, _ := NewMessage(p.packetSize, LoggerOption(p.logger))
		return m
	}
	return p, nil
}

// Get checks a Message out of the pool. The message carries whatever state
// its previous cycle left behind; begin the new cycle with Reset or
// ParseHeader.
func (p *Pool) Get() *Message {
	return p.pool.Get().(*Message)
}

// Put returns a Message to the pool. Nil messages and messages whose
// capacity differs from the pool's packet size are dropped rather than
// allowed to poison the pool.
func (p *Pool) Put(m *Message) {
	if m == nil {
		return
	}
	if m.Capacity() != p.packetSize {
		p.logger.Warn("discarding foreign message", "capacity", m.Capacity(), "packet_size", p.packetSize)
		return
	}
	p.pool.Put(m)
}

// PacketSize returns the fixed buffer size of messages in this pool.
func (p *Pool) PacketSize() int {
	return p.packetSize
}
