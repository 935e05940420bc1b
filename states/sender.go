package states

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alan-christopher/qrun/bb84/bitmap"
)

// Bounds on the cumulative number of bits a Sender may send.
const (
	DefaultSendLimit = 4096
	MaxSendLimit     = 10000
)

// ErrSendLimit is returned when a send would take a Sender past its limit.
var ErrSendLimit = errors.New("send limit reached")

// A Sender hands out bits from a fixed source in order, keeping a copy of
// everything it has sent, up to a cumulative limit.
type Sender struct {
	src   bitmap.Dense
	next  int
	limit int
	sent  bitmap.Dense
}

// NewSender returns a Sender over src. A zero limit means DefaultSendLimit.
func NewSender(src bitmap.Dense, limit int) (*Sender, error) {
	if limit == 0 {
		limit = DefaultSendLimit
	}
	if limit < 0 || limit > MaxSendLimit {
		return nil, fmt.Errorf("send limit %d outside (0, %d]", limit, MaxSendLimit)
	}
	return &Sender{src: src, limit: limit}, nil
}

// BitsFromMemory concatenates the shots of a RandomBits run into one bitmap,
// in shot order.
func BitsFromMemory(memory []string) (bitmap.Dense, error) {
	return bitmap.FromString(strings.Join(memory, ""))
}

// Send sends the next n bits. A zero n sends every bit left in the source.
// Nothing is sent if the source runs short or the limit would be passed.
func (s *Sender) Send(n int) (bitmap.Dense, error) {
	if n < 0 {
		return bitmap.Dense{}, fmt.Errorf("sending %d bits", n)
	}
	avail := s.src.Size() - s.next
	if n == 0 {
		n = avail
	}
	if n > s.Left() {
		return bitmap.Dense{}, fmt.Errorf("%w: %d bits requested, %d of %d left", ErrSendLimit, n, s.Left(), s.limit)
	}
	if n > avail {
		return bitmap.Dense{}, fmt.Errorf("source exhausted: %d bits missing", n-avail)
	}
	out, err := bitmap.Slice(s.src, s.next, s.next+n)
	if err != nil {
		return bitmap.Dense{}, err
	}
	s.next += n
	s.sent.Append(out)
	return out, nil
}

// Sent returns a copy of every bit sent so far.
func (s *Sender) Sent() bitmap.Dense {
	r, _ := bitmap.Slice(s.sent, 0, s.sent.Size())
	return r
}

// Done returns the number of bits sent so far.
func (s *Sender) Done() int {
	return s.sent.Size()
}

// Left returns how many more bits may be sent before reaching the limit.
func (s *Sender) Left() int {
	return s.limit - s.Done()
}
