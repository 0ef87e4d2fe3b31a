package ldap

import (
	"errors"
	"net"
	"sync"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
)

// tagSearchResultDone is the identifier octet of a SearchResultDone
// protocol op: application class, constructed.
const tagSearchResultDone = 0x60 | ldap.ApplicationSearchResultDone

var errWireUnreadable = errors.New("response stream is not readable on this connection")

// sortTap sits between go-ldap and the socket and records the sort result
// carried by SearchResultDone messages. go-ldap decodes the sort response
// control without its value, so the result code and attribute in error are
// only available on the wire.
//
// The tap goes blind for good on anything that is not a definite-length
// LDAPMessage, which is what it sees after StartTLS.
type sortTap struct {
	net.Conn

	mu    sync.Mutex
	buf   []byte
	skip  int
	blind bool

	seen      bool
	result    sortResult
	malformed error
}

func newSortTap(conn net.Conn) *sortTap {
	return &sortTap{Conn: conn}
}

func (t *sortTap) Read(p []byte) (int, error) {
	n, err := t.Conn.Read(p)
	if n > 0 {
		t.observe(p[:n])
	}
	return n, err
}

// reset forgets the last sort result. Call it before each search.
func (t *sortTap) reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen, t.result, t.malformed = false, sortResult{}, nil
}

// lastSort returns the sort result of the last SearchResultDone since reset,
// nil when none carried one, or errWireUnreadable when the tap is blind.
func (t *sortTap) lastSort() (*sortResult, error) {
	if t == nil {
		return nil, errWireUnreadable
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.malformed != nil:
		return nil, t.malformed
	case t.seen:
		res := t.result
		return &res, nil
	case t.blind:
		return nil, errWireUnreadable
	}
	return nil, nil
}

func (t *sortTap) observe(p []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for len(p) > 0 && !t.blind {
		if t.skip > 0 {
			n := min(t.skip, len(p))
			t.skip -= n
			p = p[n:]
			continue
		}
		t.buf = append(t.buf, p...)
		p = nil
		t.drain()
	}
}

// drain consumes complete messages from the buffer. Messages other than
// SearchResultDone are skipped without being buffered whole.
func (t *sortTap) drain() {
	for len(t.buf) > 0 && !t.blind {
		total, op, ok, err := messageFrame(t.buf)
		if err != nil {
			t.blind, t.buf = true, nil
			return
		}
		if !ok {
			return
		}

		if op != tagSearchResultDone {
			if total > len(t.buf) {
				t.skip = total - len(t.buf)
				t.buf = nil
				return
			}
			t.buf = t.buf[total:]
			continue
		}

		if total > len(t.buf) {
			return
		}
		t.record(t.buf[:total])
		t.buf = t.buf[total:]
	}
	if len(t.buf) == 0 {
		t.buf = nil
	}
}

// record keeps the sort result of one SearchResultDone message.
func (t *sortTap) record(msg []byte) {
	packet, err := ber.DecodePacketErr(msg)
	if err != nil || len(packet.Children) < 3 {
		// go-ldap reports the malformed message itself
		return
	}

	ctrls := packet.Children[2]
	if ctrls.ClassType != ber.ClassContext || ctrls.Tag != 0 {
		return
	}
	for _, ctrl := range ctrls.Children {
		if len(ctrl.Children) < 2 {
			continue
		}
		if oid, _ := ctrl.Children[0].Value.(string); oid != OIDSortResponse {
			continue
		}
		value := ctrl.Children[len(ctrl.Children)-1]
		if value.Tag != ber.TagOctetString || value.Data == nil {
			t.malformed = newError("search_ext_s", ErrProtocol, "sort response control has no value")
			return
		}
		res, err := parseSortResultValue(value.Data.Bytes())
		if err != nil {
			t.malformed = err
			return
		}
		t.seen, t.result = true, res
		return
	}
}

// messageFrame reads the header of the LDAPMessage at the start of b and
// returns its encoded length and protocol op identifier. ok is false until
// b holds the header, the messageID and the op identifier.
func messageFrame(b []byte) (total int, op byte, ok bool, err error) {
	if b[0] != 0x30 {
		return 0, 0, false, errors.New("not an LDAPMessage")
	}
	hdr, length, ok, err := berLength(b[1:])
	if !ok || err != nil {
		return 0, 0, ok, err
	}
	total = 1 + hdr + length

	off := 1 + hdr
	if len(b) < off+2 {
		return total, 0, false, nil
	}
	if b[off] != 0x02 {
		return 0, 0, false, errors.New("missing messageID")
	}
	idHdr, idLen, ok, err := berLength(b[off+1:])
	if !ok || err != nil {
		return 0, 0, ok, err
	}
	off += 1 + idHdr + idLen
	if len(b) <= off {
		return total, 0, false, nil
	}
	return total, b[off], true, nil
}

// berLength decodes the definite length octets at the start of b.
func berLength(b []byte) (hdr, length int, ok bool, err error) {
	if len(b) == 0 {
		return 0, 0, false, nil
	}
	first := b[0]
	if first < 0x80 {
		return 1, int(first), true, nil
	}

	n := int(first & 0x7f)
	if n == 0 || n > 4 {
		return 0, 0, false, errors.New("unsupported length encoding")
	}
	if len(b) < 1+n {
		return 0, 0, false, nil
	}
	for _, octet := range b[1 : 1+n] {
		length = length<<8 | int(octet)
	}
	return 1 + n, length, true, nil
}
