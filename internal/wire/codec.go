package wire

import "encoding/binary"

// All multi-byte integers are little-endian on the wire, per the node's own
// port/address convention (see the peerRef type in the state machine
// package for why this is not network byte order).

// PeekType reads the leading type byte without consuming it. It is the
// building block both the socket reader and the state machine's dispatch
// switch use to decide which Parse* function to call next.
func PeekType(buf []byte) (Type, error) {
	if len(buf) < 1 {
		return 0, ErrShortBuffer
	}
	return Type(buf[0]), nil
}

func (StunLookup) Serialize() []byte { return []byte{byte(TypeStunLookup)} }

// ParseStunLookup expects exactly the 1-byte type and nothing else.
func ParseStunLookup(buf []byte) (StunLookup, int, error) {
	if err := expectType(buf, TypeStunLookup); err != nil {
		return StunLookup{}, 0, err
	}
	return StunLookup{}, 1, nil
}

func (f StunResponse) Serialize() []byte {
	b := make([]byte, 5)
	b[0] = byte(TypeStunResponse)
	binary.LittleEndian.PutUint32(b[1:5], f.Address)
	return b
}

func ParseStunResponse(buf []byte) (StunResponse, int, error) {
	if err := expectType(buf, TypeStunResponse); err != nil {
		return StunResponse{}, 0, err
	}
	if len(buf) < 5 {
		return StunResponse{}, 0, ErrShortBuffer
	}
	return StunResponse{Address: binary.LittleEndian.Uint32(buf[1:5])}, 5, nil
}

func (NetAlive) Serialize() []byte { return []byte{byte(TypeNetAlive)} }

func ParseNetAlive(buf []byte) (NetAlive, int, error) {
	if err := expectType(buf, TypeNetAlive); err != nil {
		return NetAlive{}, 0, err
	}
	return NetAlive{}, 1, nil
}

func (NetGetNode) Serialize() []byte { return []byte{byte(TypeNetGetNode)} }

func ParseNetGetNode(buf []byte) (NetGetNode, int, error) {
	if err := expectType(buf, TypeNetGetNode); err != nil {
		return NetGetNode{}, 0, err
	}
	return NetGetNode{}, 1, nil
}

func (f NetGetNodeResponse) Serialize() []byte {
	b := make([]byte, 7)
	b[0] = byte(TypeNetGetNodeResponse)
	binary.LittleEndian.PutUint32(b[1:5], f.Address)
	binary.LittleEndian.PutUint16(b[5:7], f.Port)
	return b
}

func ParseNetGetNodeResponse(buf []byte) (NetGetNodeResponse, int, error) {
	if err := expectType(buf, TypeNetGetNodeResponse); err != nil {
		return NetGetNodeResponse{}, 0, err
	}
	if len(buf) < 7 {
		return NetGetNodeResponse{}, 0, ErrShortBuffer
	}
	return NetGetNodeResponse{
		Address: binary.LittleEndian.Uint32(buf[1:5]),
		Port:    binary.LittleEndian.Uint16(buf[5:7]),
	}, 7, nil
}

// netJoinSize is the frame length including the 1-byte type.
const netJoinSize = 1 + 4 + 2 + 1 + 4 + 2

func (f NetJoin) Serialize() []byte {
	b := make([]byte, netJoinSize)
	b[0] = byte(TypeNetJoin)
	binary.LittleEndian.PutUint32(b[1:5], f.SrcAddr)
	binary.LittleEndian.PutUint16(b[5:7], f.SrcPort)
	b[7] = f.MaxSpan
	binary.LittleEndian.PutUint32(b[8:12], f.MaxAddr)
	binary.LittleEndian.PutUint16(b[12:14], f.MaxPort)
	return b
}

func ParseNetJoin(buf []byte) (NetJoin, int, error) {
	if err := expectType(buf, TypeNetJoin); err != nil {
		return NetJoin{}, 0, err
	}
	if len(buf) < netJoinSize {
		return NetJoin{}, 0, ErrShortBuffer
	}
	f := NetJoin{
		SrcAddr: binary.LittleEndian.Uint32(buf[1:5]),
		SrcPort: binary.LittleEndian.Uint16(buf[5:7]),
		MaxSpan: buf[7],
		MaxAddr: binary.LittleEndian.Uint32(buf[8:12]),
		MaxPort: binary.LittleEndian.Uint16(buf[12:14]),
	}
	return f, netJoinSize, nil
}

const netJoinResponseSize = 1 + 4 + 2 + 1 + 1

func (f NetJoinResponse) Serialize() []byte {
	b := make([]byte, netJoinResponseSize)
	b[0] = byte(TypeNetJoinResponse)
	binary.LittleEndian.PutUint32(b[1:5], f.NextAddr)
	binary.LittleEndian.PutUint16(b[5:7], f.NextPort)
	b[7] = f.RangeStart
	b[8] = f.RangeEnd
	return b
}

func ParseNetJoinResponse(buf []byte) (NetJoinResponse, int, error) {
	if err := expectType(buf, TypeNetJoinResponse); err != nil {
		return NetJoinResponse{}, 0, err
	}
	if len(buf) < netJoinResponseSize {
		return NetJoinResponse{}, 0, ErrShortBuffer
	}
	f := NetJoinResponse{
		NextAddr:   binary.LittleEndian.Uint32(buf[1:5]),
		NextPort:   binary.LittleEndian.Uint16(buf[5:7]),
		RangeStart: buf[7],
		RangeEnd:   buf[8],
	}
	return f, netJoinResponseSize, nil
}

const netLeavingSize = 1 + 4 + 2

func (f NetLeaving) Serialize() []byte {
	b := make([]byte, netLeavingSize)
	b[0] = byte(TypeNetLeaving)
	binary.LittleEndian.PutUint32(b[1:5], f.NewAddr)
	binary.LittleEndian.PutUint16(b[5:7], f.NewPort)
	return b
}

func ParseNetLeaving(buf []byte) (NetLeaving, int, error) {
	if err := expectType(buf, TypeNetLeaving); err != nil {
		return NetLeaving{}, 0, err
	}
	if len(buf) < netLeavingSize {
		return NetLeaving{}, 0, ErrShortBuffer
	}
	f := NetLeaving{
		NewAddr: binary.LittleEndian.Uint32(buf[1:5]),
		NewPort: binary.LittleEndian.Uint16(buf[5:7]),
	}
	return f, netLeavingSize, nil
}

const netNewRangeSize = 1 + 1 + 1

func (f NetNewRange) Serialize() []byte {
	b := make([]byte, netNewRangeSize)
	b[0] = byte(TypeNetNewRange)
	b[1] = f.RangeStart
	b[2] = f.RangeEnd
	return b
}

func ParseNetNewRange(buf []byte) (NetNewRange, int, error) {
	if err := expectType(buf, TypeNetNewRange); err != nil {
		return NetNewRange{}, 0, err
	}
	if len(buf) < netNewRangeSize {
		return NetNewRange{}, 0, ErrShortBuffer
	}
	f := NetNewRange{RangeStart: buf[1], RangeEnd: buf[2]}
	return f, netNewRangeSize, nil
}

func (NetNewRangeResponse) Serialize() []byte { return []byte{byte(TypeNetNewRangeResponse)} }

func ParseNetNewRangeResponse(buf []byte) (NetNewRangeResponse, int, error) {
	if err := expectType(buf, TypeNetNewRangeResponse); err != nil {
		return NetNewRangeResponse{}, 0, err
	}
	return NetNewRangeResponse{}, 1, nil
}

func (NetCloseConnection) Serialize() []byte { return []byte{byte(TypeNetCloseConnection)} }

func ParseNetCloseConnection(buf []byte) (NetCloseConnection, int, error) {
	if err := expectType(buf, TypeNetCloseConnection); err != nil {
		return NetCloseConnection{}, 0, err
	}
	return NetCloseConnection{}, 1, nil
}

// valInsertFixedSize is the 1-byte type + 12-byte ssn + 1-byte name length +
// 1-byte email length, before the variable-length name/email payloads.
const valInsertFixedSize = 1 + 12 + 1 + 1

func (f ValInsert) Serialize() []byte {
	name, email := []byte(f.Name), []byte(f.Email)
	b := make([]byte, 0, valInsertFixedSize+len(name)+len(email))
	b = append(b, byte(TypeValInsert))
	b = append(b, f.SSN[:]...)
	b = append(b, uint8(len(name)))
	b = append(b, name...)
	b = append(b, uint8(len(email)))
	b = append(b, email...)
	return b
}

// ParseValInsert parses a VAL_INSERT frame. It never partially consumes: if
// the declared name/email lengths extend past the buffer, it reports
// ErrShortBuffer and the caller waits for more bytes.
func ParseValInsert(buf []byte) (ValInsert, int, error) {
	if err := expectType(buf, TypeValInsert); err != nil {
		return ValInsert{}, 0, err
	}
	if len(buf) < valInsertFixedSize {
		return ValInsert{}, 0, ErrShortBuffer
	}
	var f ValInsert
	copy(f.SSN[:], buf[1:13])
	nameLen := int(buf[13])
	nameStart := 14
	nameEnd := nameStart + nameLen
	if len(buf) < nameEnd+1 {
		return ValInsert{}, 0, ErrShortBuffer
	}
	emailLen := int(buf[nameEnd])
	emailStart := nameEnd + 1
	emailEnd := emailStart + emailLen
	if len(buf) < emailEnd {
		return ValInsert{}, 0, ErrShortBuffer
	}
	f.Name = string(buf[nameStart:nameEnd])
	f.Email = string(buf[emailStart:emailEnd])
	return f, emailEnd, nil
}

const valRemoveSize = 1 + 12

func (f ValRemove) Serialize() []byte {
	b := make([]byte, valRemoveSize)
	b[0] = byte(TypeValRemove)
	copy(b[1:13], f.SSN[:])
	return b
}

func ParseValRemove(buf []byte) (ValRemove, int, error) {
	if err := expectType(buf, TypeValRemove); err != nil {
		return ValRemove{}, 0, err
	}
	if len(buf) < valRemoveSize {
		return ValRemove{}, 0, ErrShortBuffer
	}
	var f ValRemove
	copy(f.SSN[:], buf[1:13])
	return f, valRemoveSize, nil
}

const valLookupSize = 1 + 12 + 4 + 2

func (f ValLookup) Serialize() []byte {
	b := make([]byte, valLookupSize)
	b[0] = byte(TypeValLookup)
	copy(b[1:13], f.SSN[:])
	binary.LittleEndian.PutUint32(b[13:17], f.SenderAddr)
	binary.LittleEndian.PutUint16(b[17:19], f.SenderPort)
	return b
}

func ParseValLookup(buf []byte) (ValLookup, int, error) {
	if err := expectType(buf, TypeValLookup); err != nil {
		return ValLookup{}, 0, err
	}
	if len(buf) < valLookupSize {
		return ValLookup{}, 0, ErrShortBuffer
	}
	var f ValLookup
	copy(f.SSN[:], buf[1:13])
	f.SenderAddr = binary.LittleEndian.Uint32(buf[13:17])
	f.SenderPort = binary.LittleEndian.Uint16(buf[17:19])
	return f, valLookupSize, nil
}

const valLookupResponseFixedSize = 1 + 12 + 1 + 1

func (f ValLookupResponse) Serialize() []byte {
	name, email := []byte(f.Name), []byte(f.Email)
	b := make([]byte, 0, valLookupResponseFixedSize+len(name)+len(email))
	b = append(b, byte(TypeValLookupResponse))
	b = append(b, f.SSN[:]...)
	b = append(b, uint8(len(name)))
	b = append(b, name...)
	b = append(b, uint8(len(email)))
	b = append(b, email...)
	return b
}

func ParseValLookupResponse(buf []byte) (ValLookupResponse, int, error) {
	if err := expectType(buf, TypeValLookupResponse); err != nil {
		return ValLookupResponse{}, 0, err
	}
	if len(buf) < valLookupResponseFixedSize {
		return ValLookupResponse{}, 0, ErrShortBuffer
	}
	var f ValLookupResponse
	copy(f.SSN[:], buf[1:13])
	nameLen := int(buf[13])
	nameStart := 14
	nameEnd := nameStart + nameLen
	if len(buf) < nameEnd+1 {
		return ValLookupResponse{}, 0, ErrShortBuffer
	}
	emailLen := int(buf[nameEnd])
	emailStart := nameEnd + 1
	emailEnd := emailStart + emailLen
	if len(buf) < emailEnd {
		return ValLookupResponse{}, 0, ErrShortBuffer
	}
	f.Name = string(buf[nameStart:nameEnd])
	f.Email = string(buf[emailStart:emailEnd])
	return f, emailEnd, nil
}

func expectType(buf []byte, want Type) error {
	got, err := PeekType(buf)
	if err != nil {
		return err
	}
	if got != want {
		return ErrUnknownType
	}
	return nil
}

// ParseAny dispatches on the leading type byte and parses whichever frame
// it names. It returns ErrUnknownType for a byte that matches nothing, so
// callers can discard one byte and resynchronize (the resync behavior named
// in the state machine's dispatch loop).
func ParseAny(buf []byte) (Frame, int, error) {
	t, err := PeekType(buf)
	if err != nil {
		return nil, 0, err
	}
	switch t {
	case TypeStunLookup:
		f, n, err := ParseStunLookup(buf)
		return f, n, err
	case TypeStunResponse:
		f, n, err := ParseStunResponse(buf)
		return f, n, err
	case TypeNetAlive:
		f, n, err := ParseNetAlive(buf)
		return f, n, err
	case TypeNetGetNode:
		f, n, err := ParseNetGetNode(buf)
		return f, n, err
	case TypeNetGetNodeResponse:
		f, n, err := ParseNetGetNodeResponse(buf)
		return f, n, err
	case TypeNetJoin:
		f, n, err := ParseNetJoin(buf)
		return f, n, err
	case TypeNetJoinResponse:
		f, n, err := ParseNetJoinResponse(buf)
		return f, n, err
	case TypeNetLeaving:
		f, n, err := ParseNetLeaving(buf)
		return f, n, err
	case TypeNetNewRange:
		f, n, err := ParseNetNewRange(buf)
		return f, n, err
	case TypeNetNewRangeResponse:
		f, n, err := ParseNetNewRangeResponse(buf)
		return f, n, err
	case TypeNetCloseConnection:
		f, n, err := ParseNetCloseConnection(buf)
		return f, n, err
	case TypeValInsert:
		f, n, err := ParseValInsert(buf)
		return f, n, err
	case TypeValRemove:
		f, n, err := ParseValRemove(buf)
		return f, n, err
	case TypeValLookup:
		f, n, err := ParseValLookup(buf)
		return f, n, err
	case TypeValLookupResponse:
		f, n, err := ParseValLookupResponse(buf)
		return f, n, err
	default:
		return nil, 0, ErrUnknownType
	}
}
