package wire

import "godds/internal/rtpscore"

// InfoTS flags.
const InfoTSFlagInvalidate = 0x02

// InfoTS sets the source timestamp applied to subsequent Data/DataFrag
// submessages in the same message.
type InfoTS struct {
	Invalidate bool
	Timestamp  rtpscore.Time // ignored if Invalidate
}

// Encode serializes this InfoTS submessage body.
func (t InfoTS) Encode() (body []byte, flags byte) {
	if t.Invalidate {
		return nil, InfoTSFlagInvalidate
	}
	w := newElementWriter(littleEndian)
	w.putTime(t.Timestamp)
	return w.bytes(), 0
}

// DecodeInfoTS parses an InfoTS submessage body.
func DecodeInfoTS(raw RawSubmessage) (InfoTS, error) {
	if raw.Flags&InfoTSFlagInvalidate != 0 {
		return InfoTS{Invalidate: true}, nil
	}
	r := newElementReader(raw.order(), raw.Body)
	ts, err := r.getTime()
	if err != nil {
		return InfoTS{}, err
	}
	return InfoTS{Timestamp: ts}, nil
}

// InfoDst overrides the destination GuidPrefix for subsequent submessages,
// letting a writer address a reader proxy directly within a shared
// datagram.
type InfoDst struct {
	GuidPrefix rtpscore.GuidPrefix
}

// Encode serializes this InfoDst submessage body.
func (d InfoDst) Encode() (body []byte, flags byte) {
	w := newElementWriter(littleEndian)
	w.putGuidPrefix(d.GuidPrefix)
	return w.bytes(), 0
}

// DecodeInfoDst parses an InfoDst submessage body.
func DecodeInfoDst(raw RawSubmessage) (InfoDst, error) {
	r := newElementReader(raw.order(), raw.Body)
	p, err := r.getGuidPrefix()
	if err != nil {
		return InfoDst{}, err
	}
	return InfoDst{GuidPrefix: p}, nil
}

// InfoSrc overrides the apparent source of subsequent submessages
// (protocol version, vendor id, guid prefix) — used when relaying.
type InfoSrc struct {
	Version    ProtocolVersion
	VendorID   VendorID
	GuidPrefix rtpscore.GuidPrefix
}

// Encode serializes this InfoSrc submessage body.
func (s InfoSrc) Encode() (body []byte, flags byte) {
	w := newElementWriter(littleEndian)
	w.putU32(0) // unused
	w.putByte(s.Version.Major)
	w.putByte(s.Version.Minor)
	w.putByte(s.VendorID[0])
	w.putByte(s.VendorID[1])
	w.putGuidPrefix(s.GuidPrefix)
	return w.bytes(), 0
}

// DecodeInfoSrc parses an InfoSrc submessage body.
func DecodeInfoSrc(raw RawSubmessage) (InfoSrc, error) {
	r := newElementReader(raw.order(), raw.Body)
	if _, err := r.getU32(); err != nil {
		return InfoSrc{}, err
	}
	major, err := r.getByte()
	if err != nil {
		return InfoSrc{}, err
	}
	minor, err := r.getByte()
	if err != nil {
		return InfoSrc{}, err
	}
	v0, err := r.getByte()
	if err != nil {
		return InfoSrc{}, err
	}
	v1, err := r.getByte()
	if err != nil {
		return InfoSrc{}, err
	}
	prefix, err := r.getGuidPrefix()
	if err != nil {
		return InfoSrc{}, err
	}
	return InfoSrc{
		Version:    ProtocolVersion{Major: major, Minor: minor},
		VendorID:   VendorID{v0, v1},
		GuidPrefix: prefix,
	}, nil
}

// InfoReply flags.
const InfoReplyFlagMulticast = 0x02

// InfoReply supplies locators a receiver should use to reply to the
// sender of a best-effort stateless message (used by SPDP replies).
type InfoReply struct {
	UnicastLocators   []rtpscore.Locator
	MulticastLocators []rtpscore.Locator // present iff Multicast flag set
}

// Encode serializes this InfoReply submessage body.
func (r InfoReply) Encode() (body []byte, flags byte) {
	w := newElementWriter(littleEndian)
	w.putU32(uint32(len(r.UnicastLocators)))
	for _, l := range r.UnicastLocators {
		w.putLocator(l)
	}
	if len(r.MulticastLocators) > 0 {
		flags |= InfoReplyFlagMulticast
		w.putU32(uint32(len(r.MulticastLocators)))
		for _, l := range r.MulticastLocators {
			w.putLocator(l)
		}
	}
	return w.bytes(), flags
}

// DecodeInfoReply parses an InfoReply submessage body.
func DecodeInfoReply(raw RawSubmessage) (InfoReply, error) {
	r := newElementReader(raw.order(), raw.Body)
	n, err := r.getU32()
	if err != nil {
		return InfoReply{}, err
	}
	var out InfoReply
	for i := uint32(0); i < n; i++ {
		l, err := r.getLocator()
		if err != nil {
			return InfoReply{}, err
		}
		out.UnicastLocators = append(out.UnicastLocators, l)
	}
	if raw.Flags&InfoReplyFlagMulticast != 0 {
		m, err := r.getU32()
		if err != nil {
			return InfoReply{}, err
		}
		for i := uint32(0); i < m; i++ {
			l, err := r.getLocator()
			if err != nil {
				return InfoReply{}, err
			}
			out.MulticastLocators = append(out.MulticastLocators, l)
		}
	}
	return out, nil
}

// Pad is a no-op filler submessage.
type Pad struct{}

// Encode serializes this Pad submessage body (always empty).
func (Pad) Encode() (body []byte, flags byte) { return nil, 0 }
