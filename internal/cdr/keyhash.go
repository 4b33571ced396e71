// Package cdr implements the classic CDR encoding rules this runtime needs
// outside the submessage framing proper: key-field serialization for
// instance handles, and the parameter-list TLV codec used for inline QoS.
package cdr

import (
	"crypto/md5"

	"godds/internal/rtpscore"
)

// KeyHash folds a classic-CDR little-endian serialized key (the
// concatenation of a sample's key fields in declaration order, per
// spec.md §4.1) into a 16-byte InstanceHandle: used as-is if 16 bytes or
// shorter (zero-padded), MD5-hashed otherwise, per the RTPS key-hash rule.
func KeyHash(serializedKey []byte) rtpscore.InstanceHandle {
	var h rtpscore.InstanceHandle
	if len(serializedKey) <= 16 {
		copy(h[:], serializedKey)
		return h
	}
	sum := md5.Sum(serializedKey)
	return rtpscore.InstanceHandle(sum)
}
