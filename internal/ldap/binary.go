package ldap

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/go-objectsid"
	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
)

const (
	// GUIDBytesLength is the length of a binary objectGUID.
	GUIDBytesLength = 16

	// minSIDBytesLength covers revision, sub-authority count and identifier authority.
	minSIDBytesLength = 8

	attrObjectGUID = "objectGUID"
	attrObjectSID  = "objectSid"
	attrUnicodePwd = "unicodePwd"
	attrUAC        = "userAccountControl"
)

// binaryAttributes are decoded to their string form in search results.
var binaryAttributes = map[string]func([]byte) (string, error){
	strings.ToLower(attrObjectGUID): GUIDBytesToString,
	strings.ToLower(attrObjectSID):  SIDBytesToString,
}

// GUIDBytesToString converts an Active Directory objectGUID to its
// canonical string form. AD stores the first three groups little-endian.
func GUIDBytesToString(b []byte) (string, error) {
	if len(b) != GUIDBytesLength {
		return "", fmt.Errorf("invalid GUID byte length: expected %d, got %d", GUIDBytesLength, len(b))
	}

	var u uuid.UUID
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	copy(u[8:], b[8:])

	return u.String(), nil
}

// GUIDStringToBytes is the inverse of GUIDBytesToString.
func GUIDStringToBytes(s string) ([]byte, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid GUID %q: %w", s, err)
	}

	b := make([]byte, GUIDBytesLength)
	b[0], b[1], b[2], b[3] = u[3], u[2], u[1], u[0]
	b[4], b[5] = u[5], u[4]
	b[6], b[7] = u[7], u[6]
	copy(b[8:], u[8:])

	return b, nil
}

// SIDBytesToString converts a binary objectSid to S-1-5-21-... form.
func SIDBytesToString(b []byte) (string, error) {
	if len(b) < minSIDBytesLength {
		return "", fmt.Errorf("invalid SID byte length: %d", len(b))
	}

	// Sub-authority count must match the remaining bytes.
	if want := minSIDBytesLength + 4*int(b[1]); len(b) != want {
		return "", fmt.Errorf("invalid SID byte length: expected %d, got %d", want, len(b))
	}

	return objectsid.Decode(b).String(), nil
}

// EncodePassword encodes a password for the unicodePwd attribute: the
// value enclosed in double quotes, as UTF-16LE.
func EncodePassword(password string) (string, error) {
	encoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	encoded, err := encoder.String(`"` + password + `"`)
	if err != nil {
		return "", fmt.Errorf("failed to encode password: %w", err)
	}
	return encoded, nil
}
