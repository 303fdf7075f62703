package token

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is the entity class encoded into a vault token.
type Type string

const (
	TypeStudent    Type = "STU"
	TypeTeacher    Type = "TCH"
	TypeParent     Type = "PAR"
	TypeSchool     Type = "SCH"
	TypeClass      Type = "CLS"
	TypeEnrollment Type = "ENR"
	TypeAdmin      Type = "ADM"
)

const hashLength = 8

// Hash renders a seed as an 8-character uppercase base36 string using a
// 32-bit rolling hash. Identical seeds always produce identical hashes,
// which is what makes demo/test reseeding idempotent. The 32-bit space means
// collisions are expected around tens of thousands of entities; the vault
// store's uniqueness constraints are the safety net, not this function.
func Hash(seed string) string {
	var h int32
	for _, r := range seed {
		h = h*31 + int32(r)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}

	s := strings.ToUpper(strconv.FormatInt(v, 36))
	if len(s) < hashLength {
		s = strings.Repeat("0", hashLength-len(s)) + s
	}
	return s
}

// New builds a vault token of the form TKN_{TYPE}_{hash}.
func New(t Type, seed string) string {
	return fmt.Sprintf("TKN_%s_%s", t, Hash(seed))
}

// Student derives a student token from a school and a roster index.
func Student(schoolID string, index int) string {
	return New(TypeStudent, fmt.Sprintf("student_%s_%d", schoolID, index))
}

func Teacher(schoolID string, index int) string {
	return New(TypeTeacher, fmt.Sprintf("teacher_%s_%d", schoolID, index))
}

// Parent derives a parent token from the child's token, so the two are
// unlinkable without the vault mapping.
func Parent(studentToken string, index int) string {
	return New(TypeParent, fmt.Sprintf("parent_%s_%d", studentToken, index))
}

func School(districtID string, index int) string {
	return New(TypeSchool, fmt.Sprintf("school_%s_%d", districtID, index))
}

func Class(schoolID string, index int) string {
	return New(TypeClass, fmt.Sprintf("class_%s_%d", schoolID, index))
}

func Enrollment(classToken, studentToken string) string {
	return New(TypeEnrollment, fmt.Sprintf("enrollment_%s_%s", classToken, studentToken))
}

func Admin(districtID string, index int) string {
	return New(TypeAdmin, fmt.Sprintf("admin_%s_%d", districtID, index))
}

// Email builds a relay address that carries the token instead of a real
// mailbox: TKN_{TYPE}_{hash}@relay.{domain} with the hash lowercased.
func Email(t Type, seed, domain string) string {
	return fmt.Sprintf("TKN_%s_%s@relay.%s", t, strings.ToLower(Hash(seed)), domain)
}

// Phone builds a tokenized phone number in the reserved 555 exchange. The
// 3+4 digit groups come from the seed hash with non-digit characters mapped
// to zero.
func Phone(seed string) string {
	digits := make([]byte, 0, hashLength)
	for _, c := range Hash(seed) {
		if c >= '0' && c <= '9' {
			digits = append(digits, byte(c))
		} else {
			digits = append(digits, '0')
		}
	}
	return fmt.Sprintf("TKN_555_%s_%s", digits[:3], digits[3:7])
}
