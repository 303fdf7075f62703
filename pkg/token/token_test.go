package token

import (
	"strings"
	"testing"
)

func TestHashDeterministic(t *testing.T) {
	a := Hash("student_lincoln-high_0")
	b := Hash("student_lincoln-high_0")
	if a != b {
		t.Fatalf("same seed produced different hashes: %s vs %s", a, b)
	}
	if len(a) != 8 {
		t.Fatalf("expected 8-char hash, got %q", a)
	}
	if strings.ToUpper(a) != a {
		t.Fatalf("expected uppercase hash, got %q", a)
	}
}

func TestHashDiffersAcrossSeeds(t *testing.T) {
	if Hash("student_lincoln-high_0") == Hash("student_lincoln-high_1") {
		t.Fatal("adjacent seeds produced identical hashes")
	}
}

func TestStudentTokenDeterminism(t *testing.T) {
	a := Student("lincoln-high", 0)
	b := Student("lincoln-high", 0)
	if a != b {
		t.Fatalf("same roster slot produced different tokens: %s vs %s", a, b)
	}
	if a == Student("lincoln-high", 1) {
		t.Fatal("different roster slots produced the same token")
	}
	if !strings.HasPrefix(a, "TKN_STU_") {
		t.Fatalf("unexpected student token format %q", a)
	}
}

func TestParentDerivedFromStudentToken(t *testing.T) {
	stu := Student("lincoln-high", 3)
	p0 := Parent(stu, 0)
	p1 := Parent(stu, 1)
	if p0 == p1 {
		t.Fatal("sibling parent tokens collided")
	}
	if !IsValidTyped(p0, TypeParent) {
		t.Fatalf("parent token %q failed validation", p0)
	}
}

func TestTokenGrammar(t *testing.T) {
	for _, tok := range []string{
		Student("lincoln-high", 0),
		Teacher("lincoln-high", 2),
		School("district-7", 1),
		Class("lincoln-high", 4),
		Admin("district-7", 0),
		Enrollment(Class("lincoln-high", 4), Student("lincoln-high", 0)),
	} {
		if !IsValid(tok) {
			t.Errorf("generated token %q failed grammar check", tok)
		}
	}
}

func TestIsValidRejectsMalformed(t *testing.T) {
	for _, bad := range []string{
		"",
		"TKN_STU_short",
		"TKN_XXX_00000000",
		"tkn_stu_00000000",
		"TKN_STU_0000000!",
		"TKN_STU_000000000",
	} {
		if IsValid(bad) {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestIsValidTypedRejectsTypeMismatch(t *testing.T) {
	stu := Student("lincoln-high", 0)
	if !IsValidTyped(stu, TypeStudent) {
		t.Fatalf("student token %q rejected for its own type", stu)
	}
	if IsValidTyped(stu, TypeTeacher) {
		t.Fatalf("student token %q accepted as a teacher token", stu)
	}
}

func TestParse(t *testing.T) {
	typ, err := Parse(Teacher("lincoln-high", 9))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if typ != TypeTeacher {
		t.Fatalf("expected TCH, got %s", typ)
	}
	if _, err := Parse("TKN_BOGUS"); err == nil {
		t.Fatal("expected parse error for malformed token")
	}
}

func TestEmailGrammar(t *testing.T) {
	email := Email(TypeStudent, "student_lincoln-high_0", "rosterbridge.io")
	if !IsValidEmail(email) {
		t.Fatalf("tokenized email %q failed grammar check", email)
	}
	if email != Email(TypeStudent, "student_lincoln-high_0", "rosterbridge.io") {
		t.Fatal("tokenized email is not deterministic")
	}
}

func TestPhoneGrammar(t *testing.T) {
	phone := Phone("student_lincoln-high_0")
	if !IsValidPhone(phone) {
		t.Fatalf("tokenized phone %q failed grammar check", phone)
	}
	if phone != Phone("student_lincoln-high_0") {
		t.Fatal("tokenized phone is not deterministic")
	}
}
