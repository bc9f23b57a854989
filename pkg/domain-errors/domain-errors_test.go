package domainerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives.
//
// Justification: These are core error primitives used at every trust boundary.
// Unit tests ensure invariants like "wrapped domain errors preserve original code"
// and "errors.Is matches by code" are maintained.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeRateLimited, Message: "too many profile updates"}
		s.Equal("too many profile updates", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeRateLimited}
		s.Equal("rate_limited", err.Error())
	})
}

func (s *DomainErrorsSuite) TestUnwrap() {
	s.Run("returns wrapped error", func() {
		inner := errors.New("store lookup failed")
		err := &Error{Code: CodeInternal, Message: "service error", Err: inner}
		s.Equal(inner, err.Unwrap())
	})

	s.Run("returns nil when no wrapped error", func() {
		err := &Error{Code: CodeNotFound, Message: "profile not found"}
		s.Nil(err.Unwrap())
	})
}

func (s *DomainErrorsSuite) TestIsMatching() {
	s.Run("matches by code only", func() {
		err1 := &Error{Code: CodeSuspiciousInput, Message: "xss detected"}
		err2 := &Error{Code: CodeSuspiciousInput, Message: "sql injection detected"}
		s.True(err1.Is(err2))
	})

	s.Run("does not match different codes", func() {
		err1 := &Error{Code: CodeSuspiciousInput}
		err2 := &Error{Code: CodeInternal}
		s.False(err1.Is(err2))
	})
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("wraps plain error with new code", func() {
		inner := errors.New("boom")
		err := Wrap(inner, CodeInternal, "guard internals failed")

		s.True(HasCode(err, CodeInternal))
		s.ErrorIs(err, inner)
	})

	s.Run("preserves existing domain code", func() {
		inner := New(CodeRateLimited, "blocked")
		err := Wrap(inner, CodeInternal, "while checking admission")

		s.True(HasCode(err, CodeRateLimited))
		s.False(HasCode(err, CodeInternal))
		s.Equal("while checking admission", err.Error())
	})
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.Run("false for nil", func() {
		s.False(HasCode(nil, CodeInternal))
	})

	s.Run("false for non-domain error", func() {
		s.False(HasCode(errors.New("plain"), CodeInternal))
	})
}
