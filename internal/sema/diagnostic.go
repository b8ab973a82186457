package sema

import (
	"fmt"

	"github.com/loom-lang/loom/internal/ast"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Code identifies one diagnostic condition. Codes are stable and appear in
// printed output between brackets.
type Code string

const (
	SymbolNotFound                  Code = "SymbolNotFound"
	TypeMismatch                    Code = "TypeMismatch"
	PropertyNotFound                Code = "PropertyNotFound"
	ConstructorInMixin              Code = "ConstructorInMixin"
	DecoratorNotAllowed             Code = "DecoratorNotAllowed"
	UnknownIntrinsic                Code = "UnknownIntrinsic"
	NonExhaustiveMatch              Code = "NonExhaustiveMatch"
	UnreachableCase                 Code = "UnreachableCase"
	CannotExtendFinal               Code = "CannotExtendFinal"
	CannotOverrideFinal             Code = "CannotOverrideFinal"
	AbstractInstantiation           Code = "AbstractInstantiation"
	AbstractMethodOutsideAbstract   Code = "AbstractMethodOutsideAbstract"
	AbstractMethodNotImplemented    Code = "AbstractMethodNotImplemented"
	ConstraintViolation             Code = "ConstraintViolation"
	ArgumentCountMismatch           Code = "ArgumentCountMismatch"
	UnionMixesPrimitiveAndReference Code = "UnionMixesPrimitiveAndReference"
	FieldAccessBeforeInitialization Code = "FieldAccessBeforeInitialization"
	InvalidCast                     Code = "InvalidCast"
	NotCallable                     Code = "NotCallable"
	MixinRequirementUnmet           Code = "MixinRequirementUnmet"
	WrongDeclarationKind            Code = "WrongDeclarationKind"
	DuplicateDeclaration            Code = "DuplicateDeclaration"
	ImportCycle                     Code = "ImportCycle"
	ParseError                      Code = "ParseError"
	UnusedImport                    Code = "UnusedImport"
	NotAssignable                   Code = "NotAssignable"
	ImmutableBinding                Code = "ImmutableBinding"
)

type Diagnostic struct {
	Code     Code
	Message  string
	Severity Severity
	File     string // canonical path, "" when no location applies
	Span     ast.Span
}

func (d *Diagnostic) String() string {
	loc := ""
	if d.File != "" {
		loc = fmt.Sprintf("%s:%d:%d: ", d.File, d.Span.Start.Line, d.Span.Start.Column)
	}
	return fmt.Sprintf("%s%s: %s [%s]", loc, d.Severity, d.Message, d.Code)
}

func NewError(code Code, file string, span ast.Span, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityError,
		File:     file,
		Span:     span,
	}
}

func NewWarning(code Code, file string, span ast.Span, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityWarning,
		File:     file,
		Span:     span,
	}
}
