package types

// Assignable reports whether S <: T.
func Assignable(s, t Type) bool {
	if s == nil || t == nil {
		return false
	}
	// Error placeholders are assignable in both directions so that one
	// failed construct does not cascade.
	if _, ok := s.(*ErrorType); ok {
		return true
	}
	if _, ok := t.(*ErrorType); ok {
		return true
	}
	if s.Key() == t.Key() {
		return true
	}

	// Never on the left is a subtype of everything.
	if _, ok := s.(*NeverType); ok {
		return true
	}

	// This resolves to the containing class specialization.
	if st, ok := s.(*ThisType); ok {
		return Assignable(st.Class, t)
	}
	if tt, ok := t.(*ThisType); ok {
		return Assignable(s, tt.Class)
	}

	// Anything goes to anyref, as long as it is a reference.
	if _, ok := t.(*AnyRefType); ok {
		return IsReference(s)
	}

	// Null is assignable to reference types and to unions that carry null.
	if _, ok := s.(*NullType); ok {
		if union, ok := t.(*UnionType); ok {
			return union.ContainsNull()
		}
		return IsReference(t)
	}

	// Union on the left: every member must fit the target.
	if su, ok := s.(*UnionType); ok {
		for _, m := range su.Members {
			if !Assignable(m, t) {
				return false
			}
		}
		return true
	}

	// Union on the right: some member must accept the source.
	if tu, ok := t.(*UnionType); ok {
		for _, m := range tu.Members {
			if Assignable(s, m) {
				return true
			}
		}
		return false
	}

	// A literal is assignable to its base primitive.
	if sl, ok := s.(*LitType); ok {
		return Assignable(sl.Base(), t)
	}

	switch t := t.(type) {
	case *ClassType:
		sc, ok := s.(*ClassType)
		if !ok {
			return false
		}
		return classExtends(sc, t)
	case *InterfaceType:
		switch s := s.(type) {
		case *ClassType:
			return classImplements(s, t)
		case *InterfaceType:
			return interfaceExtends(s, t)
		default:
			return false
		}
	case *FuncType:
		sf, ok := s.(*FuncType)
		if !ok {
			return false
		}
		return funcAssignable(sf, t)
	default:
		// Remaining kinds (primitives, arrays, tuples, records, enums,
		// distinct types, symbols) are invariant: equal keys only, which
		// was already checked.
		return false
	}
}

// classExtends walks s's extends chain with substituted type arguments
// looking for t. Type arguments are invariant.
func classExtends(s *ClassType, t *ClassType) bool {
	for c := s; c != nil; c = superOf(c) {
		if c.Def == t.Def && sameArgs(c.TypeArgs, t.TypeArgs) {
			return true
		}
	}
	return false
}

// superOf returns s's superclass with s's type arguments substituted in.
func superOf(s *ClassType) *ClassType {
	if s.Def.Super == nil {
		return nil
	}
	mapping := NewSubst(s.Def.TypeParams, s.TypeArgs)
	return substitute(s.Def.Super, mapping).(*ClassType)
}

// classImplements checks the implementing relation by interface declaration
// identity, not by name.
func classImplements(s *ClassType, t *InterfaceType) bool {
	for c := s; c != nil; c = superOf(c) {
		mapping := NewSubst(c.Def.TypeParams, c.TypeArgs)
		for _, iface := range c.Def.Interfaces {
			sub := substitute(iface, mapping).(*InterfaceType)
			if interfaceExtends(sub, t) {
				return true
			}
		}
		for _, mixin := range c.Def.Mixins {
			_ = substitute(mixin, mapping)
		}
	}
	return false
}

func interfaceExtends(s *InterfaceType, t *InterfaceType) bool {
	if s.Def == t.Def && sameArgs(s.TypeArgs, t.TypeArgs) {
		return true
	}
	mapping := NewSubst(s.Def.TypeParams, s.TypeArgs)
	for _, ext := range s.Def.Extends {
		sub := substitute(ext, mapping).(*InterfaceType)
		if interfaceExtends(sub, t) {
			return true
		}
	}
	return false
}

func sameArgs(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key() != b[i].Key() {
			return false
		}
	}
	return true
}

// funcAssignable: parameters are contravariant, returns covariant. A source
// with fewer parameters than the target is allowed; the call simply ignores
// the extra arguments (codegen inserts an adapter).
func funcAssignable(s *FuncType, t *FuncType) bool {
	if len(s.Params) > len(t.Params) {
		return false
	}
	for i, sp := range s.Params {
		if !Assignable(t.Params[i].Type, sp.Type) {
			return false
		}
	}
	if _, ok := t.Return.(*VoidType); ok {
		return true
	}
	return Assignable(s.Return, t.Return)
}

// MixesPrimitiveAndReference reports whether members holds both an unboxed
// scalar and a reference type. The target has no storage type that holds
// both, so such unions are rejected.
func MixesPrimitiveAndReference(members []Type) bool {
	hasPrim := false
	hasRef := false
	for _, m := range members {
		if IsPrimitiveValue(m) {
			hasPrim = true
		} else if IsReference(m) {
			hasRef = true
		}
	}
	return hasPrim && hasRef
}
