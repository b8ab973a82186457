package types

// Subst maps type parameters (by their TypeParamType key) to replacement
// types.
type Subst map[string]Type

// NewSubst pairs a declaration's parameters with concrete arguments.
func NewSubst(params []*TypeParamDef, args []Type) Subst {
	m := make(Subst, len(params))
	for i, p := range params {
		if i < len(args) {
			m[p.Ref().Key()] = args[i]
		}
	}
	return m
}

// Substitute replaces every in-scope type parameter of t according to
// mapping, recursing through all constructors. Substitution is pure: t is
// never mutated. When in is non-nil the result is canonicalized.
func Substitute(in *Interner, t Type, mapping Subst) Type {
	if len(mapping) == 0 {
		return t
	}
	result := substitute(t, mapping)
	if in != nil {
		result = in.Intern(result)
	}
	return result
}

func substituteAll(ts []Type, mapping Subst) ([]Type, bool) {
	changed := false
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = substitute(t, mapping)
		if out[i] != t {
			changed = true
		}
	}
	return out, changed
}

func substitute(t Type, mapping Subst) Type {
	switch t := t.(type) {
	case *TypeParamType:
		if repl, ok := mapping[t.Key()]; ok {
			return repl
		}
		return t
	case *FixedArrayType:
		elem := substitute(t.Elem, mapping)
		if elem == t.Elem {
			return t
		}
		return &FixedArrayType{Elem: elem}
	case *ArrayType:
		elem := substitute(t.Elem, mapping)
		if elem == t.Elem {
			return t
		}
		return &ArrayType{Elem: elem}
	case *TupleType:
		elems, changed := substituteAll(t.Elems, mapping)
		if !changed {
			return t
		}
		return &TupleType{Elems: elems}
	case *RecordType:
		changed := false
		fields := make(map[string]Type)
		t.Fields.Scan(func(name string, ft Type) bool {
			nt := substitute(ft, mapping)
			if nt != ft {
				changed = true
			}
			fields[name] = nt
			return true
		})
		if !changed {
			return t
		}
		return NewRecordType(fields)
	case *UnionType:
		members, changed := substituteAll(t.Members, mapping)
		if !changed {
			return t
		}
		// Preserve normalisation: sorting can change after substitution.
		scratch := NewInterner()
		return scratch.Union(members...)
	case *FuncType:
		// Parameters bound by the function's own type parameter list shadow
		// the outer mapping.
		inner := mapping
		if len(t.TypeParams) > 0 {
			inner = make(Subst, len(mapping))
			for k, v := range mapping {
				inner[k] = v
			}
			for _, tp := range t.TypeParams {
				delete(inner, tp.Ref().Key())
			}
		}
		changed := false
		params := make([]*ParamDef, len(t.Params))
		for i, p := range t.Params {
			nt := substitute(p.Type, inner)
			if nt != p.Type {
				changed = true
				params[i] = &ParamDef{Name: p.Name, Type: nt}
			} else {
				params[i] = p
			}
		}
		ret := substitute(t.Return, inner)
		if ret != t.Return {
			changed = true
		}
		if !changed {
			return t
		}
		return &FuncType{TypeParams: t.TypeParams, Params: params, Return: ret}
	case *ClassType:
		args, changed := substituteAll(t.TypeArgs, mapping)
		if !changed {
			return t
		}
		return &ClassType{Def: t.Def, TypeArgs: args}
	case *InterfaceType:
		args, changed := substituteAll(t.TypeArgs, mapping)
		if !changed {
			return t
		}
		return &InterfaceType{Def: t.Def, TypeArgs: args}
	case *MixinType:
		args, changed := substituteAll(t.TypeArgs, mapping)
		if !changed {
			return t
		}
		return &MixinType{Def: t.Def, TypeArgs: args}
	case *ThisType:
		class := substitute(t.Class, mapping)
		if class == Type(t.Class) {
			return t
		}
		return &ThisType{Class: class.(*ClassType)}
	case *DistinctType:
		// Distinct types are invariant in their underlying type; the alias
		// identity does not change under substitution of outer parameters.
		inner := substitute(t.Inner, mapping)
		if inner == t.Inner {
			return t
		}
		return &DistinctType{Inner: inner, Def: t.Def}
	default:
		return t
	}
}

// SubstituteMethod substitutes into a method's signature, leaving the body
// AST untouched; bodies are substituted during codegen monomorphization.
func SubstituteMethod(m *MethodDef, mapping Subst) *MethodDef {
	params := make([]*ParamDef, len(m.Params))
	for i, p := range m.Params {
		params[i] = &ParamDef{Name: p.Name, Type: substitute(p.Type, mapping)}
	}
	return &MethodDef{
		Name:       m.Name,
		Kind:       m.Kind,
		TypeParams: m.TypeParams,
		Params:     params,
		Return:     substitute(m.Return, mapping),
		Private:    m.Private,
		Static:     m.Static,
		Final:      m.Final,
		Abstract:   m.Abstract,
		Intrinsic:  m.Intrinsic,
		Body:       m.Body,
		AST:        m.AST,
	}
}

// ResolveThis replaces This with the given class specialization.
func ResolveThis(t Type, class *ClassType) Type {
	switch t := t.(type) {
	case *ThisType:
		return class
	case *FuncType:
		params := make([]*ParamDef, len(t.Params))
		changed := false
		for i, p := range t.Params {
			nt := ResolveThis(p.Type, class)
			if nt != p.Type {
				changed = true
			}
			params[i] = &ParamDef{Name: p.Name, Type: nt}
		}
		ret := ResolveThis(t.Return, class)
		if !changed && ret == t.Return {
			return t
		}
		return &FuncType{TypeParams: t.TypeParams, Params: params, Return: ret}
	case *UnionType:
		members, changed := resolveThisAll(t.Members, class)
		if !changed {
			return t
		}
		return &UnionType{Members: members}
	case *FixedArrayType:
		elem := ResolveThis(t.Elem, class)
		if elem == t.Elem {
			return t
		}
		return &FixedArrayType{Elem: elem}
	case *ArrayType:
		elem := ResolveThis(t.Elem, class)
		if elem == t.Elem {
			return t
		}
		return &ArrayType{Elem: elem}
	case *TupleType:
		elems, changed := resolveThisAll(t.Elems, class)
		if !changed {
			return t
		}
		return &TupleType{Elems: elems}
	default:
		return t
	}
}

func resolveThisAll(ts []Type, class *ClassType) ([]Type, bool) {
	changed := false
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = ResolveThis(t, class)
		if out[i] != t {
			changed = true
		}
	}
	return out, changed
}
