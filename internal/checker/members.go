package checker

import (
	"github.com/loom-lang/loom/internal/types"
)

// member is the result of looking a name up on a type: either a field or a
// method/accessor, with the owning class and the signature substituted for
// the receiver's type arguments.
type member struct {
	Field  *types.FieldDef
	Method *types.MethodDef
	Owner  *types.ClassDef
	Type   types.Type // field type, or the method signature as a FuncType
}

// lookupMember resolves a member on a class specialization, walking the
// extends chain and applied mixins with substituted type arguments. Private
// members are visible only when includePrivate is set (accesses from inside
// the declaring class).
func (c *Checker) lookupMember(class *types.ClassType, name string, includePrivate bool) *member {
	in := c.Sema.Interner
	for cur := class; cur != nil; cur = c.superOf(cur) {
		mapping := types.NewSubst(cur.Def.TypeParams, cur.TypeArgs)
		if f := cur.Def.FindField(name); f != nil {
			if f.Private && !includePrivate {
				return nil
			}
			t := types.Substitute(in, f.Type, mapping)
			t = in.Intern(types.ResolveThis(t, class))
			return &member{Field: f, Method: nil, Owner: cur.Def, Type: t}
		}
		if m := cur.Def.FindMethod(name); m != nil {
			if m.Private && !includePrivate {
				return nil
			}
			sub := types.SubstituteMethod(m, mapping)
			sig := in.Intern(types.ResolveThis(sub.Sig(), class))
			return &member{Field: nil, Method: sub, Owner: cur.Def, Type: sig}
		}
		for _, mixin := range cur.Def.Mixins {
			mixinMapping := types.NewSubst(mixin.Def.TypeParams, substituteArgs(mixin.TypeArgs, mapping))
			for _, f := range mixin.Def.Fields {
				if f.Name != name || (f.Private && !includePrivate) {
					continue
				}
				t := types.Substitute(in, f.Type, mixinMapping)
				t = in.Intern(types.ResolveThis(t, class))
				return &member{Field: f, Method: nil, Owner: cur.Def, Type: t}
			}
			for _, m := range mixin.Def.Methods {
				if m.Name != name || (m.Private && !includePrivate) {
					continue
				}
				sub := types.SubstituteMethod(m, mixinMapping)
				sig := in.Intern(types.ResolveThis(sub.Sig(), class))
				return &member{Field: nil, Method: sub, Owner: cur.Def, Type: sig}
			}
		}
	}
	return nil
}

func substituteArgs(args []types.Type, mapping types.Subst) []types.Type {
	out := make([]types.Type, len(args))
	for i, a := range args {
		out[i] = types.Substitute(nil, a, mapping)
	}
	return out
}

// superOf returns the substituted superclass specialization of a class.
func (c *Checker) superOf(class *types.ClassType) *types.ClassType {
	if class.Def.Super == nil {
		return nil
	}
	mapping := types.NewSubst(class.Def.TypeParams, class.TypeArgs)
	super := types.Substitute(c.Sema.Interner, class.Def.Super, mapping)
	return super.(*types.ClassType)
}

// lookupInterfaceMember resolves a member on an interface specialization,
// including extended interfaces.
func (c *Checker) lookupInterfaceMember(iface *types.InterfaceType, name string) *member {
	in := c.Sema.Interner
	mapping := types.NewSubst(iface.Def.TypeParams, iface.TypeArgs)
	if m := iface.Def.FindMethod(name); m != nil {
		sub := types.SubstituteMethod(m, mapping)
		return &member{Field: nil, Method: sub, Owner: nil, Type: in.Intern(sub.Sig())}
	}
	for _, ext := range iface.Def.Extends {
		sub := types.Substitute(in, ext, mapping).(*types.InterfaceType)
		if found := c.lookupInterfaceMember(sub, name); found != nil {
			return found
		}
	}
	return nil
}

// unimplementedAbstract collects every abstract method reachable through the
// inheritance chain that lacks a non-abstract implementation at or below the
// class it was collected from.
func (c *Checker) unimplementedAbstract(class *types.ClassType) []*types.MethodDef {
	var missing []*types.MethodDef
	seen := make(map[string]bool)
	for cur := class; cur != nil; cur = c.superOf(cur) {
		for _, m := range cur.Def.Methods {
			if seen[m.Name] {
				continue
			}
			seen[m.Name] = true
			if !m.Abstract {
				continue
			}
			// An implementation must exist somewhere at or below cur.
			if impl := c.lookupMember(class, m.Name, true); impl == nil || impl.Method == nil || impl.Method.Abstract {
				missing = append(missing, m)
			}
		}
	}
	return missing
}

// overridden finds the method a subclass member overrides, searching the
// chain above the declaring class with substituted signatures.
func (c *Checker) overridden(class *types.ClassType, name string) *member {
	super := c.superOf(class)
	if super == nil {
		return nil
	}
	return c.lookupMember(super, name, true)
}

// mixinRequirementMet reports whether base is reachable through the class's
// extends/mixins chain.
func (c *Checker) mixinRequirementMet(class *types.ClassType, base *types.ClassDef) bool {
	for cur := class; cur != nil; cur = c.superOf(cur) {
		if cur.Def == base {
			return true
		}
		for _, mixin := range cur.Def.Mixins {
			if mixin.Def.On != nil && mixin.Def.On.Def == base {
				return true
			}
		}
	}
	return false
}
