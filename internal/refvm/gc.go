package refvm

import (
	log "github.com/sirupsen/logrus"
)

// Collect runs a full mark/sweep pass. Roots are the intrinsic objects,
// strong persistents, locals of open scopes, the pending exception and
// everything reachable from instantiated templates. Weak persistents whose
// target is unreachable have their callbacks run before the sweep; each
// callback must Reset its persistent.
func (vm *VM) Collect() int {
	for o := range vm.heap {
		o.marked = false
	}

	var stack []*object
	push := func(v jsval) {
		if v.o != nil && !v.o.marked {
			v.o.marked = true
			stack = append(stack, v.o)
		}
	}
	pushObj := func(o *object) {
		if o != nil {
			push(objectVal(o))
		}
	}

	pushObj(vm.global)
	pushObj(vm.objectProto)
	pushObj(vm.functionProto)
	pushObj(vm.errorProto)
	for p := range vm.persistents {
		if !p.weak {
			push(p.val)
		}
	}
	for _, sc := range vm.scopes {
		for _, l := range sc.locals {
			push(l.val)
		}
	}
	if vm.pending != nil {
		push(*vm.pending)
	}
	for _, t := range vm.templates {
		push(t.data)
		pushObj(t.fn)
		if t.proto != nil {
			for _, p := range t.proto.props {
				if p.acc != nil {
					push(p.acc.data)
				}
			}
		}
	}

	for len(stack) > 0 {
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		pushObj(o.proto)
		for _, p := range o.props {
			push(p.value)
			if p.acc != nil {
				push(p.acc.data)
			}
		}
		for _, s := range o.slots {
			if l, ok := s.(*local); ok {
				push(l.val)
			}
		}
	}

	var weak []*persistent
	for p := range vm.persistents {
		if p.weak && p.val.o != nil && !p.val.o.marked {
			weak = append(weak, p)
		}
	}
	vm.fireWeak(weak)

	freed := 0
	for o := range vm.heap {
		if !o.marked {
			delete(vm.heap, o)
			freed++
		}
	}
	log.WithField("freed", freed).Debug("refvm: collect")
	return freed
}

func (vm *VM) fireWeak(weak []*persistent) {
	for _, p := range weak {
		cb := p.cb
		if cb == nil {
			p.Reset()
			continue
		}
		cb()
		if p.set {
			panic("refvm: weak callback did not reset its persistent")
		}
	}
}
