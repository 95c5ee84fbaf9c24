package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/cryguy/njs"
	"github.com/cryguy/njs/internal/demo"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Exercise the demo module from Go",
	Long:  `Loads the demo module and drives class Object and Store through the VM boundary. Works on every backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := boot()
		if err != nil {
			return err
		}
		rt, err := njs.New(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		color.White("Backend: %s\n", rt.Backend())
		d := &demoRun{rt: rt}
		d.run()
		if d.failed > 0 {
			return fmt.Errorf("%d of %d checks failed", d.failed, d.total)
		}
		color.Green("All %d checks passed\n", d.total)
		return nil
	},
}

type demoRun struct {
	rt     *njs.Runtime
	total  int
	failed int
}

func (d *demoRun) check(name string, ok bool, detail string) {
	d.total++
	if ok {
		color.Green("  ✓ %s\n", name)
		return
	}
	d.failed++
	fmt.Println(color.RedString("  ✗ %s: %s", name, detail))
}

func (d *demoRun) num(f float64) njs.Value { return njs.ValueOf(d.rt.Context().NewNumber(f)) }
func (d *demoRun) str(s string) njs.Value  { return njs.ValueOf(d.rt.Context().NewString(s)) }

func (d *demoRun) get(o njs.Object, key string) njs.Value {
	v, err := o.Get(key)
	if err != nil {
		return njs.Value{}
	}
	return v
}

func (d *demoRun) run() {
	if err := d.rt.RequireAll(demo.Name); err != nil {
		d.check("load "+demo.Name, false, err.Error())
		return
	}
	exports, _ := d.rt.Require(demo.Name)
	d.object(exports)
	d.store(exports)
}

func (d *demoRun) object(exports njs.Object) {
	color.Cyan("Object\n")
	ctor := d.get(exports, "Object")

	inst, err := d.rt.Construct(ctor, d.num(1), d.num(2))
	if err != nil {
		d.check("new Object(1, 2)", false, err.Error())
		return
	}
	a, b := d.get(inst, "a"), d.get(inst, "b")
	d.check("new Object(1, 2)", a.Float() == 1 && b.Float() == 2, fmt.Sprintf("a=%s b=%s", a, b))

	_, err = d.rt.Call(ctor, njs.ValueOf(d.rt.Context().Undefined()), d.num(1), d.num(2))
	d.check("Object(1, 2) without new throws",
		err != nil && strings.Contains(err.Error(), "Use new operator") && strings.Contains(err.Error(), "Object"),
		fmt.Sprint(err))

	err = inst.Set("a", d.num(math.Pow(2, 32)))
	d.check("a = 2**32 throws", err != nil && d.get(inst, "a").Float() == 1, fmt.Sprint(err))

	err = inst.Set("b", d.num(5))
	d.check("b = 5 throws", err != nil && d.get(inst, "b").Float() == 2, fmt.Sprint(err))

	out, err := d.rt.Call(d.get(inst, "add"), inst.Value(), d.num(1))
	d.check("add(1) returns this", err == nil && out.StrictEquals(inst.Value()), fmt.Sprint(err))
	d.check("add(1) updates a and b", d.get(inst, "a").Float() == 2 && d.get(inst, "b").Float() == 3,
		fmt.Sprintf("a=%s b=%s", d.get(inst, "a"), d.get(inst, "b")))

	out, err = d.rt.Call(d.get(ctor.AsObject(), "staticMul"), ctor, d.num(21), d.num(2))
	d.check("Object.staticMul(21, 2)", err == nil && out.Float() == 42, fmt.Sprint(out, err))
	d.check("instance has no staticMul", d.get(inst, "staticMul").IsUndefined(), "")
}

func (d *demoRun) store(exports njs.Object) {
	ctor := d.get(exports, "Store")
	if !ctor.IsFunction() {
		return
	}
	color.Cyan("Store\n")

	var results []string
	err := d.rt.SetGlobalFunction("__demoDone", func(ctx *njs.FunctionCallContext) njs.Result {
		if e := ctx.Argument(0); !e.IsNull() {
			results = append(results, "error: "+e.String())
			return njs.ResultOk
		}
		results = append(results, ctx.Argument(1).String())
		return njs.ResultOk
	})
	if err != nil {
		d.check("install callback", false, err.Error())
		return
	}
	done := d.get(njs.ObjectOf(d.rt.Context().Global()), "__demoDone")

	store, err := d.rt.Construct(ctor, d.str("demo"))
	if err != nil {
		d.check("new Store('demo')", false, err.Error())
		return
	}
	if _, err := d.rt.Call(d.get(store, "put"), store.Value(), d.str("greeting"), d.str("hello"), done); err != nil {
		d.check("put", false, err.Error())
		return
	}
	d.rt.Drain(0)
	if _, err := d.rt.Call(d.get(store, "get"), store.Value(), d.str("greeting"), done); err != nil {
		d.check("get", false, err.Error())
		return
	}
	d.rt.Drain(0)
	d.check("put then get", len(results) == 2 && results[1] == "hello", strings.Join(results, ", "))

	ro, err := d.rt.Construct(ctor, d.str("demo"), d.str("read-only"))
	if err != nil {
		d.check("new Store('demo', 'read-only')", false, err.Error())
		return
	}
	_, err = d.rt.Call(d.get(ro, "put"), ro.Value(), d.str("k"), d.str("v"), done)
	d.check("read-only put throws", err != nil, "")
}
