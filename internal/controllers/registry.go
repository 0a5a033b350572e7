// Package controllers provides builtin controllers implementing the
// sandbox contract, plus a name registry for the CLI.
package controllers

import (
	"fmt"
	"sort"

	"github.com/san-kum/pendubot/internal/sandbox"
)

type Registry struct {
	builders map[string]func(gains map[string]float64) sandbox.Controller
}

func NewRegistry() *Registry {
	r := &Registry{
		builders: make(map[string]func(map[string]float64) sandbox.Controller),
	}

	r.builders["none"] = func(gains map[string]float64) sandbox.Controller {
		return NewZero()
	}
	r.builders["pd"] = func(gains map[string]float64) sandbox.Controller {
		kp := gains["kp"]
		if kp == 0 {
			kp = 25.0
		}
		kd := gains["kd"]
		if kd == 0 {
			kd = 4.0
		}
		return NewPD(kp, kd, int(gains["delay"]))
	}
	r.builders["lqr"] = func(gains map[string]float64) sandbox.Controller {
		if k1, ok := gains["k1"]; ok {
			return NewLQR([4]float64{k1, gains["k2"], gains["k3"], gains["k4"]})
		}
		return NewBalanceLQR()
	}
	r.builders["swingup"] = func(gains map[string]float64) sandbox.Controller {
		g := gains["gain"]
		if g == 0 {
			g = 2.0
		}
		return NewSwingUp(g)
	}

	return r
}

func (r *Registry) Get(name string, gains map[string]float64) (sandbox.Controller, error) {
	fn, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", name)
	}
	return fn(gains), nil
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
