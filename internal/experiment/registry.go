package experiment

import (
	"fmt"

	"github.com/mvelasco/platoon/internal/controllers"
	"github.com/mvelasco/platoon/internal/episode"
	"github.com/mvelasco/platoon/internal/metrics"
)

// Registry maps names to car-following law and policy factories.
type Registry struct {
	laws     map[string]func(map[string]float64) *controllers.Law
	policies map[string]func(map[string]float64, int64) episode.Policy
}

func NewRegistry() *Registry {
	r := &Registry{
		laws:     make(map[string]func(map[string]float64) *controllers.Law),
		policies: make(map[string]func(map[string]float64, int64) episode.Policy),
	}

	r.laws["passthrough"] = func(params map[string]float64) *controllers.Law {
		return controllers.NewPassthrough()
	}
	r.laws["bcm"] = func(params map[string]float64) *controllers.Law {
		p := controllers.DefaultBCMParams()
		setIf(params, "kd", &p.KD)
		setIf(params, "kv", &p.KV)
		setIf(params, "kc", &p.KC)
		setIf(params, "v_des", &p.VDes)
		return controllers.NewBCM(p)
	}
	r.laws["lacc"] = func(params map[string]float64) *controllers.Law {
		p := controllers.DefaultLACCParams()
		setIf(params, "k1", &p.K1)
		setIf(params, "k2", &p.K2)
		setIf(params, "h", &p.H)
		setIf(params, "tau", &p.Tau)
		return controllers.NewLACC(p)
	}
	r.laws["ovm"] = func(params map[string]float64) *controllers.Law {
		p := controllers.DefaultOVMParams()
		setIf(params, "alpha", &p.Alpha)
		setIf(params, "beta", &p.Beta)
		setIf(params, "h_st", &p.HSt)
		setIf(params, "h_go", &p.HGo)
		setIf(params, "v_max", &p.VMax)
		return controllers.NewOVM(p)
	}
	r.laws["linear_ovm"] = func(params map[string]float64) *controllers.Law {
		p := controllers.DefaultLinearOVMParams()
		setIf(params, "v_max", &p.VMax)
		setIf(params, "adaptation", &p.Adaptation)
		setIf(params, "h_st", &p.HSt)
		return controllers.NewLinearOVM(p)
	}
	r.laws["idm"] = func(params map[string]float64) *controllers.Law {
		p := controllers.DefaultIDMParams()
		setIf(params, "v0", &p.V0)
		setIf(params, "t", &p.T)
		setIf(params, "a", &p.A)
		setIf(params, "b", &p.B)
		setIf(params, "delta", &p.Delta)
		setIf(params, "s0", &p.S0)
		return controllers.NewIDM(p)
	}

	r.policies["none"] = func(params map[string]float64, seed int64) episode.Policy {
		return nil
	}
	r.policies["constant"] = func(params map[string]float64, seed int64) episode.Policy {
		return episode.Constant(params["accel"])
	}
	r.policies["uniform"] = func(params map[string]float64, seed int64) episode.Policy {
		low, high := params["low"], params["high"]
		if low == 0 && high == 0 {
			low, high = -1, 1
		}
		return episode.Uniform(low, high, seed)
	}

	return r
}

// setIf overwrites dst only when the params map carries a nonzero value,
// so yaml zero values keep the law defaults.
func setIf(params map[string]float64, key string, dst *float64) {
	if v, ok := params[key]; ok && v != 0 {
		*dst = v
	}
}

func (r *Registry) GetLaw(name string, params map[string]float64) (*controllers.Law, error) {
	fn, ok := r.laws[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", name)
	}
	return fn(params), nil
}

func (r *Registry) GetPolicy(name string, params map[string]float64, seed int64) (episode.Policy, error) {
	fn, ok := r.policies[name]
	if !ok {
		return nil, fmt.Errorf("unknown policy: %s", name)
	}
	return fn(params, seed), nil
}

func (r *Registry) ListLaws() []string {
	names := make([]string, 0, len(r.laws))
	for name := range r.laws {
		names = append(names, name)
	}
	return names
}

func (r *Registry) ListPolicies() []string {
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	return names
}

func (r *Registry) DefaultMetrics() []metrics.Metric {
	return []metrics.Metric{
		metrics.NewMeanSpeed(),
		metrics.NewMinHeadway(),
		metrics.NewControlEffort(),
	}
}
