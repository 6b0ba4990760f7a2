package marl_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mvelasco/platoon/internal/marl"
	"github.com/mvelasco/platoon/internal/ring"
)

var _ = Describe("Env", func() {
	var (
		k   *fakeKernel
		env *marl.Env
		cfg marl.Config
	)

	BeforeEach(func() {
		k = newFakeKernel()
		cfg = marl.DefaultConfig()
	})

	Describe("lead observation", func() {
		It("normalizes speed, headway and leader speed", func() {
			k.addVehicle("human_0", false, 8, 30, "", "rl_0")
			k.addVehicle("rl_0", true, 10, 20, "human_0", "")
			env = marl.New(k, cfg)

			state := env.State()
			Expect(state).To(HaveLen(1))
			Expect(state["rl_0"]).To(Equal([]float64{10.0 / 50, 20.0 / 1000, 8.0 / 50}))
		})

		It("maps a missing leader to speed zero", func() {
			k.addVehicle("rl_0", true, 10, 500, "", "")
			env = marl.New(k, cfg)

			obs := env.State()["rl_0"]
			Expect(obs).To(HaveLen(3))
			Expect(obs[2]).To(BeZero())
		})
	})

	Describe("lane observation", func() {
		BeforeEach(func() {
			cfg.LeadObs = false
		})

		It("pads missing lanes with the sentinel", func() {
			k.addVehicle("rl_0", true, 10, 20, "rl_1", "rl_1")
			k.addVehicle("rl_1", true, 8, 20, "rl_0", "rl_0")
			env = marl.New(k, cfg)

			obs := env.State()["rl_0"]
			Expect(obs).To(HaveLen(6*marl.MaxLanes + 2))

			// one real lane, five padded, in every block
			for block := 0; block < 6; block++ {
				for lane := 1; lane < marl.MaxLanes; lane++ {
					Expect(obs[block*marl.MaxLanes+lane]).To(Equal(-1.0))
				}
			}
		})

		It("flags RL-controlled neighbors", func() {
			k.addVehicle("rl_0", true, 10, 20, "rl_1", "human_0")
			k.addVehicle("rl_1", true, 8, 20, "human_0", "rl_0")
			k.addVehicle("human_0", false, 9, 20, "rl_0", "rl_1")
			env = marl.New(k, cfg)

			obs := env.State()["rl_0"]
			Expect(obs[4*marl.MaxLanes]).To(Equal(1.0)) // leader rl_1 is RL
			Expect(obs[5*marl.MaxLanes]).To(Equal(0.0)) // follower human_0 is not
		})
	})

	Describe("actions", func() {
		It("applies accelerations only to known RL vehicles", func() {
			k.addVehicle("rl_0", true, 10, 20, "", "")
			env = marl.New(k, cfg)

			env.ApplyActions(map[string][]float64{
				"rl_0":  {0.5},
				"ghost": {9.9},
			})
			Expect(k.applied).To(Equal(map[string]float64{"rl_0": 0.5}))
		})

		It("applies nothing on a warmup tick", func() {
			k.addVehicle("rl_0", true, 10, 20, "", "")
			env = marl.New(k, cfg)

			env.ApplyActions(nil)
			Expect(k.applied).To(BeEmpty())
		})
	})

	Describe("rewards", func() {
		It("returns an empty dict for a warmup tick", func() {
			k.addVehicle("rl_0", true, 10, 20, "", "")
			env = marl.New(k, cfg)
			Expect(env.Reward(nil, false)).To(BeEmpty())
		})

		It("computes the local squared-speed reward", func() {
			k.addVehicle("rl_0", true, 10, 20, "", "human_0")
			k.addVehicle("human_0", false, 6, 15, "rl_0", "")
			env = marl.New(k, cfg)

			rewards := env.Reward(map[string][]float64{"rl_0": {0}}, false)
			// mean(6^2, 10^2) / 500
			Expect(rewards["rl_0"]).To(BeNumerically("~", 68.0/500, 1e-9))
		})

		It("computes the global average-velocity reward", func() {
			cfg.LocalReward = false
			k.addVehicle("rl_0", true, 10, 20, "human_0", "")
			k.addVehicle("human_0", false, 6, 15, "", "rl_0")
			env = marl.New(k, cfg)

			rewards := env.Reward(map[string][]float64{"rl_0": {0}}, false)
			Expect(rewards["rl_0"]).To(BeNumerically("~", 8.0, 1e-9))
		})

		It("penalizes short time headways when weighted", func() {
			cfg.LocalReward = false
			cfg.Eta2 = 1.0
			k.addVehicle("rl_0", true, 10, 5, "human_0", "")
			k.addVehicle("human_0", false, 6, 15, "", "rl_0")
			env = marl.New(k, cfg)

			rewards := env.Reward(map[string][]float64{"rl_0": {0}}, false)
			// t_headway = 0.5, penalty = -0.5, avg velocity = 8
			Expect(rewards["rl_0"]).To(BeNumerically("~", 7.5, 1e-9))
		})

		It("forces the raw speed in evaluation mode", func() {
			cfg.LocalReward = false
			cfg.Evaluate = true
			k.addVehicle("rl_0", true, 10, 20, "", "")
			env = marl.New(k, cfg)

			rewards := env.Reward(map[string][]float64{"rl_0": {0}}, false)
			Expect(rewards["rl_0"]).To(Equal(10.0))
		})

		It("forces zero after a collision", func() {
			cfg.LocalReward = false
			k.addVehicle("rl_0", true, 10, 20, "", "")
			env = marl.New(k, cfg)

			rewards := env.Reward(map[string][]float64{"rl_0": {0}}, true)
			Expect(rewards["rl_0"]).To(BeZero())
		})
	})

	Describe("visualization side effect", func() {
		It("marks leader and follower observed", func() {
			k.addVehicle("rl_0", true, 10, 20, "human_0", "human_1")
			k.addVehicle("human_0", false, 8, 20, "", "rl_0")
			k.addVehicle("human_1", false, 9, 20, "rl_0", "")
			env = marl.New(k, cfg)

			env.AdditionalCommand()
			Expect(k.observed).To(HaveKey("human_0"))
			Expect(k.observed).To(HaveKey("human_1"))
			Expect(k.observed).NotTo(HaveKey("rl_0"))
		})
	})

	Describe("against the ring kernel", func() {
		It("observes and rewards every RL vehicle", func() {
			p := ring.DefaultParams()
			p.NumVehicles = 8
			p.NumRL = 3
			env := marl.New(ring.New(p, 11), cfg)

			state := env.Reset(11)
			Expect(state).To(HaveLen(3))
			for _, obs := range state {
				Expect(obs).To(HaveLen(3))
			}

			env.ApplyActions(map[string][]float64{"rl_0": {0.5}})
			env.Kernel().Advance(0.1)
			rewards := env.Reward(map[string][]float64{"rl_0": {0.5}}, false)
			Expect(rewards).To(HaveLen(3))
		})
	})
})
