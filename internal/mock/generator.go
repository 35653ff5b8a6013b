package mock

import (
	"context"
	"log"
	"math"
	"math/big"
	"math/rand"
	"time"

	"github.com/avgrelay/relay/internal/registry"
	"github.com/google/uuid"
)

// Patterns a synthetic sender can follow.
const (
	PatternSteady = "steady"
	PatternSine   = "sine"
	PatternWalk   = "walk"
	PatternBurst  = "burst"
)

// cycleTicks is the length of one join/leave cycle.
const cycleTicks = 80

type mockSender struct {
	id        uuid.UUID
	name      string
	pattern   string
	base      int64
	amplitude int64
	joinTick  int // tick within the cycle when the sender connects
	leaveTick int // tick within the cycle when it disconnects (0 = never)

	value  int64
	active bool
}

// Generator feeds synthetic senders straight into the registry so the relay
// can be demonstrated without real clients.
type Generator struct {
	registry *registry.Registry
	interval time.Duration
	rng      *rand.Rand
	senders  []*mockSender
	tick     int
}

func NewGenerator(reg *registry.Registry, interval time.Duration) *Generator {
	return &Generator{
		registry: reg,
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		senders: []*mockSender{
			{id: uuid.New(), name: "thermostat", pattern: PatternSteady, base: 21, amplitude: 1},
			{id: uuid.New(), name: "tide", pattern: PatternSine, base: 0, amplitude: 40},
			{id: uuid.New(), name: "drifter", pattern: PatternWalk, base: 10, amplitude: 3, joinTick: 5},
			{id: uuid.New(), name: "spiky", pattern: PatternBurst, base: 5, amplitude: 200, joinTick: 10, leaveTick: 50},
		},
	}
}

// Start runs the generator until ctx is cancelled. All synthetic senders are
// retired on the way out.
func (g *Generator) Start(ctx context.Context) {
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	defer g.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.step()
		}
	}
}

func (g *Generator) step() {
	phase := g.tick % cycleTicks
	for _, s := range g.senders {
		switch {
		case !s.active && phase == s.joinTick:
			s.active = true
			s.value = s.base
			log.Printf("mock sender %s (%s) joined", s.name, s.id)
		case s.active && s.leaveTick > 0 && phase == s.leaveTick:
			s.active = false
			g.registry.Retire(s.id)
			log.Printf("mock sender %s (%s) left", s.name, s.id)
			continue
		}

		if !s.active {
			continue
		}
		s.value = g.next(s)
		g.registry.Report(s.id, big.NewInt(s.value))
	}
	g.tick++
}

func (g *Generator) next(s *mockSender) int64 {
	switch s.pattern {
	case PatternSine:
		return s.base + int64(math.Round(float64(s.amplitude)*math.Sin(float64(g.tick)/8)))
	case PatternWalk:
		return s.value + g.rng.Int63n(2*s.amplitude+1) - s.amplitude
	case PatternBurst:
		if g.tick%15 == 0 {
			return s.base + s.amplitude
		}
		return s.base
	default:
		return s.base + g.rng.Int63n(2*s.amplitude+1) - s.amplitude
	}
}

func (g *Generator) stop() {
	for _, s := range g.senders {
		if s.active {
			s.active = false
			g.registry.Retire(s.id)
		}
	}
}
