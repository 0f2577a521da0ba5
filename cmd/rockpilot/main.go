// Command rockpilot is a headless client. It joins a room and flies a
// scripted ship, which is enough to play against a browser client or to
// soak-test a relay.
package main

import (
	"context"
	"flag"
	"math/rand/v2"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/luciancaetano/rockrelay/internal/config"
	"github.com/luciancaetano/rockrelay/internal/logging"
	"github.com/luciancaetano/rockrelay/internal/netsync"
	"github.com/luciancaetano/rockrelay/internal/protocol"
	"github.com/luciancaetano/rockrelay/internal/sim"
	"github.com/luciancaetano/rockrelay/ws"
)

const frameRate = 60

func main() {
	envFile := flag.String("env", ".env", "optional .env file")
	restart := flag.Bool("restart", true, "ask for a new round when one ends")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		boot := logging.New(logging.Options{})
		boot.Fatal().Err(err).Msg("config")
	}
	log := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *restart, log); err != nil {
		log.Fatal().Err(err).Msg("pilot stopped")
	}
}

func run(ctx context.Context, cfg config.Config, autoRestart bool, log zerolog.Logger) error {
	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	session := netsync.New(netsync.Options{
		Codec:  codec,
		Rand:   rng,
		Logger: &log,
		Sounds: netsync.SoundFunc(func(name string) {
			log.Trace().Str("sound", name).Msg("play")
		}),
	})

	target, err := roomURL(cfg.ServerURL, cfg.Room)
	if err != nil {
		return err
	}
	peer, err := ws.Dial(ctx, ws.PeerConfig{
		URL:     target,
		OnFrame: session.Deliver,
		OnClose: session.Disconnected,
		Logger:  &log,
	})
	if err != nil {
		return err
	}
	defer peer.Close()
	session.Attach(peer)
	log.Info().Str("url", target).Msg("connected")

	pilot := newPilot(rng)
	ticker := time.NewTicker(time.Second / frameRate)
	defer ticker.Stop()

	last := time.Now()
	roundOver := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now

			for _, in := range pilot.next(session.State()) {
				session.Input(in)
			}
			session.Tick(now, dt)

			switch session.Status() {
			case netsync.StatusRejected:
				log.Warn().Msg("room is full")
				return nil
			case netsync.StatusDisconnected:
				log.Warn().Msg("relay closed the connection")
				return nil
			}

			state := session.State()
			if state.RoundOver && !roundOver && autoRestart {
				if err := session.RequestRestart(); err != nil {
					log.Warn().Err(err).Msg("restart request")
				}
			}
			roundOver = state.RoundOver
		}
	}
}

func roomURL(base, room string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("room", room)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// pilot turns toward the nearest asteroid and fires in bursts.
type pilot struct {
	rng    *rand.Rand
	frames int
}

func newPilot(rng *rand.Rand) *pilot {
	return &pilot{rng: rng}
}

func (p *pilot) next(s *sim.State) []sim.Intent {
	p.frames++
	ship := s.LocalShip()
	if ship == nil || !ship.Alive || !s.Running {
		return nil
	}

	var out []sim.Intent
	if turn := steer(s); turn != 0 {
		if turn < 0 {
			out = append(out, sim.RotateLeft)
		} else {
			out = append(out, sim.RotateRight)
		}
	}
	if p.frames%90 < 20 {
		out = append(out, sim.ThrustOn)
	} else {
		out = append(out, sim.ThrustOff)
	}
	if p.frames%12 == 0 && p.rng.IntN(3) > 0 {
		out = append(out, sim.Fire)
	}
	return out
}
