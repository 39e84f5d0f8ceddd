// Package hl2 detects Half-Life 2 runs: the start is the player being
// released in the first train car, the end is Breen's reactor explosion.
package hl2

import (
	"splitwatch/game"
	"splitwatch/watcher"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

const (
	ID = "hl2"

	endTarget = "sprite_end_final_explosion_1"
	endInput  = "ShowSprite"

	maxQueuedEvents = 70
)

var startPosition = game.Vector3f{X: -9419, Y: -2483, Z: 22}

type Driver struct {
	game.Base

	endFire watcher.ValueWatcher[float32]
	latch   game.Latch
	log     *logger.Logger
}

func New() *Driver {
	return &Driver{
		Base: game.NewBase(game.Info{
			ID:                   ID,
			ProcessNames:         []string{"hl2.exe"},
			FirstMaps:            []string{"d1_trainstation_01"},
			LastMaps:             []string{"d3_breen_01"},
			StartOnFirstLoadMaps: []string{"d1_trainstation_01"},
			RequiredProperties:   game.PropertyPosition,
			TimingMethod:         game.EngineTicks,
		}),
		log: logger.NewLogger(coloransi.Color(coloransi.ColorTeal, coloransi.ColorOrange, ID)),
	}
}

func (d *Driver) OnSessionStart(state *game.GameState) {
	d.Base.OnSessionStart(state)
	d.latch.Reset()
	d.endFire.Reset()

	if d.IsLastMap() {
		d.endFire.Set(state.OutputFireTime(endTarget, endInput, "", maxQueuedEvents))
	}
}

func (d *Driver) OnUpdate(state *game.GameState) game.Result {
	if d.latch.Fired() {
		return game.Result{}
	}

	if d.IsLastMap() {
		d.endFire.Set(state.OutputFireTime(endTarget, endInput, "", maxQueuedEvents))
		if d.endFire.Current > 0 && d.endFire.Old == 0 {
			d.latch.Fire()
			d.log.Infoln("final explosion queued at", d.endFire.Current)
			return game.End(0)
		}
	}

	if d.IsFirstMap() && state.PlayerPosition.Bound() && state.PlayerPosition.Current.DistanceXY(startPosition) <= 1 {
		d.latch.Fire()
		return game.Start(0)
	}

	return game.Result{}
}
